package dto

// MakeCallRequest asks the gateway to originate an outbound support call.
type MakeCallRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// MakeCallResponse acknowledges an originated call.
type MakeCallResponse struct {
	Message string `json:"message"`
	CallSid string `json:"callSid"`
}

// CallStatusResponse answers the provider status webhook. TicketNumber is
// set when this webhook was the path that ran the pipeline.
type CallStatusResponse struct {
	Message      string `json:"message"`
	TicketNumber string `json:"ticketNumber,omitempty"`
}

// ManualTicketRequest asks for a minimal ticket for a call whose automatic
// processing failed.
type ManualTicketRequest struct {
	CallSid string `json:"callSid"`
}

// ManualTicketResponse acknowledges a manually raised ticket.
type ManualTicketResponse struct {
	Message      string `json:"message"`
	TicketNumber string `json:"ticketNumber"`
}
