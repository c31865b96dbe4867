package dto

// ChatRequest is one text-channel turn. Image is optional base64 PNG data
// without the data-URL prefix. CreateTicket asks the gateway to turn the
// conversation so far into a maintenance ticket.
type ChatRequest struct {
	Message      string `json:"message"`
	Image        string `json:"image,omitempty"`
	CreateTicket bool   `json:"createTicket,omitempty"`
}

// ChatResponse carries the assistant's reply and, when a ticket was opened
// from the conversation, its reference.
type ChatResponse struct {
	Response     string `json:"response"`
	TicketNumber string `json:"ticketNumber,omitempty"`
}

// TrackRequestBody asks for the status of a maintenance request.
type TrackRequestBody struct {
	RequestNumber string `json:"requestNumber"`
}

// TrackResponse reports the status of a maintenance request.
type TrackResponse struct {
	RequestNumber string `json:"requestNumber"`
	Found         bool   `json:"found"`
	Status        string `json:"status,omitempty"`
	Description   string `json:"description,omitempty"`
	Message       string `json:"message,omitempty"`
}
