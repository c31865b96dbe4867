package domain

import "time"

// TicketStatus enumerates lifecycle states for maintenance tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusComplete   TicketStatus = "complete"
)

// TicketPriority enumerates urgency levels assigned during extraction.
type TicketPriority string

const (
	TicketPriorityLow       TicketPriority = "Low"
	TicketPriorityMedium    TicketPriority = "Medium"
	TicketPriorityHigh      TicketPriority = "High"
	TicketPriorityEmergency TicketPriority = "Emergency"
)

// ValueUnknown is the placeholder for fields the caller never mentioned.
const ValueUnknown = "UNKNOWN"

// CategoryOther is the default issue category.
const CategoryOther = "Other"

// TicketFields is the schema returned by the transcript extractor.
// ResidentName, ProblemDescription and PreferredServiceTime are mandatory;
// the rest default to ValueUnknown / CategoryOther / TicketPriorityMedium.
type TicketFields struct {
	ResidentName         string `json:"residentName"`
	ProblemDescription   string `json:"problemDescription"`
	PreferredServiceTime string `json:"preferredServiceTime"`
	Community            string `json:"community"`
	UnitNumber           string `json:"unitNumber"`
	Category             string `json:"category"`
	Priority             string `json:"priority"`
	Summary              string `json:"summary"`
}

// Ticket is the aggregate for maintenance requests derived from transcripts.
type Ticket struct {
	ID                   string
	TicketNumber         string
	ResidentName         string
	ProblemDescription   string
	PreferredServiceTime string
	Community            string
	UnitNumber           string
	Category             string
	Priority             TicketPriority
	Summary              string
	Status               TicketStatus
	Transcript           string
	UserID               *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TicketRef is the lightweight handle returned by the pipeline. Synthetic
// refs (Synthetic=true) are produced when the store is unavailable so the
// caller can still acknowledge the request.
type TicketRef struct {
	TicketID     string `json:"ticketId"`
	TicketNumber string `json:"ticketNumber"`
	Synthetic    bool   `json:"-"`
}

// TicketLink is the per-user cross-reference record written alongside a
// ticket when the reporting party is a verified user.
type TicketLink struct {
	TicketID     string
	TicketNumber string
	Summary      string
	Status       TicketStatus
	CreatedAt    time.Time
}
