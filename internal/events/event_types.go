package events

import (
	"time"

	"github.com/smart-care/voice-gateway/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventSessionProcessed EventType = "session_processed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload carries what the confirmation channel needs. Phone is
// empty for anonymous sessions; Synthetic marks error-tagged references that
// must not be confirmed to the caller as real tickets.
type TicketCreatedPayload struct {
	TicketNumber string              `json:"ticket_number"`
	Status       domain.TicketStatus `json:"status"`
	Phone        string              `json:"phone,omitempty"`
	Synthetic    bool                `json:"synthetic"`
	CreatedAt    time.Time           `json:"created_at"`
}

// SessionProcessedPayload records a finished pipeline run.
type SessionProcessedPayload struct {
	SessionKey   string `json:"session_key"`
	TicketNumber string `json:"ticket_number"`
	Duplicate    bool   `json:"duplicate"`
}
