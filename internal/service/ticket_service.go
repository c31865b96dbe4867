package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/domain"
	"github.com/smart-care/voice-gateway/internal/events"
	"github.com/smart-care/voice-gateway/internal/observability"
	"github.com/smart-care/voice-gateway/internal/repository"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

// GenerateTicketNumber builds a human-readable ticket number from the last
// six digits of the current unix-millisecond clock plus four random digits.
// Uniqueness is probabilistic, good enough for a support queue; the ticket ID
// stays the authoritative identity.
func GenerateTicketNumber() string {
	ms := strconv.FormatInt(time.Now().UnixMilli(), 10)
	suffix := ms[len(ms)-6:]
	return fmt.Sprintf("TKT-%s%04d", suffix, rand.Intn(10000))
}

// SyntheticTicketRef builds the error-tagged reference handed out when the
// store cannot persist a ticket. The caller still gets an acknowledgment;
// support staff recognize the ERROR prefix and recover from the transcript.
func SyntheticTicketRef() *domain.TicketRef {
	return &domain.TicketRef{
		TicketID:     "error-creating-ticket",
		TicketNumber: fmt.Sprintf("ERROR-%d", time.Now().UnixMilli()),
		Synthetic:    true,
	}
}

// TrackResult is the answer to a request-number lookup.
type TrackResult struct {
	RequestNumber string
	Status        domain.TicketStatus
	Description   string
	Found         bool
}

// TicketService owns ticket creation and lookup.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewTicketService builds the service.
func NewTicketService(tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *TicketService {
	return &TicketService{tickets: tickets, dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// CreateFromFields persists a ticket assembled from extracted fields. Store
// failures do not propagate: the returned reference is then synthetic and the
// failure is logged. When a verified user is attached, a per-user
// cross-reference is written best-effort after the ticket itself.
func (s *TicketService) CreateFromFields(ctx context.Context, fields *domain.TicketFields, transcript string, user *domain.User, phone string) (*domain.TicketRef, error) {
	now := time.Now()
	ticket := &domain.Ticket{
		ID:                   uuid.New().String(),
		TicketNumber:         GenerateTicketNumber(),
		ResidentName:         fields.ResidentName,
		ProblemDescription:   fields.ProblemDescription,
		PreferredServiceTime: fields.PreferredServiceTime,
		Community:            fields.Community,
		UnitNumber:           fields.UnitNumber,
		Category:             fields.Category,
		Priority:             domain.TicketPriority(fields.Priority),
		Summary:              fields.Summary,
		Status:               domain.TicketStatusPending,
		Transcript:           transcript,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if user != nil {
		ticket.UserID = &user.ID
	}

	ref := &domain.TicketRef{TicketID: ticket.ID, TicketNumber: ticket.TicketNumber}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.logger.Error("persist ticket",
			zap.String("ticket_number", ticket.TicketNumber),
			zap.Error(apperrors.NewStoreUnavailable(err)))
		ref = SyntheticTicketRef()
	} else {
		s.metrics.Inc(observability.CounterTicketsCreated)
		if user != nil {
			s.crossReference(ctx, user.ID, ticket)
		}
	}

	if s.dispatcher != nil {
		event := events.Event{
			ID:        uuid.New().String(),
			Type:      events.EventTicketCreated,
			Timestamp: now,
			Payload: events.TicketCreatedPayload{
				TicketNumber: ref.TicketNumber,
				Status:       domain.TicketStatusPending,
				Phone:        phone,
				Synthetic:    ref.Synthetic,
				CreatedAt:    now,
			},
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("ticket created event", zap.Error(err))
		}
	}

	return ref, nil
}

// crossReference links the ticket under the reporting user. The link is an
// index, not the record of truth, so failures are logged and swallowed.
func (s *TicketService) crossReference(ctx context.Context, userID string, ticket *domain.Ticket) {
	link := domain.TicketLink{
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Summary:      ticket.Summary,
		Status:       ticket.Status,
		CreatedAt:    ticket.CreatedAt,
	}
	if err := s.tickets.LinkToUser(ctx, userID, link); err != nil {
		s.logger.Warn("cross-reference ticket",
			zap.String("user_id", userID),
			zap.String("ticket_number", ticket.TicketNumber),
			zap.Error(err))
	}
}

// TicketsForUser lists the cross-referenced tickets of one user.
func (s *TicketService) TicketsForUser(ctx context.Context, userID string) ([]domain.TicketLink, error) {
	return s.tickets.UserLinks(ctx, userID)
}

// demoRequests is a fixed lookup table kept from the pilot rollout so the
// tracking flow can be exercised without seeded data.
var demoRequests = map[string]TrackResult{
	"12345": {RequestNumber: "12345", Status: domain.TicketStatusInProgress, Description: "AC repair in living room", Found: true},
	"67890": {RequestNumber: "67890", Status: domain.TicketStatusComplete, Description: "Kitchen sink leak fixed", Found: true},
}

// Track resolves a request number to its current status. Demo numbers take
// precedence; everything else goes to the store by ticket number.
func (s *TicketService) Track(ctx context.Context, requestNumber string) (*TrackResult, error) {
	if res, ok := demoRequests[requestNumber]; ok {
		return &res, nil
	}

	ticket, err := s.tickets.GetByNumber(ctx, requestNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return &TrackResult{RequestNumber: requestNumber}, nil
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return &TrackResult{
		RequestNumber: requestNumber,
		Status:        ticket.Status,
		Description:   ticket.Summary,
		Found:         true,
	}, nil
}
