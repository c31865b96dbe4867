package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/events"
	"github.com/smart-care/voice-gateway/internal/telephony"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

// NotificationService sends SMS confirmations for domain events. Delivery is
// fire-and-forget: a failed confirmation never affects the ticket it
// confirms.
type NotificationService struct {
	dispatcher events.Dispatcher
	calls      telephony.CallService
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, calls telephony.CallService, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		calls:      calls,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		n.logger.Warn("TicketCreated with unexpected payload", zap.Any("payload", event.Payload))
		return nil
	}
	if payload.Phone == "" || n.calls == nil {
		// Anonymous session or no SMS provider configured.
		return nil
	}
	if payload.Synthetic {
		n.logger.Info("skipping confirmation for synthetic reference",
			zap.String("ticket_number", payload.TicketNumber))
		return nil
	}

	body := fmt.Sprintf(
		"Your maintenance request has been received.\nTicket Number: %s\nStatus: %s\nDate: %s",
		payload.TicketNumber, payload.Status, payload.CreatedAt.Format("2006-01-02 15:04"))

	if err := n.calls.SendSMS(ctx, payload.Phone, body); err != nil {
		n.logger.Warn("sms confirmation",
			zap.String("ticket_number", payload.TicketNumber),
			zap.Error(apperrors.NewNotificationFailure(err)))
	}
	return nil
}
