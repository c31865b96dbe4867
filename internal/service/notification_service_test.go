package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/domain"
	"github.com/smart-care/voice-gateway/internal/events"
)

func ticketCreatedEvent(phone string, synthetic bool) events.Event {
	return events.Event{
		Type:      events.EventTicketCreated,
		Timestamp: time.Now(),
		Payload: events.TicketCreatedPayload{
			TicketNumber: "TKT-1234567890",
			Status:       domain.TicketStatusPending,
			Phone:        phone,
			Synthetic:    synthetic,
			CreatedAt:    time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC),
		},
	}
}

func TestNotificationSendsConfirmationSMS(t *testing.T) {
	calls := &fakeCalls{}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, calls, zap.NewNop()).RegisterHandlers()

	if err := dispatcher.Publish(context.Background(), ticketCreatedEvent("+966512345678", false)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(calls.sms) != 1 {
		t.Fatalf("sent %d messages, want 1", len(calls.sms))
	}
	msg := calls.sms[0]
	if !strings.HasPrefix(msg, "+966512345678|") {
		t.Errorf("wrong recipient: %q", msg)
	}
	for _, want := range []string{"Ticket Number: TKT-1234567890", "Status: pending", "Date: 2026-09-01 10:30"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q: %q", want, msg)
		}
	}
}

func TestNotificationSkipsAnonymousAndSynthetic(t *testing.T) {
	calls := &fakeCalls{}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, calls, zap.NewNop()).RegisterHandlers()

	dispatcher.Publish(context.Background(), ticketCreatedEvent("", false))
	dispatcher.Publish(context.Background(), ticketCreatedEvent("+966512345678", true))
	if len(calls.sms) != 0 {
		t.Fatalf("sent %d messages, want none", len(calls.sms))
	}
}

func TestNotificationDeliveryFailureIsSwallowed(t *testing.T) {
	calls := &fakeCalls{smsErr: errors.New("carrier down")}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, calls, zap.NewNop()).RegisterHandlers()

	if err := dispatcher.Publish(context.Background(), ticketCreatedEvent("+966512345678", false)); err != nil {
		t.Fatalf("delivery failure leaked: %v", err)
	}
}
