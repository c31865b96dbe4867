package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/domain"
	"github.com/smart-care/voice-gateway/internal/events"
	"github.com/smart-care/voice-gateway/internal/observability"
	"github.com/smart-care/voice-gateway/internal/repository"
)

var ticketNumberPattern = regexp.MustCompile(`^TKT-\d{10}$`)

func TestGenerateTicketNumberFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		if n := GenerateTicketNumber(); !ticketNumberPattern.MatchString(n) {
			t.Fatalf("ticket number %q does not match TKT-<10 digits>", n)
		}
	}
}

func TestSyntheticTicketRef(t *testing.T) {
	ref := SyntheticTicketRef()
	if ref.TicketID != "error-creating-ticket" {
		t.Errorf("ticket id = %q", ref.TicketID)
	}
	if !strings.HasPrefix(ref.TicketNumber, "ERROR-") {
		t.Errorf("ticket number = %q", ref.TicketNumber)
	}
	if !ref.Synthetic {
		t.Error("synthetic flag not set")
	}
}

func baseFields() *domain.TicketFields {
	return &domain.TicketFields{
		ResidentName:         "Sara Alfayez",
		ProblemDescription:   "AC not cooling",
		PreferredServiceTime: "tomorrow morning",
		Community:            "Palm Gardens",
		UnitNumber:           "14B",
		Category:             "HVAC",
		Priority:             string(domain.TicketPriorityHigh),
		Summary:              "AC repair",
	}
}

func TestCreateFromFieldsPersistsAndAnnounces(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	dispatcher := events.NewInMemoryDispatcher()

	var published []events.Event
	dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})

	svc := NewTicketService(repo, dispatcher, zap.NewNop(), observability.NewMetrics())
	user := &domain.User{ID: "u1", FirstName: "Sara", LastName: "Alfayez"}

	ref, err := svc.CreateFromFields(context.Background(), baseFields(), "User: hi\n", user, "+966512345678")
	if err != nil {
		t.Fatalf("CreateFromFields: %v", err)
	}
	if ref.Synthetic {
		t.Fatal("ref marked synthetic on success")
	}

	stored, err := repo.GetByNumber(context.Background(), ref.TicketNumber)
	if err != nil {
		t.Fatalf("stored ticket not found: %v", err)
	}
	if stored.Status != domain.TicketStatusPending {
		t.Errorf("status = %q, want pending", stored.Status)
	}
	if stored.Transcript != "User: hi\n" {
		t.Errorf("transcript = %q", stored.Transcript)
	}
	if stored.UserID == nil || *stored.UserID != "u1" {
		t.Errorf("user not attached: %v", stored.UserID)
	}

	links, _ := repo.UserLinks(context.Background(), "u1")
	if len(links) != 1 || links[0].TicketNumber != ref.TicketNumber {
		t.Errorf("cross-reference missing: %+v", links)
	}

	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	payload := published[0].Payload.(events.TicketCreatedPayload)
	if payload.Phone != "+966512345678" || payload.Synthetic {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCreateFromFieldsStoreFailureReturnsSyntheticRef(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	repo.FailCreate = errors.New("store down")

	svc := NewTicketService(repo, events.NewInMemoryDispatcher(), zap.NewNop(), observability.NewMetrics())

	ref, err := svc.CreateFromFields(context.Background(), baseFields(), "t", nil, "")
	if err != nil {
		t.Fatalf("store failure must not propagate, got %v", err)
	}
	if !ref.Synthetic {
		t.Fatal("expected synthetic ref")
	}
	if !strings.HasPrefix(ref.TicketNumber, "ERROR-") {
		t.Errorf("ticket number = %q", ref.TicketNumber)
	}
}

func TestCreateFromFieldsLinkFailureIsSwallowed(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	repo.FailLink = errors.New("index down")

	svc := NewTicketService(repo, events.NewInMemoryDispatcher(), zap.NewNop(), observability.NewMetrics())
	user := &domain.User{ID: "u1", FirstName: "Sara"}

	ref, err := svc.CreateFromFields(context.Background(), baseFields(), "t", user, "")
	if err != nil {
		t.Fatalf("link failure must not propagate, got %v", err)
	}
	if ref.Synthetic {
		t.Fatal("ticket itself persisted; ref must be real")
	}
	if _, err := repo.GetByNumber(context.Background(), ref.TicketNumber); err != nil {
		t.Fatalf("ticket missing after link failure: %v", err)
	}
}

func TestTrack(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	svc := NewTicketService(repo, nil, zap.NewNop(), observability.NewMetrics())

	ref, err := svc.CreateFromFields(context.Background(), baseFields(), "t", nil, "")
	if err != nil {
		t.Fatalf("CreateFromFields: %v", err)
	}

	tests := []struct {
		name       string
		number     string
		wantFound  bool
		wantStatus domain.TicketStatus
	}{
		{"demo in progress", "12345", true, domain.TicketStatusInProgress},
		{"demo complete", "67890", true, domain.TicketStatusComplete},
		{"stored ticket", ref.TicketNumber, true, domain.TicketStatusPending},
		{"unknown", "TKT-0000000000", false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := svc.Track(context.Background(), tc.number)
			if err != nil {
				t.Fatalf("Track: %v", err)
			}
			if res.Found != tc.wantFound {
				t.Fatalf("found = %v, want %v", res.Found, tc.wantFound)
			}
			if tc.wantFound && res.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", res.Status, tc.wantStatus)
			}
		})
	}
}
