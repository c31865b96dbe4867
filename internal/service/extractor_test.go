package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smart-care/voice-gateway/internal/ai"
	"github.com/smart-care/voice-gateway/internal/domain"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

type fakeCompletion struct {
	structured    string
	structuredErr error
	reply         string
	replyErr      error

	lastSystem string
	lastUser   string
	lastParts  []ai.ChatPart
}

func (f *fakeCompletion) StructuredCompletion(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	return f.structured, f.structuredErr
}

func (f *fakeCompletion) ChatReply(_ context.Context, system string, parts []ai.ChatPart) (string, error) {
	f.lastSystem = system
	f.lastParts = parts
	return f.reply, f.replyErr
}

func TestExtractNormalizesFields(t *testing.T) {
	client := &fakeCompletion{structured: `{
		"residentName": " Sara Alfayez ",
		"problemDescription": "AC not cooling",
		"preferredServiceTime": "2026-09-02T10:00:00Z",
		"priority": "urgent"
	}`}
	ex := NewExtractor(client)

	fields, err := ex.Extract(context.Background(), "User: my AC broke\n")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fields.ResidentName != "Sara Alfayez" {
		t.Errorf("residentName = %q", fields.ResidentName)
	}
	if fields.Community != domain.ValueUnknown || fields.UnitNumber != domain.ValueUnknown {
		t.Errorf("missing location fields not defaulted: %+v", fields)
	}
	if fields.Category != domain.CategoryOther {
		t.Errorf("category = %q, want %q", fields.Category, domain.CategoryOther)
	}
	if fields.Priority != string(domain.TicketPriorityMedium) {
		t.Errorf("unknown priority not clamped: %q", fields.Priority)
	}
	if fields.Summary != "AC not cooling" {
		t.Errorf("summary not defaulted from description: %q", fields.Summary)
	}
	if client.lastUser != "User: my AC broke\n" {
		t.Errorf("transcript not passed verbatim: %q", client.lastUser)
	}
}

func TestExtractAnchorsPromptToCurrentDate(t *testing.T) {
	client := &fakeCompletion{structured: `{"residentName":"A","problemDescription":"leak","preferredServiceTime":"tomorrow"}`}
	if _, err := NewExtractor(client).Extract(context.Background(), "t"); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(client.lastSystem, ai.ExtractionPrompt) {
		t.Errorf("system prompt does not start with the extraction instructions: %q", client.lastSystem)
	}
	want := "Today's date is " + time.Now().Format("2006-01-02")
	if !strings.Contains(client.lastSystem, want) {
		t.Errorf("system prompt missing date anchor %q: %q", want, client.lastSystem)
	}
}

func TestExtractKeepsValidPriority(t *testing.T) {
	client := &fakeCompletion{structured: `{"residentName":"A","problemDescription":"gas smell","preferredServiceTime":"now","priority":"Emergency"}`}
	fields, err := NewExtractor(client).Extract(context.Background(), "t")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fields.Priority != string(domain.TicketPriorityEmergency) {
		t.Errorf("priority = %q", fields.Priority)
	}
}

func TestExtractRejectsInvalidJSON(t *testing.T) {
	client := &fakeCompletion{structured: `not json at all`}
	_, err := NewExtractor(client).Extract(context.Background(), "t")
	if !apperrors.IsCode(err, "EXTRACTION_MALFORMED") {
		t.Fatalf("err = %v, want extraction malformed", err)
	}
}

func TestExtractRejectsEmptyProblem(t *testing.T) {
	client := &fakeCompletion{structured: `{"residentName":"A","problemDescription":"  ","preferredServiceTime":"now"}`}
	_, err := NewExtractor(client).Extract(context.Background(), "t")
	if !apperrors.IsCode(err, "EXTRACTION_MALFORMED") {
		t.Fatalf("err = %v, want extraction malformed", err)
	}
}

func TestExtractWrapsTransportFailure(t *testing.T) {
	client := &fakeCompletion{structuredErr: errors.New("connection reset")}
	_, err := NewExtractor(client).Extract(context.Background(), "t")
	if !apperrors.IsCode(err, "TRANSPORT_ERROR") {
		t.Fatalf("err = %v, want transport error", err)
	}
}
