package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/smart-care/voice-gateway/internal/ai"
	"github.com/smart-care/voice-gateway/internal/domain"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

// Extractor turns a raw conversation transcript into the structured ticket
// field set via a schema-constrained completion call.
type Extractor struct {
	client ai.CompletionClient
}

// NewExtractor builds the extractor.
func NewExtractor(client ai.CompletionClient) *Extractor {
	return &Extractor{client: client}
}

// Extract runs the extraction call and normalizes the result. Output that is
// not valid JSON for the field set is an EXTRACTION_MALFORMED error; missing
// optional fields are defaulted, never an error.
func (e *Extractor) Extract(ctx context.Context, transcript string) (*domain.TicketFields, error) {
	// Relative answers like "tomorrow morning" only resolve to ISO 8601
	// when the model knows what day it is.
	system := ai.ExtractionPrompt + "\n\nToday's date is " + time.Now().Format("2006-01-02 15:04:05") + "."
	raw, err := e.client.StructuredCompletion(ctx, system, transcript)
	if err != nil {
		return nil, apperrors.NewTransportError("extraction call failed", err)
	}

	var fields domain.TicketFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, apperrors.NewExtractionMalformed("extraction output is not valid JSON", err)
	}

	Normalize(&fields)
	if fields.ProblemDescription == domain.ValueUnknown {
		return nil, apperrors.NewExtractionMalformed("extraction produced no problem description", nil)
	}
	return &fields, nil
}

// Normalize fills placeholder values for absent fields and clamps priority to
// the known scale.
func Normalize(fields *domain.TicketFields) {
	def := func(v *string, fallback string) {
		if strings.TrimSpace(*v) == "" {
			*v = fallback
		} else {
			*v = strings.TrimSpace(*v)
		}
	}
	def(&fields.ResidentName, domain.ValueUnknown)
	def(&fields.ProblemDescription, domain.ValueUnknown)
	def(&fields.PreferredServiceTime, domain.ValueUnknown)
	def(&fields.Community, domain.ValueUnknown)
	def(&fields.UnitNumber, domain.ValueUnknown)
	def(&fields.Category, domain.CategoryOther)
	def(&fields.Summary, fields.ProblemDescription)

	switch domain.TicketPriority(fields.Priority) {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium,
		domain.TicketPriorityHigh, domain.TicketPriorityEmergency:
	default:
		fields.Priority = string(domain.TicketPriorityMedium)
	}
}
