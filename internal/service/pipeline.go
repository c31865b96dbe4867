package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/domain"
	"github.com/smart-care/voice-gateway/internal/events"
	"github.com/smart-care/voice-gateway/internal/observability"
	"github.com/smart-care/voice-gateway/internal/repository"
	"github.com/smart-care/voice-gateway/internal/session"
	"github.com/smart-care/voice-gateway/internal/telephony"
)

// Pipeline is the post-session processing chain: claim the session, resolve
// the caller, extract structured fields, create the ticket, announce it.
type Pipeline struct {
	dedup       session.ProcessedSet
	extractor   *Extractor
	tickets     *TicketService
	users       repository.UserRepository
	transcripts repository.TranscriptRepository
	calls       telephony.CallService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// PipelineDependencies encapsulates pipeline requirements.
type PipelineDependencies struct {
	Dedup       session.ProcessedSet
	Extractor   *Extractor
	Tickets     *TicketService
	Users       repository.UserRepository
	Transcripts repository.TranscriptRepository
	Calls       telephony.CallService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewPipeline builds the pipeline.
func NewPipeline(deps PipelineDependencies) *Pipeline {
	return &Pipeline{
		dedup:       deps.Dedup,
		extractor:   deps.Extractor,
		tickets:     deps.Tickets,
		users:       deps.Users,
		transcripts: deps.Transcripts,
		calls:       deps.Calls,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
}

// ProcessSession runs the pipeline for one finished session. The second
// return value reports that the session was already processed, in which case
// nothing else happens. At most one caller per key gets past the claim, no
// matter how many paths (stream close, status webhook) race to trigger it.
func (p *Pipeline) ProcessSession(ctx context.Context, key, transcript string) (*domain.TicketRef, bool, error) {
	claimed, err := p.dedup.Claim(ctx, key)
	if err != nil {
		// A broken claim backend degrades to at-least-once; a duplicate
		// ticket beats a silently lost one.
		p.logger.Warn("processed-session claim", zap.String("session", key), zap.Error(err))
		claimed = true
	}
	if !claimed {
		p.metrics.Inc(observability.CounterDuplicateClaims)
		p.logger.Info("session already processed", zap.String("session", key))
		return nil, true, nil
	}

	phone, user := p.resolveCaller(ctx, key)
	p.saveTranscript(ctx, key, transcript, user)

	fields, err := p.extractor.Extract(ctx, transcript)
	if err != nil {
		p.logger.Error("extract ticket fields", zap.String("session", key), zap.Error(err))
		return nil, false, err
	}

	// A verified caller's profile beats whatever was heard on the line.
	applyProfile(fields, user)

	ref, err := p.tickets.CreateFromFields(ctx, fields, transcript, user, phone)
	if err != nil {
		return nil, false, err
	}

	if p.dispatcher != nil {
		event := events.Event{
			ID:        uuid.New().String(),
			Type:      events.EventSessionProcessed,
			Timestamp: time.Now(),
			Payload: events.SessionProcessedPayload{
				SessionKey:   key,
				TicketNumber: ref.TicketNumber,
			},
		}
		if err := p.dispatcher.Publish(ctx, event); err != nil {
			p.logger.Warn("session processed event", zap.Error(err))
		}
	}

	p.logger.Info("session processed",
		zap.String("session", key),
		zap.String("ticket_number", ref.TicketNumber),
		zap.Bool("synthetic", ref.Synthetic))
	return ref, false, nil
}

// ProcessChat creates a ticket from an authenticated chat conversation. The
// caller is already resolved, so there is no claim and no telephony lookup;
// each invocation is a deliberate request for a ticket.
func (p *Pipeline) ProcessChat(ctx context.Context, user *domain.User, transcript string) (*domain.TicketRef, error) {
	fields, err := p.extractor.Extract(ctx, transcript)
	if err != nil {
		p.logger.Error("extract ticket fields from chat", zap.Error(err))
		return nil, err
	}

	applyProfile(fields, user)

	var phone string
	if user != nil {
		phone = user.Phone
	}
	return p.tickets.CreateFromFields(ctx, fields, transcript, user, phone)
}

// ProcessManual mints a minimal ticket for a call whose automatic extraction
// failed. The dedup claim is already spent by the failed attempt, so this is
// an operator action with no claim of its own. The stored transcript is
// attached when one exists; the placeholder fields are for a dispatcher to
// fill in after reading it.
func (p *Pipeline) ProcessManual(ctx context.Context, callSid string) (*domain.TicketRef, error) {
	var transcript string
	if p.transcripts != nil {
		stored, err := p.transcripts.GetByCallSid(ctx, callSid)
		switch {
		case err == nil:
			transcript = stored.Transcript
		case !errors.Is(err, repository.ErrNoRows):
			p.logger.Warn("load stored transcript", zap.String("call_sid", callSid), zap.Error(err))
		}
	}

	phone, user := p.resolveCaller(ctx, callSid)

	fields := &domain.TicketFields{
		ResidentName:         domain.ValueUnknown,
		ProblemDescription:   "Maintenance request from call " + callSid + ", details pending review",
		PreferredServiceTime: time.Now().Format(time.RFC3339),
		Community:            domain.ValueUnknown,
		UnitNumber:           domain.ValueUnknown,
		Category:             domain.CategoryOther,
		Priority:             string(domain.TicketPriorityMedium),
		Summary:              "Manually raised ticket for call " + callSid,
	}
	applyProfile(fields, user)

	p.logger.Info("manual ticket requested", zap.String("call_sid", callSid))
	return p.tickets.CreateFromFields(ctx, fields, transcript, user, phone)
}

// applyProfile overwrites extracted identity fields with the verified user
// profile when one is known.
func applyProfile(fields *domain.TicketFields, user *domain.User) {
	if user == nil {
		return
	}
	if name := strings.TrimSpace(user.FullName()); name != "" {
		fields.ResidentName = name
	}
	if user.Community != "" {
		fields.Community = user.Community
	}
	if user.UnitNumber != "" {
		fields.UnitNumber = user.UnitNumber
	}
}

// AlreadyProcessed reports whether a session key has been claimed.
func (p *Pipeline) AlreadyProcessed(ctx context.Context, key string) bool {
	claimed, err := p.dedup.Claimed(ctx, key)
	if err != nil {
		p.logger.Warn("processed-session lookup", zap.String("session", key), zap.Error(err))
		return false
	}
	return claimed
}

// resolveCaller maps a call-backed session to the caller's phone number and,
// when possible, a registered user. Fallback sessions have no caller
// identity and every resolution failure degrades to anonymous.
func (p *Pipeline) resolveCaller(ctx context.Context, key string) (string, *domain.User) {
	if !session.IsCallSid(key) || p.calls == nil {
		return "", nil
	}

	ref, err := p.calls.LookupCall(ctx, key)
	if err != nil {
		p.logger.Warn("lookup call", zap.String("session", key), zap.Error(err))
		return "", nil
	}
	if ref.To == "" {
		return "", nil
	}

	return ref.To, p.userByPhone(ctx, ref.To)
}

// userByPhone tries the number as stored, then without the plus prefix, then
// by the trailing nine digits. Registered numbers vary in how much country
// prefix they carry.
func (p *Pipeline) userByPhone(ctx context.Context, phone string) *domain.User {
	if p.users == nil {
		return nil
	}

	lookups := []func(context.Context) (*domain.User, error){
		func(ctx context.Context) (*domain.User, error) {
			return p.users.GetByPhone(ctx, phone)
		},
	}
	if stripped := strings.TrimPrefix(phone, "+"); stripped != phone {
		lookups = append(lookups, func(ctx context.Context) (*domain.User, error) {
			return p.users.GetByPhone(ctx, stripped)
		})
	}
	if digits := phoneDigits(phone); len(digits) >= 9 {
		suffix := digits[len(digits)-9:]
		lookups = append(lookups, func(ctx context.Context) (*domain.User, error) {
			return p.users.GetByPhoneSuffix(ctx, suffix)
		})
	}

	for _, lookup := range lookups {
		user, err := lookup(ctx)
		if err == nil {
			return user
		}
		if !errors.Is(err, repository.ErrNoRows) {
			p.logger.Warn("resolve user by phone", zap.Error(err))
			return nil
		}
	}
	return nil
}

func phoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// saveTranscript keeps the raw conversation for audit and recovery. Losing
// it never blocks ticket creation.
func (p *Pipeline) saveTranscript(ctx context.Context, key, transcript string, user *domain.User) {
	if p.transcripts == nil || !session.IsCallSid(key) {
		return
	}
	record := &domain.CallTranscript{
		ID:         uuid.New().String(),
		CallSid:    key,
		Transcript: transcript,
		CreatedAt:  time.Now(),
	}
	if user != nil {
		record.UserID = &user.ID
	}
	if err := p.transcripts.Save(ctx, record); err != nil {
		p.logger.Warn("save transcript", zap.String("session", key), zap.Error(err))
	}
}
