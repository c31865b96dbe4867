package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smart-care/voice-gateway/internal/domain"
)

// In-memory repository implementations. Used when no POSTGRES_DSN is
// configured and by tests; they honor the same contracts as the Postgres
// versions, including ErrNoRows on misses.

// MemoryTicketRepository keeps tickets and user links in process memory.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket // keyed by ticket number
	links   map[string][]domain.TicketLink

	// FailCreate and FailLink force errors; tests use them to exercise the
	// store-unavailable and best-effort cross-reference paths.
	FailCreate error
	FailLink   error
}

// NewMemoryTicketRepository constructs an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets: make(map[string]*domain.Ticket),
		links:   make(map[string][]domain.TicketLink),
	}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	if r.FailCreate != nil {
		return r.FailCreate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = uuid.New().String()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticket.TicketNumber] = &clone
	return nil
}

func (r *MemoryTicketRepository) GetByNumber(_ context.Context, ticketNumber string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[ticketNumber]
	if !ok {
		return nil, ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *MemoryTicketRepository) LinkToUser(_ context.Context, userID string, link domain.TicketLink) error {
	if r.FailLink != nil {
		return r.FailLink
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	link.CreatedAt = time.Now()
	r.links[userID] = append(r.links[userID], link)
	return nil
}

func (r *MemoryTicketRepository) UserLinks(_ context.Context, userID string) ([]domain.TicketLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.TicketLink(nil), r.links[userID]...), nil
}

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMemoryUserRepository constructs an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*domain.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Phone == phone })
}

func (r *MemoryUserRepository) GetByPhoneSuffix(_ context.Context, suffix string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.HasSuffix(u.Phone, suffix) })
}

func (r *MemoryUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if match(user) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrNoRows
}

// MemoryTranscriptRepository keeps call transcripts in process memory.
type MemoryTranscriptRepository struct {
	mu          sync.RWMutex
	transcripts map[string]*domain.CallTranscript
}

// NewMemoryTranscriptRepository constructs an empty store.
func NewMemoryTranscriptRepository() *MemoryTranscriptRepository {
	return &MemoryTranscriptRepository{transcripts: make(map[string]*domain.CallTranscript)}
}

func (r *MemoryTranscriptRepository) Save(_ context.Context, transcript *domain.CallTranscript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	transcript.ID = uuid.New().String()
	transcript.CreatedAt = time.Now()
	clone := *transcript
	r.transcripts[transcript.CallSid] = &clone
	return nil
}

func (r *MemoryTranscriptRepository) GetByCallSid(_ context.Context, callSid string) (*domain.CallTranscript, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tr, ok := r.transcripts[callSid]
	if !ok {
		return nil, ErrNoRows
	}
	clone := *tr
	return &clone, nil
}

// MemoryChatRepository keeps chat history in process memory.
type MemoryChatRepository struct {
	mu       sync.RWMutex
	messages map[string][]domain.ChatMessage
	lookups  []domain.TrackingLookup
}

// NewMemoryChatRepository constructs an empty store.
func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{messages: make(map[string][]domain.ChatMessage)}
}

func (r *MemoryChatRepository) Append(_ context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = uuid.New().String()
	msg.CreatedAt = time.Now()
	r.messages[msg.UserID] = append(r.messages[msg.UserID], *msg)
	return nil
}

func (r *MemoryChatRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.messages[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.ChatMessage(nil), msgs...), nil
}

func (r *MemoryChatRepository) RecordTracking(_ context.Context, lookup *domain.TrackingLookup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lookup.ID = uuid.New().String()
	lookup.CreatedAt = time.Now()
	r.lookups = append(r.lookups, *lookup)
	return nil
}
