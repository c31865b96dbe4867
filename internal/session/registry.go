package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session holds the state of one in-flight call or chat interaction. It is
// owned by its bridge; the registry only provides lookup and lifecycle.
type Session struct {
	Key       string
	CreatedAt time.Time

	mu         sync.Mutex
	streamSid  string
	transcript strings.Builder
	aiLinkOpen bool
}

// SetStreamSid binds the provider-assigned stream identifier.
func (s *Session) SetStreamSid(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSid = sid
}

// StreamSid returns the bound stream identifier, empty until the inbound
// stream announces itself.
func (s *Session) StreamSid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSid
}

// AppendUser appends one caller utterance to the transcript.
func (s *Session) AppendUser(text string) {
	s.appendLine("User: " + text)
}

// AppendAgent appends one assistant utterance to the transcript.
func (s *Session) AppendAgent(text string) {
	s.appendLine("Agent: " + text)
}

func (s *Session) appendLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.WriteString(line)
	s.transcript.WriteString("\n")
}

// Transcript returns the accumulated transcript verbatim, in append order.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.String()
}

// SetAILinkOpen records whether the outbound AI connection is usable.
func (s *Session) SetAILinkOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiLinkOpen = open
}

// AILinkOpen reports whether audio can currently be forwarded to the AI.
func (s *Session) AILinkOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiLinkOpen
}

// Registry is the process-wide keyed store of in-flight sessions. It holds
// no persistence: a restart loses in-flight sessions, which is acceptable
// because calls are short-lived.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for key, creating it on first use.
func (r *Registry) GetOrCreate(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[key]; ok {
		return sess
	}
	sess := &Session{Key: key, CreatedAt: time.Now()}
	r.sessions[key] = sess
	return sess
}

// Get returns the session for key if present.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[key]
	return sess, ok
}

// Remove drops the session for key.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Len reports the number of in-flight sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// DeriveKey returns the provider call identifier when available, otherwise a
// freshly generated fallback key. The fallback is unique within the process
// but is not a production-grade identity for the call; callers relying on
// caller-identity resolution need the real CallSid.
func DeriveKey(callSid string) string {
	if callSid != "" {
		return callSid
	}
	return "session_" + uuid.New().String()
}

// IsCallSid reports whether a session key is a provider call identifier
// (Twilio call SIDs carry the CA prefix).
func IsCallSid(key string) bool {
	return strings.HasPrefix(key, "CA")
}
