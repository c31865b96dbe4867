package domain

import "time"

// CallTranscript is the raw conversation log persisted when a media stream
// closes. The call-status webhook reads it back when it has to run the
// pipeline for a call whose stream path never fired.
type CallTranscript struct {
	ID         string
	CallSid    string
	Transcript string
	UserID     *string
	CreatedAt  time.Time
}

// ChatMessage is one stored turn of the synchronous chat channel.
type ChatMessage struct {
	ID          string
	UserID      string
	UserMessage string
	HasImage    bool
	AIResponse  string
	CreatedAt   time.Time
}

// TrackingLookup records that a user asked about a request number.
type TrackingLookup struct {
	ID            string
	UserID        string
	RequestNumber string
	CreatedAt     time.Time
}
