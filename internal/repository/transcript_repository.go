package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smart-care/voice-gateway/internal/domain"
)

// TranscriptRepository stores raw call transcripts so the call-status
// webhook can recover a conversation the stream-close path already saved.
type TranscriptRepository interface {
	Save(ctx context.Context, transcript *domain.CallTranscript) error
	GetByCallSid(ctx context.Context, callSid string) (*domain.CallTranscript, error)
}

type transcriptRepository struct {
	pool *pgxpool.Pool
}

// NewTranscriptRepository instantiates repository.
func NewTranscriptRepository(pool *pgxpool.Pool) TranscriptRepository {
	return &transcriptRepository{pool: pool}
}

func (r *transcriptRepository) Save(ctx context.Context, transcript *domain.CallTranscript) error {
	const query = `
        INSERT INTO call_transcripts (call_sid, transcript, user_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		transcript.CallSid,
		transcript.Transcript,
		transcript.UserID,
	).Scan(&transcript.ID, &transcript.CreatedAt)
}

func (r *transcriptRepository) GetByCallSid(ctx context.Context, callSid string) (*domain.CallTranscript, error) {
	const query = `
        SELECT id, call_sid, transcript, user_id, created_at
        FROM call_transcripts WHERE call_sid=$1
        ORDER BY created_at DESC LIMIT 1`

	var tr domain.CallTranscript
	if err := r.pool.QueryRow(ctx, query, callSid).Scan(
		&tr.ID,
		&tr.CallSid,
		&tr.Transcript,
		&tr.UserID,
		&tr.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &tr, nil
}
