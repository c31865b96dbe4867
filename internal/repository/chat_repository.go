package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smart-care/voice-gateway/internal/domain"
)

// ChatRepository stores chat turns and request-tracking lookups.
type ChatRepository interface {
	Append(ctx context.Context, msg *domain.ChatMessage) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
	RecordTracking(ctx context.Context, lookup *domain.TrackingLookup) error
}

type chatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository instantiates repository.
func NewChatRepository(pool *pgxpool.Pool) ChatRepository {
	return &chatRepository{pool: pool}
}

func (r *chatRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_history (user_id, user_message, has_image, ai_response)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.UserID,
		msg.UserMessage,
		msg.HasImage,
		msg.AIResponse,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *chatRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, user_id, user_message, has_image, ai_response, created_at
        FROM chat_history WHERE user_id=$1
        ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.UserMessage, &msg.HasImage, &msg.AIResponse, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (r *chatRepository) RecordTracking(ctx context.Context, lookup *domain.TrackingLookup) error {
	const query = `
        INSERT INTO request_tracking (user_id, request_number)
        VALUES ($1,$2)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		lookup.UserID,
		lookup.RequestNumber,
	).Scan(&lookup.ID, &lookup.CreatedAt)
}
