package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/ai"
	"github.com/smart-care/voice-gateway/internal/domain"
	"github.com/smart-care/voice-gateway/internal/repository"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

// ChatService answers the synchronous text channel. Each turn is stateless
// towards the AI provider; history is stored for the user's benefit only.
type ChatService struct {
	client ai.CompletionClient
	chats  repository.ChatRepository
	logger *zap.Logger
}

// NewChatService builds the service.
func NewChatService(client ai.CompletionClient, chats repository.ChatRepository, logger *zap.Logger) *ChatService {
	return &ChatService{client: client, chats: chats, logger: logger}
}

// Reply answers one chat turn. Image is optional base64 PNG data. The turn
// is persisted best-effort after the reply is produced.
func (s *ChatService) Reply(ctx context.Context, userID, message, image string) (string, error) {
	if message == "" && image == "" {
		return "", apperrors.NewValidationError("message or image is required", nil)
	}

	parts := make([]ai.ChatPart, 0, 2)
	if message != "" {
		parts = append(parts, ai.ChatPart{Text: message})
	}
	if image != "" {
		parts = append(parts, ai.ChatPart{Image: image})
	}

	reply, err := s.client.ChatReply(ctx, ai.ChatSystemPrompt, parts)
	if err != nil {
		return "", apperrors.NewTransportError("chat completion failed", err)
	}

	if s.chats != nil && userID != "" {
		record := &domain.ChatMessage{
			ID:          uuid.New().String(),
			UserID:      userID,
			UserMessage: message,
			HasImage:    image != "",
			AIResponse:  reply,
			CreatedAt:   time.Now(),
		}
		if err := s.chats.Append(ctx, record); err != nil {
			s.logger.Warn("persist chat turn", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return reply, nil
}

// History returns the most recent stored turns for a user.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if s.chats == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return s.chats.ListByUser(ctx, userID, limit)
}

// Transcript renders a user's recent turns in conversational order, in the
// same format the voice channel produces, so the extraction pipeline can run
// over a chat conversation.
func (s *ChatService) Transcript(ctx context.Context, userID string, limit int) (string, error) {
	history, err := s.History(ctx, userID, limit)
	if err != nil {
		return "", err
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})

	var b strings.Builder
	for _, msg := range history {
		if msg.UserMessage != "" {
			b.WriteString("User: " + msg.UserMessage + "\n")
		}
		if msg.AIResponse != "" {
			b.WriteString("Agent: " + msg.AIResponse + "\n")
		}
	}
	return b.String(), nil
}

// RecordTracking notes that a user asked about a request number. Best-effort.
func (s *ChatService) RecordTracking(ctx context.Context, userID, requestNumber string) {
	if s.chats == nil || userID == "" {
		return
	}
	lookup := &domain.TrackingLookup{
		ID:            uuid.New().String(),
		UserID:        userID,
		RequestNumber: requestNumber,
		CreatedAt:     time.Now(),
	}
	if err := s.chats.RecordTracking(ctx, lookup); err != nil {
		s.logger.Warn("record tracking lookup", zap.String("user_id", userID), zap.Error(err))
	}
}
