package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/smart-care/voice-gateway/internal/api/dto"
	"github.com/smart-care/voice-gateway/internal/auth"
	"github.com/smart-care/voice-gateway/internal/service"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

// ChatHandler exposes the synchronous text channel.
type ChatHandler struct {
	chat     *service.ChatService
	tickets  *service.TicketService
	pipeline *service.Pipeline
}

// NewChatHandler constructs handler.
func NewChatHandler(chatService *service.ChatService, ticketService *service.TicketService, pipeline *service.Pipeline) *ChatHandler {
	return &ChatHandler{chat: chatService, tickets: ticketService, pipeline: pipeline}
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	var req dto.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	reply, err := h.chat.Reply(c.Context(), principal.User.ID, req.Message, req.Image)
	if err != nil {
		return err
	}

	resp := dto.ChatResponse{Response: reply}
	if req.CreateTicket {
		transcript, err := h.chat.Transcript(c.Context(), principal.User.ID, 50)
		if err != nil {
			return apperrors.NewStoreUnavailable(err)
		}
		ref, err := h.pipeline.ProcessChat(c.Context(), principal.User, transcript)
		if err != nil {
			return err
		}
		resp.TicketNumber = ref.TicketNumber
	}
	return c.JSON(resp)
}

// History handles GET /chat/history.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	limit := c.QueryInt("limit", 50)
	history, err := h.chat.History(c.Context(), principal.User.ID, limit)
	if err != nil {
		return apperrors.NewStoreUnavailable(err)
	}

	items := make([]fiber.Map, 0, len(history))
	for _, msg := range history {
		items = append(items, fiber.Map{
			"message":   msg.UserMessage,
			"hasImage":  msg.HasImage,
			"response":  msg.AIResponse,
			"createdAt": msg.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// TrackRequest handles POST /track-request.
func (h *ChatHandler) TrackRequest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	var req dto.TrackRequestBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.RequestNumber == "" {
		return fiber.NewError(http.StatusBadRequest, "requestNumber required")
	}

	result, err := h.tickets.Track(c.Context(), req.RequestNumber)
	if err != nil {
		return err
	}
	h.chat.RecordTracking(c.Context(), principal.User.ID, req.RequestNumber)

	resp := dto.TrackResponse{RequestNumber: req.RequestNumber, Found: result.Found}
	if result.Found {
		resp.Status = string(result.Status)
		resp.Description = result.Description
	} else {
		resp.Message = "Request number not found"
	}
	return c.JSON(resp)
}
