package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/smart-care/voice-gateway/internal/api/dto"
	"github.com/smart-care/voice-gateway/internal/auth"
	"github.com/smart-care/voice-gateway/internal/domain"
	"github.com/smart-care/voice-gateway/internal/service"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

// UsersHandler exposes auth and account endpoints for residents.
type UsersHandler struct {
	auth    *service.AuthService
	tickets *service.TicketService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, ticketService *service.TicketService) *UsersHandler {
	return &UsersHandler{auth: authService, tickets: ticketService}
}

func userView(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:         user.ID,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Email:      user.Email,
		Phone:      user.Phone,
		Community:  user.Community,
		UnitNumber: user.UnitNumber,
	}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, token, exp, err := h.auth.Register(c.Context(), service.RegisterInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Community:  req.Community,
		UnitNumber: req.UnitNumber,
		Password:   req.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": userView(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	user, token, exp, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": userView(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Me handles GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}
	return c.JSON(fiber.Map{"data": userView(principal.User)})
}

// MyTickets handles GET /auth/me/tickets.
func (h *UsersHandler) MyTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	links, err := h.tickets.TicketsForUser(c.Context(), principal.User.ID)
	if err != nil {
		return apperrors.NewStoreUnavailable(err)
	}

	items := make([]fiber.Map, 0, len(links))
	for _, link := range links {
		items = append(items, fiber.Map{
			"ticketId":     link.TicketID,
			"ticketNumber": link.TicketNumber,
			"summary":      link.Summary,
			"status":       link.Status,
			"createdAt":    link.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
