package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/smart-care/voice-gateway/internal/api/http/handlers"
	"github.com/smart-care/voice-gateway/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Calls          *handlers.CallHandler
	Chat           *handlers.ChatHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Voice gateway is running"})
	})
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	me := authGroup.Group("/me", cfg.AuthMiddleware.Handle)
	me.Get("/", cfg.Users.Me)
	me.Get("/tickets", cfg.Users.MyTickets)

	app.Post("/make-call", cfg.Calls.MakeCall)
	app.Post("/incoming-call", cfg.Calls.IncomingCall)
	app.Get("/incoming-call", cfg.Calls.IncomingCall)
	app.Post("/call-status", cfg.Calls.CallStatus)
	app.Post("/manual-ticket", cfg.Calls.ManualTicket)

	app.Use("/media-stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/media-stream", websocket.New(cfg.Calls.MediaStream))

	chatGroup := app.Group("", cfg.AuthMiddleware.Handle)
	chatGroup.Post("/chat", cfg.Chat.Chat)
	chatGroup.Get("/chat/history", cfg.Chat.History)
	chatGroup.Post("/track-request", cfg.Chat.TrackRequest)
}
