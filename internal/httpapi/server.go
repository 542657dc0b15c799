// Package httpapi is the server's outer surface: the REST routes and
// the websocket endpoint clients connect to. Handlers authenticate,
// decode, call one service method and encode; everything stateful lives
// below in the services.
package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huddle-im/huddle/internal/auth"
	"github.com/huddle-im/huddle/internal/chat"
	"github.com/huddle-im/huddle/internal/presence"
	"github.com/huddle-im/huddle/internal/registry"
	"github.com/huddle-im/huddle/internal/social"
	"go.uber.org/zap"
)

// Server bundles the fiber app with the services the handlers call.
type Server struct {
	app      *fiber.App
	verifier *auth.Verifier
	social   *social.Service
	chat     *chat.Service
	presence *presence.Service
	registry *registry.Registry
	logger   *zap.Logger
}

// Config holds the listener settings.
type Config struct {
	Addr string
}

// New builds the server and registers every route.
func New(
	verifier *auth.Verifier,
	socialSvc *social.Service,
	chatSvc *chat.Service,
	presenceSvc *presence.Service,
	reg *registry.Registry,
	logger *zap.Logger,
) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		verifier: verifier,
		social:   socialSvc,
		chat:     chatSvc,
		presence: presenceSvc,
		registry: reg,
		logger:   logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"connections": s.registry.Len(),
		})
	})

	s.app.Get("/ws", s.wsUpgrade, s.wsHandler())

	api := s.app.Group("/api", s.verifier.Middleware())

	api.Post("/chat-requests", s.handleSendRequest)
	api.Post("/chat-requests/:id/accept", s.handleAcceptRequest)
	api.Post("/chat-requests/:id/decline", s.handleDeclineRequest)
	api.Get("/chat-requests/pending", s.handlePendingRequests)
	api.Get("/chat-requests/sent", s.handleSentRequests)
	api.Get("/chat-requests/status", s.handleRelationStatus)

	api.Get("/contacts", s.handleContacts)
	api.Get("/contacts/check/:userId", s.handleContactCheck)

	api.Get("/chats", s.handleListChats)
	api.Post("/chats/direct", s.handleResolveDirect)
	api.Post("/chats/group", s.handleCreateGroup)
	api.Get("/chats/:id", s.handleGetChat)
	api.Patch("/chats/:id/last-message", s.handleUpdateLastMessage)

	api.Get("/messages/:chatId", s.handleListMessages)
	api.Post("/messages", s.handleSendMessage)
	api.Post("/messages/:chatId/read", s.handleMarkRead)
	api.Post("/messages/:chatId/typing", s.handleTyping)

	api.Put("/presence", s.handleReportPresence)
	api.Get("/presence/:userId", s.handleGetPresence)
	api.Post("/presence/batch", s.handleBatchPresence)
}

// App exposes the fiber app, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
