// Package web serves the agent's HTTP surface: call media websockets,
// the kitchen dashboard API, and health checks.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/charcochicken/voiceagent/pkg/hub"
	"github.com/charcochicken/voiceagent/pkg/order"
	"github.com/charcochicken/voiceagent/pkg/session"
)

// Server exposes the voice agent over HTTP and websockets.
//
// Routes:
//
//	GET  /health              liveness and active call count
//	GET  /api/sessions        active session snapshots
//	GET  /api/sessions/:id    one session snapshot
//	GET  /api/orders          confirmed orders, newest first
//	POST /api/orders/:id/complete
//	WS   /ws/call/:id         call media (binary mu-law + JSON control)
//	WS   /ws/events           dashboard call-event feed
type Server struct {
	app    *fiber.App
	port   string
	orch   *session.Orchestrator
	orders *order.Book
	events *hub.Hub
	logger *slog.Logger
}

// NewServer wires the orchestrator, order book, and event hub into a
// fiber app.
func NewServer(port string, orch *session.Orchestrator, orders *order.Book, events *hub.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		port:   port,
		orch:   orch,
		orders: orders,
		events: events,
		logger: logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Charco Voice Agent",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/sessions", s.handleListSessions)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Get("/orders", s.handleListOrders)
	api.Post("/orders/:id/complete", s.handleCompleteOrder)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/call/:id", websocket.New(s.handleCallWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the event hub and listens on the configured port. Blocks.
func (s *Server) Start() error {
	if s.events != nil {
		go s.events.Run()
	}
	s.logger.Info("listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown gracefully stops the server and the event hub.
func (s *Server) Shutdown() error {
	if s.events != nil {
		s.events.Close()
	}
	return s.app.Shutdown()
}

// App returns the underlying fiber app, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}
