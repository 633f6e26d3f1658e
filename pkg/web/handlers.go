package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/charcochicken/voiceagent/internal/log"
	"github.com/charcochicken/voiceagent/pkg/gateway"
	"github.com/charcochicken/voiceagent/pkg/hub"
	"github.com/charcochicken/voiceagent/pkg/session"
)

// handleHealth reports liveness and the active call count.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "ok",
		"active_calls": s.orch.Count(),
	})
}

// handleListSessions returns all active session snapshots.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	return c.JSON(s.orch.Sessions())
}

// handleGetSession returns one session snapshot.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	snap, ok := s.orch.Session(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no active session",
		})
	}
	return c.JSON(snap)
}

// handleListOrders returns confirmed orders, newest first.
func (s *Server) handleListOrders(c *fiber.Ctx) error {
	if s.orders == nil {
		return c.JSON([]any{})
	}
	return c.JSON(s.orders.List())
}

// handleCompleteOrder marks an order done from the kitchen dashboard.
func (s *Server) handleCompleteOrder(c *fiber.Ctx) error {
	if s.orders == nil || !s.orders.Complete(c.Params("id")) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown order",
		})
	}
	return c.JSON(fiber.Map{"status": "completed"})
}

// handleCallWS bridges one call's media websocket into the orchestrator.
// The connection is the call: opening it starts the session, closing it
// hangs up.
func (s *Server) handleCallWS(conn *websocket.Conn) {
	callID := conn.Params("id")
	if callID == "" {
		conn.Close()
		return
	}

	stream := gateway.NewWSStream(callID, conn, log.ForCall(callID))
	if _, err := s.orch.StartSession(callID, stream); err != nil {
		if errors.Is(err, session.ErrDuplicateSession) {
			s.logger.Warn("rejected duplicate call", "call_id", callID)
		} else {
			s.logger.Error("session start failed", "call_id", callID, "error", err)
		}
		stream.Close()
		conn.Close()
		return
	}

	// Blocks until the caller disconnects; Serve delivers the hangup.
	stream.Serve(s.orch)
}

// handleEventsWS streams live call events to a dashboard client.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	if s.events == nil {
		conn.Close()
		return
	}
	client := hub.NewClient(s.events, conn)
	client.Run()
}
