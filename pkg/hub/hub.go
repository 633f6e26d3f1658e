// Package hub fans live call events out to dashboard websocket clients
// using the channel-based broadcast pattern.
//
// The orchestrator publishes events (session_started, turn_completed,
// order_placed, session_ended) and every connected dashboard client
// receives them as JSON. Slow clients are dropped rather than allowed
// to stall the broadcast loop.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event is one call event as broadcast to dashboard clients.
type Event struct {
	CallID string         `json:"call_id"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields,omitempty"`
	Time   time.Time      `json:"time"`
}

// Hub maintains the set of connected clients and broadcasts call events
// to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once

	mu     sync.RWMutex
	logger *slog.Logger
}

// New creates a hub. Call Run in a goroutine before accepting clients.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "hub"),
	}
}

// Run is the hub's main loop. It owns the client set; all membership
// changes flow through the register and unregister channels. Run
// returns after Close, disconnecting every remaining client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Debug("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "remaining", count)

		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client buffer full: too slow, drop it
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// CallEvent broadcasts one call event. Non-blocking: the event is
// dropped when the broadcast queue is full.
func (h *Hub) CallEvent(callID, kind string, fields map[string]any) {
	data, err := json.Marshal(Event{
		CallID: callID,
		Kind:   kind,
		Fields: fields,
		Time:   time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("event encode failed", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "kind", kind)
	}
}

// Close stops the broadcast loop. Idempotent.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
