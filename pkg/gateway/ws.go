package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames; audio chunks are small
	maxMessageSize = 64 * 1024
)

// wsFrame is one outbound frame queued for the write pump. done, when
// non-nil, is closed after the frame hits the wire so Play can observe
// playback completion.
type wsFrame struct {
	data []byte
	done chan struct{}
}

// WSStream is a Stream over a single websocket connection.
type WSStream struct {
	callID string
	conn   *websocket.Conn
	send   chan wsFrame
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewWSStream wraps an accepted websocket connection as a call media
// stream and starts its write pump. The caller must then run Serve to
// drive inbound events.
func NewWSStream(callID string, conn *websocket.Conn, logger *slog.Logger) *WSStream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &WSStream{
		callID: callID,
		conn:   conn,
		send:   make(chan wsFrame, 256),
		closed: make(chan struct{}),
		logger: logger.With("component", "gateway.ws"),
	}
	go s.writePump()
	return s
}

// CallID returns the call this stream belongs to.
func (s *WSStream) CallID() string { return s.callID }

// Open reports whether the connection is still up.
func (s *WSStream) Open() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

// Play queues audio for the write pump and blocks until the last frame
// has been written, the context is cancelled, or the stream closes.
func (s *WSStream) Play(ctx context.Context, ulaw []byte) error {
	if !s.Open() {
		return ErrStreamClosed
	}

	frames := splitFrames(ulaw)
	if len(frames) == 0 {
		return nil
	}

	done := make(chan struct{})
	for i, frame := range frames {
		f := wsFrame{data: frame}
		if i == len(frames)-1 {
			f.done = done
		}
		select {
		case s.send <- f:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return ErrStreamClosed
		}
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrStreamClosed
	}
}

// Close tears down the connection. Safe to call more than once.
func (s *WSStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// Serve is the read pump: it delivers inbound audio and control events
// to the handler until the connection drops or the caller hangs up.
// It blocks, so call it from the websocket handler goroutine.
func (s *WSStream) Serve(h Handler) {
	defer func() {
		s.Close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug("connection closed", "error", err)
			h.OnHangup(s.callID)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := h.OnAudioChunk(s.callID, data); err != nil {
				s.logger.Debug("audio chunk rejected", "error", err)
			}

		case websocket.TextMessage:
			var ev ControlEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				s.logger.Warn("bad control frame", "error", err)
				continue
			}
			switch ev.Event {
			case EventEndOfUtterance:
				if err := h.OnEndOfUtterance(s.callID); err != nil {
					s.logger.Debug("end of utterance rejected", "error", err)
				}
			case EventHangup:
				h.OnHangup(s.callID)
				return
			default:
				s.logger.Warn("unknown control event", "event", ev.Event)
			}
		}
	}
}

// writePump writes queued frames to the connection, paced at real time
// so the caller hears audio at playback speed. Only this goroutine
// writes to the connection.
func (s *WSStream) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame.data); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.Close()
				return
			}
			if frame.done != nil {
				close(frame.done)
			}
			time.Sleep(FrameDuration)

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}

		case <-s.closed:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

var _ Stream = (*WSStream)(nil)
