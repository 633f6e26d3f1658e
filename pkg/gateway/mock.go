package gateway

import (
	"context"
	"sync"
)

// MockStream is a Stream for tests. It records played audio and can be
// configured to fail or delay playback.
type MockStream struct {
	// ID is returned by CallID.
	ID string

	// PlayErr, when set, is returned by every Play call.
	PlayErr error

	// PlayFunc, when set, replaces the default Play behavior.
	PlayFunc func(ctx context.Context, ulaw []byte) error

	mu     sync.Mutex
	played [][]byte
	closed bool
}

// NewMockStream creates an open mock stream for the given call.
func NewMockStream(callID string) *MockStream {
	return &MockStream{ID: callID}
}

// CallID returns the configured call ID.
func (m *MockStream) CallID() string { return m.ID }

// Play records the audio, or delegates to PlayFunc / returns PlayErr.
func (m *MockStream) Play(ctx context.Context, ulaw []byte) error {
	if m.PlayFunc != nil {
		return m.PlayFunc(ctx, ulaw)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStreamClosed
	}
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.played = append(m.played, append([]byte(nil), ulaw...))
	return nil
}

// Open reports whether the stream has been closed.
func (m *MockStream) Open() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Close marks the stream closed.
func (m *MockStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Played returns all audio segments played so far.
func (m *MockStream) Played() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.played))
	copy(out, m.played)
	return out
}

// PlayCount returns how many segments were played.
func (m *MockStream) PlayCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.played)
}

// Reset clears recorded playback.
func (m *MockStream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = nil
}

var _ Stream = (*MockStream)(nil)
