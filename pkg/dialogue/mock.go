package dialogue

import (
	"context"
	"sync"
)

// Mock implements Policy for testing.
type Mock struct {
	// DecideFunc is called when Decide is invoked.
	// If nil, echoes the utterance and keeps the state.
	DecideFunc func(ctx context.Context, state State, text string) (*Decision, error)

	mu    sync.Mutex
	calls []string
}

// Decide calls DecideFunc and records the utterance.
func (m *Mock) Decide(ctx context.Context, state State, text string) (*Decision, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.DecideFunc != nil {
		return m.DecideFunc(ctx, state, text)
	}
	return &Decision{ResponseText: "you said: " + text, NextState: state}, nil
}

// Calls returns the utterances passed to Decide, in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Decide invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Verify Mock implements Policy at compile time.
var _ Policy = (*Mock)(nil)
