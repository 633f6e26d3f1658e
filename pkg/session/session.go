// Package session is the call orchestrator: it owns the lifecycle of one
// phone call and coordinates turn-taking between the telephony gateway,
// the transcriber, the dialogue policy, and the synthesizer.
//
// Each call runs a small state machine:
//
//	Listening -> Transcribing -> Deciding -> Speaking -> Listening
//	                                     \-> Ended
//
// Listening accumulates caller audio until the gateway signals end of
// utterance. The buffered segment is transcribed, the policy decides the
// response, the response is synthesized and played back, and the session
// returns to Listening. Hangup, inactivity, or an unrecoverable provider
// failure ends the call from any state.
//
// Example usage:
//
//	orch, _ := session.New(
//	    session.WithSTT(sttProvider),
//	    session.WithPolicy(dialogue.NewRules()),
//	    session.WithTTS(ttsProvider),
//	)
//	orch.StartSession("call-1", stream)
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/charcochicken/voiceagent/pkg/audio"
	"github.com/charcochicken/voiceagent/pkg/dialogue"
	"github.com/charcochicken/voiceagent/pkg/gateway"
)

// State is a call session's lifecycle state.
type State string

const (
	// StateListening accumulates caller audio. Initial state unless a
	// greeting is configured, in which case the session starts Speaking.
	StateListening State = "listening"

	// StateTranscribing awaits the transcriber for the buffered segment.
	StateTranscribing State = "transcribing"

	// StateDeciding awaits the dialogue policy.
	StateDeciding State = "deciding"

	// StateSpeaking awaits synthesis and playback of the response.
	StateSpeaking State = "speaking"

	// StateEnded is terminal.
	StateEnded State = "ended"
)

// Turn is one completed caller-utterance/agent-response cycle. Immutable
// once appended to the session history.
type Turn struct {
	Counter       int           `json:"counter"`
	CallerText    string        `json:"caller_text"`
	Confidence    float64       `json:"confidence"`
	ResponseText  string        `json:"response_text"`
	AudioDuration time.Duration `json:"audio_duration"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// Session is one active call. All fields behind mu; sessions are driven
// by one turn goroutine at a time, but gateway events and the registry
// touch them concurrently.
type Session struct {
	id     string
	stream gateway.Stream

	mu           sync.Mutex
	state        State
	dialog       dialogue.State
	turnCounter  int
	turns        []Turn
	buffer       *audio.Buffer
	createdAt    time.Time
	lastActivity time.Time
	errKind      ErrKind
	idle         *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// Snapshot is a point-in-time copy of a session for inspection.
type Snapshot struct {
	CallID       string          `json:"call_id"`
	State        State           `json:"state"`
	Stage        string          `json:"stage"`
	Cart         []dialogue.Item `json:"cart,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	TurnCount    int             `json:"turn_count"`
	Turns        []Turn          `json:"turns,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity time.Time       `json:"last_activity"`
	ErrorKind    ErrKind         `json:"error_kind,omitempty"`
}

// ID returns the call ID.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ErrorKind returns the failure recorded on a terminal transition, if any.
func (s *Session) ErrorKind() ErrKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errKind
}

// Turns returns a copy of the completed turn history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Snapshot copies the session's observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	cart := make([]dialogue.Item, len(s.dialog.Items))
	copy(cart, s.dialog.Items)

	return Snapshot{
		CallID:       s.id,
		State:        s.state,
		Stage:        s.dialog.Stage,
		Cart:         cart,
		CustomerName: s.dialog.CustomerName,
		TurnCount:    s.turnCounter,
		Turns:        turns,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		ErrorKind:    s.errKind,
	}
}

// touch records caller activity and pushes back the inactivity deadline.
// Callers must hold mu.
func (s *Session) touchLocked(timeout time.Duration) {
	s.lastActivity = time.Now()
	if s.idle != nil {
		s.idle.Reset(timeout)
	}
}

// transition moves the session to the given state unless it has ended.
// Returns false once terminal.
func (s *Session) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEnded {
		return false
	}
	s.state = to
	return true
}

// ended reports whether the session reached its terminal state.
func (s *Session) ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateEnded
}
