package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charcochicken/voiceagent/pkg/audio"
	"github.com/charcochicken/voiceagent/pkg/dialogue"
	"github.com/charcochicken/voiceagent/pkg/gateway"
	"github.com/charcochicken/voiceagent/pkg/order"
	"github.com/charcochicken/voiceagent/pkg/stt"
	"github.com/charcochicken/voiceagent/pkg/tts"
)

// Orchestrator owns all active call sessions. It implements
// gateway.Handler so a media transport can feed it directly.
type Orchestrator struct {
	cfg *Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an orchestrator from options applied over DefaultConfig.
func New(opts ...Option) (*Orchestrator, error) {
	cfg := DefaultConfig().Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Logger = cfg.Logger.With("component", "session.orchestrator")

	return &Orchestrator{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}, nil
}

// StartSession creates a session for the call. Fails with
// ErrDuplicateSession if the call ID is already active. Without a
// greeting the session starts in Listening; with one it starts in
// Speaking and caller audio is rejected until the greeting has played,
// so the first caller turn cannot race the greeting goroutine.
func (o *Orchestrator) StartSession(callID string, stream gateway.Stream) (*Session, error) {
	initial := StateListening
	if o.cfg.Greeting != "" {
		initial = StateSpeaking
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	s := &Session{
		id:           callID,
		stream:       stream,
		state:        initial,
		buffer:       audio.NewBuffer(o.cfg.MaxUtteranceBytes),
		createdAt:    now,
		lastActivity: now,
		ctx:          ctx,
		cancel:       cancel,
		logger:       o.cfg.Logger.With("call_id", callID),
	}

	o.mu.Lock()
	if _, exists := o.sessions[callID]; exists {
		o.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, callID)
	}
	o.sessions[callID] = s
	o.mu.Unlock()

	s.mu.Lock()
	s.idle = time.AfterFunc(o.cfg.InactivityTimeout, func() {
		s.logger.Warn("inactivity timeout")
		o.end(s, ErrKindTimeout, true)
	})
	s.mu.Unlock()

	s.logger.Info("session started")
	o.publish(s, "session_started", nil)

	if o.cfg.Greeting != "" {
		go o.greet(s)
	}
	return s, nil
}

// OnAudioChunk appends caller audio to the current utterance buffer.
// Valid only in Listening.
func (o *Orchestrator) OnAudioChunk(callID string, chunk []byte) error {
	s, err := o.lookup(callID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateEnded:
		return fmt.Errorf("%w: %s", ErrSessionEnded, callID)
	case StateListening:
	default:
		return fmt.Errorf("%w: audio chunk in %s", ErrInvalidState, s.state)
	}

	if err := s.buffer.Append(chunk); err != nil {
		return err
	}
	s.touchLocked(o.cfg.InactivityTimeout)
	return nil
}

// OnEndOfUtterance closes the current utterance and starts a turn:
// Listening moves to Transcribing and the buffered segment goes to the
// transcriber. An empty buffer is ignored.
func (o *Orchestrator) OnEndOfUtterance(callID string) error {
	s, err := o.lookup(callID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	switch s.state {
	case StateEnded:
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionEnded, callID)
	case StateListening:
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: end of utterance in %s", ErrInvalidState, s.state)
	}

	if s.buffer.Len() == 0 {
		s.mu.Unlock()
		s.logger.Debug("end of utterance with empty buffer")
		return nil
	}

	s.state = StateTranscribing
	s.turnCounter++
	counter := s.turnCounter
	segment := s.buffer.Take()
	s.touchLocked(o.cfg.InactivityTimeout)
	s.mu.Unlock()

	go o.runTurn(s, counter, segment)
	return nil
}

// OnHangup ends the call from any state, cancelling in-flight provider
// work and releasing the session. Idempotent: hanging up an unknown or
// already-ended call is a no-op.
func (o *Orchestrator) OnHangup(callID string) {
	s, err := o.lookup(callID)
	if err != nil {
		return
	}
	s.logger.Info("hangup")
	o.end(s, ErrKindNone, false)
}

// Session returns a snapshot of the active session, if any.
func (o *Orchestrator) Session(callID string) (Snapshot, bool) {
	s, err := o.lookup(callID)
	if err != nil {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Sessions returns snapshots of all active sessions.
func (o *Orchestrator) Sessions() []Snapshot {
	o.mu.Lock()
	all := make([]*Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		all = append(all, s)
	}
	o.mu.Unlock()

	out := make([]Snapshot, len(all))
	for i, s := range all {
		out[i] = s.Snapshot()
	}
	return out
}

// Count returns the number of active sessions.
func (o *Orchestrator) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// Close hangs up every active session.
func (o *Orchestrator) Close() {
	for _, snap := range o.Sessions() {
		o.OnHangup(snap.CallID)
	}
}

func (o *Orchestrator) lookup(callID string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[callID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, callID)
	}
	return s, nil
}

func (o *Orchestrator) remove(callID string) {
	o.mu.Lock()
	delete(o.sessions, callID)
	o.mu.Unlock()
}

// runTurn drives one turn through transcription, policy, and synthesis.
// It is the session's sole thread of control until the turn completes.
func (o *Orchestrator) runTurn(s *Session, counter int, segment []byte) {
	started := time.Now()
	pcm := audio.DecodeUlaw(segment)

	utt, err := o.transcribe(s, pcm)
	if err != nil {
		if s.ctx.Err() != nil || s.ended() {
			return
		}
		// Two transcription failures: ask the caller to repeat and go
		// back to Listening without involving the policy.
		s.logger.Warn("transcription failed", "turn", counter, "error", err)
		o.speakAndListen(s, counter, started, "", 0, o.cfg.RepeatPrompt)
		return
	}

	if !utt.Usable(o.cfg.ConfidenceThreshold) {
		s.logger.Info("low confidence, asking for clarification",
			"turn", counter, "confidence", utt.Confidence)
		o.publish(s, "clarification", map[string]any{"turn": counter})
		o.speakAndListen(s, counter, started, utt.Text, utt.Confidence, o.cfg.ClarificationPrompt)
		return
	}

	if !s.transition(StateDeciding) {
		return
	}

	s.mu.Lock()
	state := s.dialog
	s.mu.Unlock()

	decision, err := o.decide(s, state, utt.Text)
	if err != nil {
		if s.ctx.Err() != nil || s.ended() {
			return
		}
		s.logger.Error("policy failed", "turn", counter, "error", err)
		o.end(s, kindFor(err, ErrKindPolicy), true)
		return
	}

	if !s.transition(StateSpeaking) {
		return
	}

	result, err := o.synthesize(s, decision.ResponseText)
	if err != nil {
		if s.ctx.Err() != nil || s.ended() {
			return
		}
		s.logger.Error("synthesis failed", "turn", counter, "error", err)
		o.end(s, kindFor(err, ErrKindSynthesis), true)
		return
	}

	o.runSideEffects(s, decision.SideEffects)

	if err := s.stream.Play(s.ctx, result.Audio); err != nil {
		s.logger.Warn("playback failed", "turn", counter, "error", err)
		o.end(s, ErrKindNone, false)
		return
	}

	o.completeTurn(s, Turn{
		Counter:       counter,
		CallerText:    utt.Text,
		Confidence:    utt.Confidence,
		ResponseText:  decision.ResponseText,
		AudioDuration: result.Duration,
		StartedAt:     started,
		CompletedAt:   time.Now(),
	}, &decision.NextState)

	if decision.EndCall {
		s.logger.Info("policy ended call", "turn", counter)
		o.end(s, ErrKindNone, false)
		return
	}
	s.transition(StateListening)
}

// speakAndListen plays a prompt and returns the session to Listening.
// Used for clarification and repeat turns that never reach the policy.
func (o *Orchestrator) speakAndListen(s *Session, counter int, started time.Time, callerText string, confidence float64, prompt string) {
	if !s.transition(StateSpeaking) {
		return
	}

	result, err := o.synthesize(s, prompt)
	if err != nil {
		if s.ctx.Err() != nil || s.ended() {
			return
		}
		s.logger.Error("prompt synthesis failed", "error", err)
		o.end(s, kindFor(err, ErrKindSynthesis), true)
		return
	}

	if err := s.stream.Play(s.ctx, result.Audio); err != nil {
		o.end(s, ErrKindNone, false)
		return
	}

	o.completeTurn(s, Turn{
		Counter:       counter,
		CallerText:    callerText,
		Confidence:    confidence,
		ResponseText:  prompt,
		AudioDuration: result.Duration,
		StartedAt:     started,
		CompletedAt:   time.Now(),
	}, nil)
	s.transition(StateListening)
}

// greet speaks the opening line and releases the session to Listening.
// The session is already in Speaking, so no caller turn can be running.
func (o *Orchestrator) greet(s *Session) {
	result, err := o.synthesize(s, o.cfg.Greeting)
	if err != nil {
		if s.ctx.Err() != nil || s.ended() {
			return
		}
		s.logger.Error("greeting synthesis failed", "error", err)
		o.end(s, kindFor(err, ErrKindSynthesis), true)
		return
	}

	if err := s.stream.Play(s.ctx, result.Audio); err != nil {
		o.end(s, ErrKindNone, false)
		return
	}

	s.mu.Lock()
	if s.state == StateSpeaking {
		s.dialog.LastResponse = o.cfg.Greeting
		s.state = StateListening
	}
	s.mu.Unlock()
}

// completeTurn appends the finished turn and commits the successor
// dialogue state. No-op once the session has ended.
func (o *Orchestrator) completeTurn(s *Session, turn Turn, next *dialogue.State) {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.turns = append(s.turns, turn)
	if next != nil {
		s.dialog = *next
	}
	s.touchLocked(o.cfg.InactivityTimeout)
	s.mu.Unlock()

	o.publish(s, "turn_completed", map[string]any{
		"turn":          turn.Counter,
		"caller_text":   turn.CallerText,
		"response_text": turn.ResponseText,
	})
}

// runSideEffects executes policy-requested actions.
func (o *Orchestrator) runSideEffects(s *Session, effects []dialogue.SideEffect) {
	for _, effect := range effects {
		switch effect.Kind {
		case dialogue.SideEffectSubmitOrder:
			if o.cfg.Orders == nil {
				s.logger.Warn("no order book configured, dropping order")
				continue
			}
			items := make([]order.Item, len(effect.Items))
			for i, it := range effect.Items {
				items[i] = order.Item{Name: it.Name, Quantity: it.Quantity}
			}
			placed, err := o.cfg.Orders.Submit(effect.CustomerName, items)
			if err != nil {
				s.logger.Error("order submission failed", "error", err)
				continue
			}
			s.logger.Info("order placed", "order_id", placed.ID,
				"customer", placed.CustomerName, "items", len(placed.Items))
			o.publish(s, "order_placed", map[string]any{"order_id": placed.ID})
		default:
			s.logger.Warn("unknown side effect", "kind", string(effect.Kind))
		}
	}
}

// end moves the session to Ended exactly once: records the error kind,
// optionally plays the apology, cancels in-flight provider calls, closes
// the stream, and releases the registry slot.
func (o *Orchestrator) end(s *Session, kind ErrKind, withApology bool) {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.state = StateEnded
	s.errKind = kind
	if s.idle != nil {
		s.idle.Stop()
	}
	s.mu.Unlock()

	if withApology && s.stream.Open() {
		o.apologize(s)
	}

	s.cancel()
	s.stream.Close()
	o.remove(s.id)

	s.logger.Info("session ended", "error_kind", string(kind), "turns", len(s.Turns()))
	o.publish(s, "session_ended", map[string]any{"error_kind": string(kind)})
}

// apologize plays the configured apology best-effort. A pre-recorded
// segment is preferred; synthesis is attempted only as a fallback and
// its failure is swallowed.
func (o *Orchestrator) apologize(s *Session) {
	ulaw := o.cfg.ApologyAudio
	if len(ulaw) == 0 && o.cfg.ApologyText != "" {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ProviderTimeout)
		defer cancel()
		result, err := o.cfg.TTS.Synthesize(ctx, o.cfg.ApologyText)
		if err != nil {
			s.logger.Debug("apology synthesis failed", "error", err)
			return
		}
		ulaw = result.Audio
	}
	if len(ulaw) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ProviderTimeout)
	defer cancel()
	if err := s.stream.Play(ctx, ulaw); err != nil {
		s.logger.Debug("apology playback failed", "error", err)
	}
}

// transcribe calls the transcriber with the session's retry and timeout
// policy.
func (o *Orchestrator) transcribe(s *Session, pcm []byte) (utt *stt.Utterance, err error) {
	err = o.withRetry(s, func(ctx context.Context) error {
		utt, err = o.cfg.STT.Transcribe(ctx, pcm)
		return err
	})
	return utt, err
}

// decide calls the dialogue policy with retry and timeout.
func (o *Orchestrator) decide(s *Session, state dialogue.State, text string) (decision *dialogue.Decision, err error) {
	err = o.withRetry(s, func(ctx context.Context) error {
		decision, err = o.cfg.Policy.Decide(ctx, state, text)
		return err
	})
	return decision, err
}

// synthesize calls the synthesizer with retry and timeout.
func (o *Orchestrator) synthesize(s *Session, text string) (result *tts.AudioResult, err error) {
	err = o.withRetry(s, func(ctx context.Context) error {
		result, err = o.cfg.TTS.Synthesize(ctx, text)
		return err
	})
	return result, err
}

// withRetry runs one provider invocation under the hard per-call
// timeout, retrying once unless the session itself was cancelled.
func (o *Orchestrator) withRetry(s *Session, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		ctx, cancel := context.WithTimeout(s.ctx, o.cfg.ProviderTimeout)
		err = fn(ctx)
		cancel()
		if err == nil || s.ctx.Err() != nil {
			return err
		}
	}
	return err
}

// kindFor maps a provider failure to the recorded error kind.
func kindFor(err error, fallback ErrKind) ErrKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	return fallback
}

func (o *Orchestrator) publish(s *Session, kind string, fields map[string]any) {
	if o.cfg.Events == nil {
		return
	}
	o.cfg.Events.CallEvent(s.id, kind, fields)
}

var _ gateway.Handler = (*Orchestrator)(nil)
