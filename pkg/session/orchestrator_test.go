package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charcochicken/voiceagent/pkg/dialogue"
	"github.com/charcochicken/voiceagent/pkg/gateway"
	"github.com/charcochicken/voiceagent/pkg/order"
	"github.com/charcochicken/voiceagent/pkg/session"
	"github.com/charcochicken/voiceagent/pkg/stt"
	"github.com/charcochicken/voiceagent/pkg/tts"
)

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// newOrchestrator builds an orchestrator with quiet defaults for tests:
// no greeting, instant mock providers.
func newOrchestrator(t *testing.T, opts ...session.Option) *session.Orchestrator {
	t.Helper()
	base := []session.Option{
		session.WithSTT(stt.NewMock("order one chicken plate", 0.9)),
		session.WithPolicy(&dialogue.Mock{}),
		session.WithTTS(tts.NewMock()),
		session.WithGreeting(""),
	}
	orch, err := session.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return orch
}

// speakUtterance pushes a chunk stream and an end-of-utterance signal.
func speakUtterance(t *testing.T, orch *session.Orchestrator, callID string) {
	t.Helper()
	for i := 0; i < 3; i++ {
		if err := orch.OnAudioChunk(callID, make([]byte, 160)); err != nil {
			t.Fatalf("OnAudioChunk() error = %v", err)
		}
	}
	if err := orch.OnEndOfUtterance(callID); err != nil {
		t.Fatalf("OnEndOfUtterance() error = %v", err)
	}
}

func TestStartSessionDuplicate(t *testing.T) {
	orch := newOrchestrator(t)

	if _, err := orch.StartSession("call-1", gateway.NewMockStream("call-1")); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if _, err := orch.StartSession("call-1", gateway.NewMockStream("call-1")); !errors.Is(err, session.ErrDuplicateSession) {
		t.Errorf("duplicate StartSession() error = %v, want ErrDuplicateSession", err)
	}

	orch.OnHangup("call-1")
	if _, err := orch.StartSession("call-1", gateway.NewMockStream("call-1")); err != nil {
		t.Errorf("StartSession() after hangup error = %v", err)
	}
}

func TestUnknownSession(t *testing.T) {
	orch := newOrchestrator(t)

	if err := orch.OnAudioChunk("nope", []byte{1}); !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("OnAudioChunk() error = %v, want ErrUnknownSession", err)
	}
	if err := orch.OnEndOfUtterance("nope"); !errors.Is(err, session.ErrUnknownSession) {
		t.Errorf("OnEndOfUtterance() error = %v, want ErrUnknownSession", err)
	}
	orch.OnHangup("nope") // must be a no-op
}

func TestFullTurn(t *testing.T) {
	policy := &dialogue.Mock{
		DecideFunc: func(ctx context.Context, state dialogue.State, text string) (*dialogue.Decision, error) {
			return &dialogue.Decision{
				ResponseText: "confirming one chicken plate",
				NextState:    dialogue.State{Stage: "confirm"},
			}, nil
		},
	}
	orch := newOrchestrator(t, session.WithPolicy(policy))

	stream := gateway.NewMockStream("call-1")
	s, err := orch.StartSession("call-1", stream)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if s.State() != session.StateListening {
		t.Fatalf("initial state = %s, want listening", s.State())
	}

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return len(s.Turns()) == 1 })

	if got := policy.Calls(); len(got) != 1 || got[0] != "order one chicken plate" {
		t.Errorf("policy calls = %v", got)
	}
	if stream.PlayCount() != 1 {
		t.Errorf("PlayCount() = %d, want 1", stream.PlayCount())
	}
	if s.State() != session.StateListening {
		t.Errorf("state after turn = %s, want listening", s.State())
	}

	turn := s.Turns()[0]
	if turn.Counter != 1 {
		t.Errorf("turn counter = %d, want 1", turn.Counter)
	}
	if turn.CallerText != "order one chicken plate" || turn.Confidence != 0.9 {
		t.Errorf("turn transcript = %q (%v)", turn.CallerText, turn.Confidence)
	}
	if turn.ResponseText != "confirming one chicken plate" {
		t.Errorf("turn response = %q", turn.ResponseText)
	}

	snap, ok := orch.Session("call-1")
	if !ok || snap.Stage != "confirm" {
		t.Errorf("session stage = %q, want confirm", snap.Stage)
	}
}

func TestTurnCounterGapless(t *testing.T) {
	orch := newOrchestrator(t)
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	for i := 1; i <= 3; i++ {
		waitFor(t, func() bool { return s.State() == session.StateListening })
		speakUtterance(t, orch, "call-1")
		waitFor(t, func() bool { return len(s.Turns()) == i })
	}

	turns := s.Turns()
	for i, turn := range turns {
		if turn.Counter != i+1 {
			t.Errorf("turn %d counter = %d, want %d", i, turn.Counter, i+1)
		}
	}
}

func TestAudioChunkOutsideListening(t *testing.T) {
	block := make(chan struct{})
	policy := &dialogue.Mock{
		DecideFunc: func(ctx context.Context, state dialogue.State, text string) (*dialogue.Decision, error) {
			select {
			case <-block:
				return &dialogue.Decision{ResponseText: "ok", NextState: state}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	orch := newOrchestrator(t, session.WithPolicy(policy))
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return s.State() == session.StateDeciding })

	if err := orch.OnAudioChunk("call-1", []byte{1}); !errors.Is(err, session.ErrInvalidState) {
		t.Errorf("OnAudioChunk() in deciding error = %v, want ErrInvalidState", err)
	}
	if err := orch.OnEndOfUtterance("call-1"); !errors.Is(err, session.ErrInvalidState) {
		t.Errorf("OnEndOfUtterance() in deciding error = %v, want ErrInvalidState", err)
	}

	close(block)
	waitFor(t, func() bool { return len(s.Turns()) == 1 })
}

func TestEmptyUtteranceIgnored(t *testing.T) {
	transcriber := stt.NewMock("hello", 0.9)
	orch := newOrchestrator(t, session.WithSTT(transcriber))
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	if err := orch.OnEndOfUtterance("call-1"); err != nil {
		t.Fatalf("OnEndOfUtterance() with empty buffer error = %v", err)
	}
	if s.State() != session.StateListening {
		t.Errorf("state = %s, want listening", s.State())
	}
	if transcriber.CallCount("Transcribe") != 0 {
		t.Error("empty utterance should not reach the transcriber")
	}
}

func TestLowConfidenceNeverReachesPolicy(t *testing.T) {
	policy := &dialogue.Mock{}
	synth := tts.NewMock()
	orch := newOrchestrator(t,
		session.WithSTT(stt.NewMock("mumbled something", 0.2)),
		session.WithPolicy(policy),
		session.WithTTS(synth),
	)
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return len(s.Turns()) == 1 })

	if policy.CallCount() != 0 {
		t.Error("low-confidence utterance reached the policy")
	}
	if s.State() != session.StateListening {
		t.Errorf("state = %s, want listening", s.State())
	}
	last := synth.LastCall()
	if last == nil || last.Text != session.DefaultConfig().ClarificationPrompt {
		t.Errorf("spoken prompt = %+v, want clarification prompt", last)
	}
}

func TestTranscriberRetryThenSuccess(t *testing.T) {
	transcriber := stt.FailingN(1, errors.New("transient"), &stt.Utterance{Text: "hello", Confidence: 0.9})
	policy := &dialogue.Mock{}
	orch := newOrchestrator(t, session.WithSTT(transcriber), session.WithPolicy(policy))
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return len(s.Turns()) == 1 })

	if got := transcriber.CallCount("Transcribe"); got != 2 {
		t.Errorf("Transcribe calls = %d, want 2", got)
	}
	if policy.CallCount() != 1 {
		t.Errorf("policy calls = %d, want 1", policy.CallCount())
	}
}

func TestTranscriberDoubleFailure(t *testing.T) {
	transcriber := stt.WithError(errors.New("down"))
	policy := &dialogue.Mock{}
	synth := tts.NewMock()
	orch := newOrchestrator(t,
		session.WithSTT(transcriber),
		session.WithPolicy(policy),
		session.WithTTS(synth),
	)
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return len(s.Turns()) == 1 })

	if got := transcriber.CallCount("Transcribe"); got != 2 {
		t.Errorf("Transcribe calls = %d, want 2 (one retry)", got)
	}
	if policy.CallCount() != 0 {
		t.Error("failed transcription must not reach the policy")
	}
	if s.State() != session.StateListening {
		t.Errorf("state = %s, want listening", s.State())
	}
	last := synth.LastCall()
	if last == nil || last.Text != session.DefaultConfig().RepeatPrompt {
		t.Errorf("spoken prompt = %+v, want repeat prompt", last)
	}
}

func TestHangupCancelsInflight(t *testing.T) {
	cancelled := make(chan struct{})
	policy := &dialogue.Mock{
		DecideFunc: func(ctx context.Context, state dialogue.State, text string) (*dialogue.Decision, error) {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		},
	}
	orch := newOrchestrator(t, session.WithPolicy(policy))
	stream := gateway.NewMockStream("call-1")
	s, _ := orch.StartSession("call-1", stream)

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return policy.CallCount() == 1 })

	orch.OnHangup("call-1")

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight policy call was not cancelled")
	}

	if s.State() != session.StateEnded {
		t.Errorf("state = %s, want ended", s.State())
	}
	if stream.Open() {
		t.Error("stream left open after hangup")
	}
	if orch.Count() != 0 {
		t.Errorf("Count() = %d, want 0", orch.Count())
	}
	if len(s.Turns()) != 0 {
		t.Error("cancelled turn must not be recorded")
	}
}

func TestHangupIdempotent(t *testing.T) {
	orch := newOrchestrator(t)
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	orch.OnHangup("call-1")
	orch.OnHangup("call-1")

	if s.State() != session.StateEnded {
		t.Errorf("state = %s, want ended", s.State())
	}
	if s.ErrorKind() != session.ErrKindNone {
		t.Errorf("hangup recorded error kind %q", s.ErrorKind())
	}
}

func TestEndCallWithOrderSideEffect(t *testing.T) {
	book := order.NewBook()
	policy := &dialogue.Mock{
		DecideFunc: func(ctx context.Context, state dialogue.State, text string) (*dialogue.Decision, error) {
			return &dialogue.Decision{
				ResponseText: "your order is placed, goodbye",
				NextState:    dialogue.State{Stage: dialogue.StageOrderPlaced},
				SideEffects: []dialogue.SideEffect{{
					Kind:         dialogue.SideEffectSubmitOrder,
					CustomerName: "Ahmed",
					Items:        []dialogue.Item{{Name: "chicken plate", Quantity: 1}},
				}},
				EndCall: true,
			}, nil
		},
	}
	orch := newOrchestrator(t, session.WithPolicy(policy), session.WithOrders(book))
	stream := gateway.NewMockStream("call-1")
	s, _ := orch.StartSession("call-1", stream)

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return s.State() == session.StateEnded })

	if stream.PlayCount() != 1 {
		t.Errorf("PlayCount() = %d, want 1 (goodbye line)", stream.PlayCount())
	}
	if stream.Open() {
		t.Error("stream left open after call end")
	}
	if s.ErrorKind() != session.ErrKindNone {
		t.Errorf("graceful end recorded error kind %q", s.ErrorKind())
	}

	placed := book.List()
	if len(placed) != 1 {
		t.Fatalf("got %d orders, want 1", len(placed))
	}
	if placed[0].CustomerName != "Ahmed" || placed[0].Items[0].Name != "chicken plate" {
		t.Errorf("order = %+v", placed[0])
	}
}

func TestSynthesisHardFailurePlaysApology(t *testing.T) {
	apology := make([]byte, 800)
	orch := newOrchestrator(t,
		session.WithTTS(tts.WithError(errors.New("down"))),
		session.WithApologyAudio(apology),
	)
	stream := gateway.NewMockStream("call-1")
	s, _ := orch.StartSession("call-1", stream)

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return s.State() == session.StateEnded })

	if s.ErrorKind() != session.ErrKindSynthesis {
		t.Errorf("error kind = %q, want synthesis", s.ErrorKind())
	}
	if stream.PlayCount() != 1 || len(stream.Played()[0]) != len(apology) {
		t.Errorf("apology not played: count=%d", stream.PlayCount())
	}
	if orch.Count() != 0 {
		t.Error("ended session still registered")
	}
}

func TestPolicyHardFailureEndsWithApology(t *testing.T) {
	policy := &dialogue.Mock{
		DecideFunc: func(ctx context.Context, state dialogue.State, text string) (*dialogue.Decision, error) {
			return nil, errors.New("policy down")
		},
	}
	synth := tts.NewMock()
	orch := newOrchestrator(t, session.WithPolicy(policy), session.WithTTS(synth))
	stream := gateway.NewMockStream("call-1")
	s, _ := orch.StartSession("call-1", stream)

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return s.State() == session.StateEnded })

	if s.ErrorKind() != session.ErrKindPolicy {
		t.Errorf("error kind = %q, want policy", s.ErrorKind())
	}
	if policy.CallCount() != 2 {
		t.Errorf("policy calls = %d, want 2 (one retry)", policy.CallCount())
	}
	last := synth.LastCall()
	if last == nil || last.Text != session.DefaultConfig().ApologyText {
		t.Errorf("apology = %+v, want apology text", last)
	}
}

func TestProviderTimeoutRecorded(t *testing.T) {
	policy := &dialogue.Mock{
		DecideFunc: func(ctx context.Context, state dialogue.State, text string) (*dialogue.Decision, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	orch := newOrchestrator(t,
		session.WithPolicy(policy),
		session.WithProviderTimeout(20*time.Millisecond),
		session.WithApologyAudio(make([]byte, 160)),
	)
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return s.State() == session.StateEnded })

	if s.ErrorKind() != session.ErrKindTimeout {
		t.Errorf("error kind = %q, want timeout", s.ErrorKind())
	}
}

func TestInactivityTimeout(t *testing.T) {
	orch := newOrchestrator(t,
		session.WithInactivityTimeout(30*time.Millisecond),
		session.WithApologyAudio(make([]byte, 160)),
	)
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	waitFor(t, func() bool { return s.State() == session.StateEnded })

	if s.ErrorKind() != session.ErrKindTimeout {
		t.Errorf("error kind = %q, want timeout", s.ErrorKind())
	}
	if orch.Count() != 0 {
		t.Error("timed-out session still registered")
	}
}

func TestGreetingBlocksBargeIn(t *testing.T) {
	release := make(chan struct{})
	synth := tts.NewMock()
	inner := synth.SynthesizeFunc
	synth.SynthesizeFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return inner(ctx, text)
	}
	transcriber := stt.NewMock("order one chicken plate", 0.9)
	orch := newOrchestrator(t,
		session.WithSTT(transcriber),
		session.WithTTS(synth),
		session.WithGreeting("Welcome to Charco Chicken!"),
	)
	s, _ := orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	// The caller barges in before the greeting has played: no turn may
	// start while the greeting holds the session.
	if got := s.State(); got != session.StateSpeaking {
		t.Fatalf("state at start = %s, want speaking", got)
	}
	if err := orch.OnAudioChunk("call-1", make([]byte, 160)); !errors.Is(err, session.ErrInvalidState) {
		t.Errorf("OnAudioChunk() during greeting error = %v, want ErrInvalidState", err)
	}
	if err := orch.OnEndOfUtterance("call-1"); !errors.Is(err, session.ErrInvalidState) {
		t.Errorf("OnEndOfUtterance() during greeting error = %v, want ErrInvalidState", err)
	}
	if transcriber.CallCount("Transcribe") != 0 {
		t.Error("barge-in reached the transcriber during the greeting")
	}

	close(release)
	waitFor(t, func() bool { return s.State() == session.StateListening })
	if len(s.Turns()) != 0 {
		t.Errorf("turns after greeting = %d, want 0", len(s.Turns()))
	}

	speakUtterance(t, orch, "call-1")
	waitFor(t, func() bool { return len(s.Turns()) == 1 })
	if got := s.Turns()[0].Counter; got != 1 {
		t.Errorf("first turn counter = %d, want 1", got)
	}
}

func TestGreetingSpokenOnStart(t *testing.T) {
	synth := tts.NewMock()
	orch := newOrchestrator(t,
		session.WithTTS(synth),
		session.WithGreeting("Welcome to Charco Chicken!"),
	)
	stream := gateway.NewMockStream("call-1")
	s, _ := orch.StartSession("call-1", stream)

	waitFor(t, func() bool { return stream.PlayCount() == 1 })
	waitFor(t, func() bool { return s.State() == session.StateListening })

	last := synth.LastCall()
	if last == nil || last.Text != "Welcome to Charco Chicken!" {
		t.Errorf("greeting = %+v", last)
	}
	if len(s.Turns()) != 0 {
		t.Error("greeting must not count as a turn")
	}
}
