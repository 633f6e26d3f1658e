package stt_test

import (
	"context"
	"errors"
	"testing"

	"github.com/charcochicken/voiceagent/pkg/stt"
)

func TestMockProvider(t *testing.T) {
	mock := stt.NewMock("order one chicken plate", 0.9)
	ctx := context.Background()

	t.Run("Transcribe returns utterance", func(t *testing.T) {
		utt, err := mock.Transcribe(ctx, make([]byte, 320))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if utt.Text != "order one chicken plate" {
			t.Errorf("unexpected text: %q", utt.Text)
		}
		if utt.Confidence != 0.9 {
			t.Errorf("unexpected confidence: %v", utt.Confidence)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		if mock.CallCount("Transcribe") != 1 {
			t.Errorf("expected 1 Transcribe call, got %d", mock.CallCount("Transcribe"))
		}
		calls := mock.Calls()
		if calls[0].AudioBytes != 320 {
			t.Errorf("expected 320 audio bytes recorded, got %d", calls[0].AudioBytes)
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestUtteranceUsable(t *testing.T) {
	tests := []struct {
		name      string
		utt       *stt.Utterance
		threshold float64
		want      bool
	}{
		{"high confidence", &stt.Utterance{Text: "hello", Confidence: 0.9}, 0.4, true},
		{"at threshold", &stt.Utterance{Text: "hello", Confidence: 0.4}, 0.4, true},
		{"below threshold", &stt.Utterance{Text: "hello", Confidence: 0.2}, 0.4, false},
		{"empty text", &stt.Utterance{Text: "", Confidence: 0.9}, 0.4, false},
		{"nil utterance", nil, 0.4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.utt.Usable(tt.threshold); got != tt.want {
				t.Errorf("Usable(%v) = %v, want %v", tt.threshold, got, tt.want)
			}
		})
	}
}

func TestFailingN(t *testing.T) {
	transientErr := &stt.APIError{StatusCode: 500, Provider: "mock"}
	mock := stt.FailingN(1, transientErr, &stt.Utterance{Text: "second try", Confidence: 0.8})
	ctx := context.Background()

	_, err := mock.Transcribe(ctx, []byte{1})
	if err == nil {
		t.Fatal("expected first call to fail")
	}
	if !stt.IsRetryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}

	utt, err := mock.Transcribe(ctx, []byte{1})
	if err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if utt.Text != "second try" {
		t.Errorf("unexpected text: %q", utt.Text)
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("requires at least one provider", func(t *testing.T) {
		if _, err := stt.NewChain(); err == nil {
			t.Error("expected error for empty chain")
		}
	})

	t.Run("falls back on failure", func(t *testing.T) {
		bad := stt.WithError(errors.New("boom"))
		good := stt.NewMock("fallback worked", 0.95)

		chain, err := stt.NewChain(bad, good)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		utt, err := chain.Transcribe(ctx, []byte{1, 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if utt.Text != "fallback worked" {
			t.Errorf("unexpected text: %q", utt.Text)
		}
	})

	t.Run("aggregates all failures", func(t *testing.T) {
		chain, _ := stt.NewChain(
			stt.WithError(errors.New("first")),
			stt.WithError(errors.New("second")),
		)

		_, err := chain.Transcribe(ctx, []byte{1})
		if err == nil {
			t.Fatal("expected error")
		}
		var chainErr *stt.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected ChainError, got %T", err)
		}
		if len(chainErr.Errors) != 2 {
			t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
		}
	})
}

func TestAPIErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{401, false},
		{400, false},
	}

	for _, tt := range tests {
		err := &stt.APIError{StatusCode: tt.status, Provider: "test"}
		if got := err.IsRetryable(); got != tt.want {
			t.Errorf("status %d: IsRetryable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
