package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSplitFrames(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		wantCount int
		wantLast  int
	}{
		{"empty", 0, 0, 0},
		{"single partial", 100, 1, 100},
		{"exact frame", FrameSize, 1, FrameSize},
		{"two and a bit", 2*FrameSize + 40, 3, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := splitFrames(make([]byte, tt.size))
			if len(frames) != tt.wantCount {
				t.Fatalf("got %d frames, want %d", len(frames), tt.wantCount)
			}
			if tt.wantCount > 0 && len(frames[len(frames)-1]) != tt.wantLast {
				t.Errorf("last frame %d bytes, want %d", len(frames[len(frames)-1]), tt.wantLast)
			}
		})
	}
}

func TestControlEventJSON(t *testing.T) {
	var ev ControlEvent
	if err := json.Unmarshal([]byte(`{"event":"end_of_utterance"}`), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Event != EventEndOfUtterance {
		t.Errorf("Event = %q, want %q", ev.Event, EventEndOfUtterance)
	}
}

func TestMockStream(t *testing.T) {
	ctx := context.Background()
	m := NewMockStream("call-1")

	if m.CallID() != "call-1" {
		t.Errorf("CallID() = %q", m.CallID())
	}
	if !m.Open() {
		t.Error("new mock should be open")
	}

	if err := m.Play(ctx, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if m.PlayCount() != 1 {
		t.Errorf("PlayCount() = %d, want 1", m.PlayCount())
	}
	if got := m.Played()[0]; len(got) != 3 || got[0] != 1 {
		t.Errorf("Played()[0] = %v", got)
	}

	m.Close()
	if m.Open() {
		t.Error("closed mock reports open")
	}
	if err := m.Play(ctx, []byte{4}); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Play after close error = %v, want ErrStreamClosed", err)
	}
}

func TestMockStreamPlayErr(t *testing.T) {
	wantErr := errors.New("boom")
	m := NewMockStream("call-2")
	m.PlayErr = wantErr

	if err := m.Play(context.Background(), []byte{1}); !errors.Is(err, wantErr) {
		t.Errorf("Play() error = %v, want %v", err, wantErr)
	}
	if m.PlayCount() != 0 {
		t.Error("failed play should not be recorded")
	}
}
