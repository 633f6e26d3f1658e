package hub

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCallEventNonBlocking(t *testing.T) {
	h := New(nil)

	// No Run loop and no clients: events must queue or drop, never block.
	for i := 0; i < 300; i++ {
		h.CallEvent("call-1", "turn_completed", map[string]any{"turn": i})
	}

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
}

func TestCloseStopsRun(t *testing.T) {
	h := New(nil)
	stopped := make(chan struct{})
	go func() {
		h.Run()
		close(stopped)
	}()

	client := &Client{hub: h, send: make(chan []byte, 64)}
	h.register <- client
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if h.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", h.ClientCount())
	}

	h.Close()
	h.Close() // idempotent

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() after Close = %d, want 0", h.ClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("client send channel not closed on shutdown")
	}
}

func TestEventJSON(t *testing.T) {
	ev := Event{
		CallID: "call-1",
		Kind:   "session_started",
		Time:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["call_id"] != "call-1" || decoded["kind"] != "session_started" {
		t.Errorf("decoded = %v", decoded)
	}
	if _, ok := decoded["fields"]; ok {
		t.Error("empty fields should be omitted")
	}
}
