package web

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/charcochicken/voiceagent/pkg/dialogue"
	"github.com/charcochicken/voiceagent/pkg/gateway"
	"github.com/charcochicken/voiceagent/pkg/order"
	"github.com/charcochicken/voiceagent/pkg/session"
	"github.com/charcochicken/voiceagent/pkg/stt"
	"github.com/charcochicken/voiceagent/pkg/tts"
)

func newTestServer(t *testing.T) (*Server, *session.Orchestrator, *order.Book) {
	t.Helper()
	orch, err := session.New(
		session.WithSTT(stt.NewMock("hello", 0.9)),
		session.WithPolicy(&dialogue.Mock{}),
		session.WithTTS(tts.NewMock()),
		session.WithGreeting(""),
	)
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	book := order.NewBook()
	return NewServer("0", orch, book, nil, nil), orch, book
}

func TestHealth(t *testing.T) {
	srv, orch, _ := newTestServer(t)
	orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body map[string]any
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" || body["active_calls"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}

func TestSessionsAPI(t *testing.T) {
	srv, orch, _ := newTestServer(t)
	orch.StartSession("call-1", gateway.NewMockStream("call-1"))

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/api/sessions", nil))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	defer resp.Body.Close()

	var snaps []session.Snapshot
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &snaps); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snaps) != 1 || snaps[0].CallID != "call-1" {
		t.Errorf("snapshots = %+v", snaps)
	}

	resp, err = srv.App().Test(httptest.NewRequest("GET", "/api/sessions/missing", nil))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("unknown session status = %d, want 404", resp.StatusCode)
	}
}

func TestOrdersAPI(t *testing.T) {
	srv, _, book := newTestServer(t)
	placed, _ := book.Submit("Ahmed", []order.Item{{Name: "chicken shawarma", Quantity: 2}})

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/api/orders", nil))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	defer resp.Body.Close()

	var orders []order.Order
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &orders); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != placed.ID {
		t.Errorf("orders = %+v", orders)
	}

	resp, err = srv.App().Test(httptest.NewRequest("POST", "/api/orders/"+placed.ID+"/complete", nil))
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("complete status = %d", resp.StatusCode)
	}
	if book.Get(placed.ID).Status != order.StatusCompleted {
		t.Error("order not completed")
	}

	resp, _ = srv.App().Test(httptest.NewRequest("POST", "/api/orders/nope/complete", nil))
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("unknown order status = %d, want 404", resp.StatusCode)
	}
}
