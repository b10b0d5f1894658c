package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Start()
	t.Cleanup(h.Stop)
	return h
}

// fakeClient registers a client without a real connection so we can read
// its send channel directly.
func fakeClient(h *Hub) *Client {
	c := &Client{
		hub:         h,
		send:        make(chan []byte, 16),
		id:          "test-client",
		connectedAt: time.Now(),
	}
	h.register <- c
	return c
}

func recvEvent(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case raw := <-c.send:
		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHubSendsWelcome(t *testing.T) {
	h := testHub(t)
	c := fakeClient(h)

	msg := recvEvent(t, c)
	if msg["type"] != TypeConnection {
		t.Errorf("first message type = %v, want %s", msg["type"], TypeConnection)
	}
}

func TestHubBroadcastsToAllClients(t *testing.T) {
	h := testHub(t)
	a := fakeClient(h)
	b := fakeClient(h)
	recvEvent(t, a) // welcome
	recvEvent(t, b)

	h.BroadcastRefreshComplete(3, 1500*time.Millisecond)

	for _, c := range []*Client{a, b} {
		msg := recvEvent(t, c)
		if msg["type"] != TypeRefreshComplete {
			t.Errorf("type = %v, want %s", msg["type"], TypeRefreshComplete)
		}
		data := msg["data"].(map[string]any)
		if data["charts"] != float64(3) {
			t.Errorf("charts = %v, want 3", data["charts"])
		}
	}
}

func TestHubInsightStatusEvent(t *testing.T) {
	h := testHub(t)
	c := fakeClient(h)
	recvEvent(t, c)

	h.BroadcastInsightStatus("abc-123", "ready")

	msg := recvEvent(t, c)
	if msg["type"] != TypeInsightStatus {
		t.Fatalf("type = %v", msg["type"])
	}
	data := msg["data"].(map[string]any)
	if data["id"] != "abc-123" || data["status"] != "ready" {
		t.Errorf("data = %v", data)
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h := testHub(t)
	c := fakeClient(h)
	recvEvent(t, c)

	h.unregister <- c

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				if h.ClientCount() != 0 {
					t.Errorf("client count = %d, want 0", h.ClientCount())
				}
				return
			}
		case <-deadline:
			t.Fatal("send channel never closed")
		}
	}
}
