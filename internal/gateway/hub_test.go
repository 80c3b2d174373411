package gateway_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alphaboost/console/internal/gateway"
	"github.com/alphaboost/console/internal/model"
)

func dialHub(t *testing.T, hub *gateway.Hub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// publishUntilDone repeats events until done is closed, since the hub may
// not have registered the client yet when the first one goes out.
func publishUntilDone(hub *gateway.Hub, done <-chan struct{}, events ...gateway.Event) {
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			for _, ev := range events {
				hub.Publish(ev)
			}
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()
}

func TestHub_FiltersBySession(t *testing.T) {
	hub := gateway.NewHub()
	go hub.Run()

	conn := dialHub(t, hub, "?session=alice")
	done := make(chan struct{})
	defer close(done)
	publishUntilDone(hub, done,
		gateway.Event{Type: gateway.EventLogsCleared, Session: "bob"},
		gateway.Event{Type: gateway.EventTransactionCreated, Session: "alice", ID: 7,
			Transaction: &model.TransactionRequest{Symbol: "AAPL", Side: model.SideBuy}},
	)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for i := 0; i < 3; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev gateway.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Session != "alice" {
			t.Fatalf("received event for session %q", ev.Session)
		}
		if ev.Type != gateway.EventTransactionCreated || ev.ID != 7 || ev.Transaction.Symbol != "AAPL" {
			t.Errorf("unexpected event %+v", ev)
		}
	}
}

func TestHub_ObserveLogPublishesEntry(t *testing.T) {
	hub := gateway.NewHub()
	go hub.Run()

	conn := dialHub(t, hub, "?session=s1")
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			hub.ObserveLog("s1", model.LogEntry{ID: "e1", Method: "GET", Endpoint: "/apps/transactions", Status: 200})
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev gateway.Event
	json.Unmarshal(data, &ev)
	if ev.Type != gateway.EventLogAppended || ev.Session != "s1" || ev.Log == nil || ev.Log.ID != "e1" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHub_PublishOnNilHubIsNoop(t *testing.T) {
	var hub *gateway.Hub
	hub.Publish(gateway.Event{Type: gateway.EventLogsCleared})
}

func TestHub_RequiresSession(t *testing.T) {
	hub := gateway.NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake to fail without a session")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %+v", resp)
	}
}
