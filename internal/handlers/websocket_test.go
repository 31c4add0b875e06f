package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

// dialTestClient connects a websocket client to the handler under test
func dialTestClient(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect websocket client: %v", err)
	}
	return conn
}

// collectLogEntries reads frames until the deadline, keeping log_event payloads
func collectLogEntries(conn *websocket.Conn, deadline time.Duration, out *[]LogEntry, mu *sync.Mutex, done *sync.WaitGroup) {
	defer done.Done()
	conn.SetReadDeadline(time.Now().Add(deadline))

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "log_event" {
			continue
		}

		data, err := json.Marshal(msg.Payload)
		if err != nil {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}

		mu.Lock()
		*out = append(*out, entry)
		mu.Unlock()
	}
}

// TestBroadcastLogFanOut verifies that log broadcast fans out to every
// connected subscriber without dropping or reordering entries
func TestBroadcastLogFanOut(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger())

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	numSubscribers := 5
	numMessages := 10

	received := make([][]LogEntry, numSubscribers)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(numSubscribers)

	conns := make([]*websocket.Conn, numSubscribers)
	for i := 0; i < numSubscribers; i++ {
		conn := dialTestClient(t, server)
		conns[i] = conn
		go collectLogEntries(conn, 3*time.Second, &received[i], &mu, &wg)
	}

	// Let all subscribers finish registering
	deadline := time.Now().Add(2 * time.Second)
	for handler.ClientCount() < numSubscribers && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := handler.ClientCount(); got != numSubscribers {
		t.Fatalf("ClientCount() = %d, want %d", got, numSubscribers)
	}

	for i := 0; i < numMessages; i++ {
		handler.BroadcastLog(LogEntry{
			Timestamp: time.Now().Format("15:04:05"),
			Level:     "INF",
			Message:   "broadcast message",
		})
	}

	// Give frames time to arrive, then close to unblock the readers
	time.Sleep(500 * time.Millisecond)
	for _, conn := range conns {
		conn.Close()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, entries := range received {
		if len(entries) != numMessages {
			t.Errorf("subscriber %d received %d log entries, want %d", i, len(entries), numMessages)
		}
	}
}

// TestClientCountTracksDisconnect verifies registration bookkeeping
func TestClientCountTracksDisconnect(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger())

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn := dialTestClient(t, server)

	deadline := time.Now().Add(2 * time.Second)
	for handler.ClientCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := handler.ClientCount(); got != 1 {
		t.Fatalf("ClientCount() after connect = %d, want 1", got)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for handler.ClientCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := handler.ClientCount(); got != 0 {
		t.Errorf("ClientCount() after disconnect = %d, want 0", got)
	}
}

// TestHelloFrameIdentifiesServer verifies the hello frame clients use to
// detect server restarts
func TestHelloFrameIdentifiesServer(t *testing.T) {
	handler := NewWebSocketHandler(arbor.NewLogger())

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn := dialTestClient(t, server)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read hello frame: %v", err)
	}
	if msg.Type != "hello" {
		t.Fatalf("first frame type = %q, want hello", msg.Type)
	}

	payload, ok := msg.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("hello payload is %T, want object", msg.Payload)
	}
	if payload["service"] != "congruo" {
		t.Errorf("hello service = %v, want congruo", payload["service"])
	}
	if payload["server_instance_id"] == "" {
		t.Error("hello frame missing server_instance_id")
	}
}
