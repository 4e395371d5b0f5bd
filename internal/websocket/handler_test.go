package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"campus/pkg/types"
)

type recordingDispatcher struct {
	mu           sync.Mutex
	events       []types.Envelope
	dispatched   chan string
	disconnected chan string
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{
		dispatched:   make(chan string, 16),
		disconnected: make(chan string, 4),
	}
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, connID string, env *types.Envelope) error {
	d.mu.Lock()
	d.events = append(d.events, *env)
	d.mu.Unlock()
	d.dispatched <- env.Event
	return nil
}

func (d *recordingDispatcher) Disconnect(ctx context.Context, connID string) error {
	d.disconnected <- connID
	return nil
}

func dial(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) types.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env types.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return env
}

func TestHandler_ConnectDispatchDisconnect(t *testing.T) {
	registry := NewRegistry()
	dispatcher := newRecordingDispatcher()
	h := NewHandler(registry, dispatcher, DefaultOptions(), nil, zerolog.Nop())

	conn := dial(t, h)

	hello := readEnvelope(t, conn)
	if hello.Event != types.EventConnected {
		t.Fatalf("Expected connected, got %s", hello.Event)
	}
	if !strings.Contains(string(hello.Data), `"id"`) {
		t.Errorf("Expected connection id in %s", hello.Data)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"join","data":{"userId":"u1","role":"student","room":"hall"}}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	select {
	case event := <-dispatcher.dispatched:
		if event != types.EventJoin {
			t.Errorf("Expected join dispatched, got %s", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for dispatch")
	}

	_ = conn.Close()
	select {
	case <-dispatcher.disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for disconnect")
	}
}

func TestHandler_MalformedFrameGetsError(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	h := NewHandler(NewRegistry(), dispatcher, DefaultOptions(), nil, zerolog.Nop())

	conn := dial(t, h)
	readEnvelope(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	reply := readEnvelope(t, conn)
	if reply.Event != types.EventError {
		t.Errorf("Expected error event, got %s", reply.Event)
	}

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if len(dispatcher.events) != 0 {
		t.Errorf("Expected nothing dispatched, got %d", len(dispatcher.events))
	}
}

func TestHandler_RegistersConnection(t *testing.T) {
	registry := NewRegistry()
	h := NewHandler(registry, newRecordingDispatcher(), DefaultOptions(), nil, zerolog.Nop())

	conn := dial(t, h)
	hello := readEnvelope(t, conn)

	var payload types.ConnectedPayload
	if err := json.Unmarshal(hello.Data, &payload); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if _, ok := registry.GetConnection(payload.ID); !ok {
		t.Errorf("Expected %s in registry", payload.ID)
	}
}
