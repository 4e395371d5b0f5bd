package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"campus/internal/app"
	"campus/internal/config"
	"campus/pkg/types"
)

const waitTimeout = 3 * time.Second

type testServer struct {
	app  *app.Application
	addr string
}

func startServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Audit.Path = filepath.Join(t.TempDir(), "campus.db")
	if mutate != nil {
		mutate(cfg)
	}

	application, err := app.NewApplication(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewApplication failed: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(ctx)
	})
	return &testServer{app: application, addr: application.Addr()}
}

func (s *testServer) getJSON(t *testing.T, path string, v interface{}) int {
	t.Helper()
	resp, err := http.Get("http://" + s.addr + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

type stats struct {
	Connections      int `json:"connections"`
	Presences        int `json:"presences"`
	CallRooms        int `json:"call_rooms"`
	CallParticipants int `json:"call_participants"`
}

// waitStats polls /api/stats until ok holds.
func (s *testServer) waitStats(t *testing.T, ok func(stats) bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		var st stats
		s.getJSON(t, "/api/stats", &st)
		if ok(st) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for stats, last %+v", st)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// client is one browser tab: a socket plus a reader goroutine feeding
// every received envelope into a channel.
type client struct {
	t      *testing.T
	conn   *websocket.Conn
	id     string
	frames chan types.Envelope
}

func (s *testServer) connect(t *testing.T) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.addr+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	c := &client{t: t, conn: conn, frames: make(chan types.Envelope, 256)}
	go c.readLoop()
	t.Cleanup(func() { _ = conn.Close() })

	var hello types.ConnectedPayload
	c.expect(types.EventConnected, &hello)
	c.id = hello.ID
	return c
}

func (c *client) readLoop() {
	defer close(c.frames)
	for {
		var env types.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		c.frames <- env
	}
}

func (c *client) send(event string, data interface{}) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("Failed to marshal %s: %v", event, err)
	}
	if err := c.conn.WriteJSON(types.Envelope{Event: event, Data: raw}); err != nil {
		c.t.Fatalf("Failed to send %s: %v", event, err)
	}
}

// expect skips frames until one named event arrives and decodes it into v.
func (c *client) expect(event string, v interface{}) {
	c.t.Helper()
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()
	for {
		select {
		case env, ok := <-c.frames:
			if !ok {
				c.t.Fatalf("Connection closed while waiting for %s", event)
			}
			if env.Event != event {
				continue
			}
			if v != nil {
				if err := json.Unmarshal(env.Data, v); err != nil {
					c.t.Fatalf("Failed to decode %s: %v", event, err)
				}
			}
			return
		case <-timer.C:
			c.t.Fatalf("Timed out waiting for %s", event)
		}
	}
}

// expectRoster waits for a classroomUpdate satisfying ok.
func (c *client) expectRoster(ok func(types.Roster) bool) types.Roster {
	c.t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		var r types.Roster
		c.expect(types.EventClassroomUpdate, &r)
		if ok(r) {
			return r
		}
	}
	c.t.Fatal("Timed out waiting for matching roster")
	return types.Roster{}
}

// expectNone fails if event arrives within d.
func (c *client) expectNone(event string, d time.Duration) {
	c.t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case env, ok := <-c.frames:
			if !ok {
				return
			}
			if env.Event == event {
				c.t.Fatalf("Unexpected %s: %s", event, env.Data)
			}
		case <-timer.C:
			return
		}
	}
}

func hasIdentity(list []types.Identity, id string) bool {
	for _, i := range list {
		if i.ID == id {
			return true
		}
	}
	return false
}
