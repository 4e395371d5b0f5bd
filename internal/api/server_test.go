package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"campus/internal/callroom"
	"campus/internal/classroom"
	"campus/internal/hub"
	"campus/pkg/types"
)

type fakeState struct {
	snap *hub.Snapshot
	err  error
}

func (f *fakeState) Snapshot(ctx context.Context) (*hub.Snapshot, error) {
	return f.snap, f.err
}

func (f *fakeState) Classroom(ctx context.Context, id string) (classroom.Summary, bool, error) {
	if f.err != nil {
		return classroom.Summary{}, false, f.err
	}
	for _, c := range f.snap.Classrooms {
		if c.ID == id {
			return c, true, nil
		}
	}
	return classroom.Summary{}, false, nil
}

type fakeAudit struct {
	entries   []*types.AuditEntry
	healthErr error
	lastLimit int
}

func (f *fakeAudit) Record(*types.AuditEntry) {}

func (f *fakeAudit) ClassroomHistory(ctx context.Context, classroomID string, limit int) ([]*types.AuditEntry, error) {
	f.lastLimit = limit
	out := []*types.AuditEntry{}
	for _, e := range f.entries {
		if e.ClassroomID == classroomID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAudit) HealthCheck(ctx context.Context) error {
	return f.healthErr
}

type fakeRegistry struct{}

func (fakeRegistry) GetStats() map[string]int {
	return map[string]int{"total_connections": 3}
}

func testSnapshot() *hub.Snapshot {
	teacher := types.Identity{ID: "t1", Name: "Tess"}
	return &hub.Snapshot{
		Connections: 3,
		Presences:   2,
		Groups:      4,
		Events:      []string{types.EventJoin, types.EventMove},
		Classrooms: []classroom.Summary{{
			ID:    "math",
			State: classroom.StateActive,
			Roster: types.Roster{
				Students: []types.Identity{{ID: "s1", Name: "Sam"}},
				Pending:  []types.Identity{},
				Teacher:  &teacher,
			},
		}},
		CallRooms: []callroom.RoomSummary{{
			ID:           "math",
			Participants: []callroom.Participant{{ID: "a"}, {ID: "b"}},
		}},
	}
}

func newTestServer(state StateReader, audit *fakeAudit, opts Options) *Server {
	opts.Log = zerolog.Nop()
	if audit == nil {
		return NewServer(state, nil, fakeRegistry{}, opts)
	}
	return NewServer(state, audit, fakeRegistry{}, opts)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{})
	w := get(t, s, "/api/health")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" || resp.Message != "Virtual Classroom Server is running" {
		t.Errorf("Unexpected body %+v", resp)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestServer_DetailedHealth(t *testing.T) {
	audit := &fakeAudit{}
	s := newTestServer(&fakeState{snap: testSnapshot()}, audit, Options{})

	w := get(t, s, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Audit != "healthy" || resp.Connections["total_connections"] != 3 || resp.System.Goroutines == 0 {
		t.Errorf("Unexpected body %+v", resp)
	}

	audit.healthErr = errors.New("disk gone")
	w = get(t, s, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when audit unhealthy, got %d", w.Code)
	}
}

func TestServer_DetailedHealthWithoutAudit(t *testing.T) {
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{})

	w := get(t, s, "/health")
	var resp HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.Audit != "disabled" {
		t.Errorf("Expected healthy with audit disabled, got %d %+v", w.Code, resp)
	}
}

func TestServer_Stats(t *testing.T) {
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{})

	w := get(t, s, "/api/stats")
	var resp StatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	want := StatsResponse{
		Connections:      3,
		Presences:        2,
		Groups:           4,
		Classrooms:       1,
		CallRooms:        1,
		CallParticipants: 2,
		Events:           []string{types.EventJoin, types.EventMove},
	}
	if !reflect.DeepEqual(resp, want) {
		t.Errorf("Expected %+v, got %+v", want, resp)
	}
}

func TestServer_StatsWhenHubStopped(t *testing.T) {
	s := newTestServer(&fakeState{err: errors.New("stopped")}, nil, Options{})

	if w := get(t, s, "/api/stats"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestServer_Classrooms(t *testing.T) {
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{})

	w := get(t, s, "/api/classrooms")
	var list ClassroomsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Classrooms) != 1 || list.Classrooms[0].ID != "math" {
		t.Errorf("Unexpected list %+v", list)
	}

	w = get(t, s, "/api/classrooms/math")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"pending":[]`) {
		t.Errorf("Expected empty pending list in %s", w.Body.String())
	}

	if w := get(t, s, "/api/classrooms/art"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing classroom, got %d", w.Code)
	}
	if w := get(t, s, "/api/classrooms/bad%20id"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid id, got %d", w.Code)
	}
	if w := get(t, s, "/api/classrooms/math/roster"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown subresource, got %d", w.Code)
	}
}

func TestServer_Audit(t *testing.T) {
	audit := &fakeAudit{entries: []*types.AuditEntry{
		{ID: "e1", ClassroomID: "math", Action: types.AuditRequested, Timestamp: time.Now()},
		{ID: "e2", ClassroomID: "art", Action: types.AuditRequested, Timestamp: time.Now()},
	}}
	s := newTestServer(&fakeState{snap: testSnapshot()}, audit, Options{})

	w := get(t, s, "/api/classrooms/math/audit?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp AuditResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Entries) != 1 || resp.Entries[0].ID != "e1" {
		t.Errorf("Unexpected entries %+v", resp.Entries)
	}
	if audit.lastLimit != 5 {
		t.Errorf("Expected limit 5, got %d", audit.lastLimit)
	}

	if w := get(t, s, "/api/classrooms/math/audit?limit=zero"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", w.Code)
	}
}

func TestServer_AuditDisabled(t *testing.T) {
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{})

	if w := get(t, s, "/api/classrooms/math/audit"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestServer_ICEServers(t *testing.T) {
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})

	w := get(t, s, "/api/ice-servers")
	if !strings.Contains(w.Body.String(), `"urls":["stun:stun.l.google.com:19302"]`) {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{})

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/stats", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/stats", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected preflight 200, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("campus_connections 1\n"))
	})
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{Metrics: metrics, MetricsPath: "/metrics"})

	if w := get(t, s, "/metrics"); !strings.Contains(w.Body.String(), "campus_connections") {
		t.Errorf("Expected metrics output, got %s", w.Body.String())
	}
}

func TestServer_StaticFallback(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>campus</html>"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644)
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{StaticDir: dir})

	if w := get(t, s, "/app.js"); !strings.Contains(w.Body.String(), "console.log") {
		t.Errorf("Expected asset, got %s", w.Body.String())
	}
	if w := get(t, s, "/classroom/math"); !strings.Contains(w.Body.String(), "campus") {
		t.Errorf("Expected index fallback, got %s", w.Body.String())
	}
	if w := get(t, s, "/../../etc/passwd"); strings.Contains(w.Body.String(), "root:") {
		t.Error("Path traversal escaped the static dir")
	}
}

func TestServer_NoStaticDir(t *testing.T) {
	s := newTestServer(&fakeState{snap: testSnapshot()}, nil, Options{})

	if w := get(t, s, "/anything"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
