// Package api serves the HTTP side: health, read-only views of classroom
// state, audit history, ICE configuration, metrics and the web client.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"campus/internal/classroom"
	"campus/internal/hub"
	"campus/pkg/interfaces"
	"campus/pkg/types"
)

// StateReader is the hub's read side.
type StateReader interface {
	Snapshot(ctx context.Context) (*hub.Snapshot, error)
	Classroom(ctx context.Context, id string) (classroom.Summary, bool, error)
}

// Registry reports live connection counts.
type Registry interface {
	GetStats() map[string]int
}

type Options struct {
	// StaticDir is the built client; empty disables static serving.
	StaticDir   string
	ICEServers  []webrtc.ICEServer
	Metrics     http.Handler
	MetricsPath string
	Log         zerolog.Logger
}

type Server struct {
	state    StateReader
	audit    interfaces.AuditStore
	registry Registry
	opts     Options
	started  time.Time
	log      zerolog.Logger
	router   *http.ServeMux
}

// NewServer wires the routes. audit may be nil when the log is disabled.
func NewServer(state StateReader, audit interfaces.AuditStore, registry Registry, opts Options) *Server {
	if opts.ICEServers == nil {
		opts.ICEServers = []webrtc.ICEServer{}
	}
	s := &Server{
		state:    state,
		audit:    audit,
		registry: registry,
		opts:     opts,
		started:  time.Now(),
		log:      opts.Log.With().Str("component", "api").Logger(),
		router:   http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := func(h http.HandlerFunc) http.Handler {
		return s.corsMiddleware(s.jsonMiddleware(h))
	}

	s.router.Handle("/api/health", api(s.handleHealth))
	s.router.Handle("/health", api(s.handleDetailedHealth))
	s.router.Handle("/api/stats", api(s.handleStats))
	s.router.Handle("/api/classrooms", api(s.handleClassrooms))
	s.router.Handle("/api/classrooms/", api(s.handleClassroomByID))
	s.router.Handle("/api/ice-servers", api(s.handleICEServers))
	if s.opts.Metrics != nil && s.opts.MetricsPath != "" {
		s.router.Handle(s.opts.MetricsPath, s.opts.Metrics)
	}
	s.router.HandleFunc("/", s.handleStatic)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Audit       string         `json:"audit"`
	Connections map[string]int `json:"connections"`
	System      SystemInfo     `json:"system"`
}

type SystemInfo struct {
	Goroutines    int    `json:"goroutines"`
	Uptime        string `json:"uptime"`
	HeapAllocByte uint64 `json:"heap_alloc_bytes"`
}

type StatsResponse struct {
	Connections      int `json:"connections"`
	Presences        int `json:"presences"`
	Groups           int `json:"groups"`
	Classrooms       int `json:"classrooms"`
	CallRooms        int `json:"call_rooms"`
	CallParticipants int `json:"call_participants"`

	// Events are the inbound event names the server accepts.
	Events []string `json:"events"`
}

type ClassroomsResponse struct {
	Classrooms []classroom.Summary `json:"classrooms"`
}

type AuditResponse struct {
	ClassroomID string              `json:"classroom_id"`
	Entries     []*types.AuditEntry `json:"entries"`
}

type ICEServersResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "ok",
		Message: "Virtual Classroom Server is running",
	})
}

// GET /health
func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, auditStatus := "healthy", "disabled"
	if s.audit != nil {
		auditStatus = "healthy"
		if err := s.audit.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			auditStatus = "error: " + err.Error()
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Audit:       auditStatus,
		Connections: s.registry.GetStats(),
		System: SystemInfo{
			Goroutines:    runtime.NumGoroutine(),
			Uptime:        time.Since(s.started).Round(time.Second).String(),
			HeapAllocByte: mem.HeapAlloc,
		},
	})
}

// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	snap, err := s.state.Snapshot(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("snapshot failed")
		s.sendError(w, "State unavailable", http.StatusServiceUnavailable)
		return
	}

	participants := 0
	for _, room := range snap.CallRooms {
		participants += len(room.Participants)
	}
	s.writeJSON(w, http.StatusOK, StatsResponse{
		Connections:      snap.Connections,
		Presences:        snap.Presences,
		Groups:           snap.Groups,
		Classrooms:       len(snap.Classrooms),
		CallRooms:        len(snap.CallRooms),
		CallParticipants: participants,
		Events:           snap.Events,
	})
}

// GET /api/classrooms
func (s *Server) handleClassrooms(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	snap, err := s.state.Snapshot(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("snapshot failed")
		s.sendError(w, "State unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, ClassroomsResponse{Classrooms: snap.Classrooms})
}

// GET /api/classrooms/{id} and /api/classrooms/{id}/audit
func (s *Server) handleClassroomByID(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/classrooms/"), "/"), "/")
	id := parts[0]
	if !types.IsValidID(id) {
		s.sendError(w, "Invalid classroom ID", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1:
		s.getClassroom(w, r, id)
	case len(parts) == 2 && parts[1] == "audit":
		s.getAudit(w, r, id)
	default:
		s.sendError(w, "Not found", http.StatusNotFound)
	}
}

func (s *Server) getClassroom(w http.ResponseWriter, r *http.Request, id string) {
	summary, found, err := s.state.Classroom(r.Context(), id)
	if err != nil {
		s.log.Warn().Err(err).Str("classroom", id).Msg("classroom lookup failed")
		s.sendError(w, "State unavailable", http.StatusServiceUnavailable)
		return
	}
	if !found {
		s.sendError(w, "Classroom not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request, id string) {
	if s.audit == nil {
		s.sendError(w, "Audit log disabled", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.sendError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.audit.ClassroomHistory(r.Context(), id, limit)
	if err != nil {
		s.log.Error().Err(err).Str("classroom", id).Msg("audit history failed")
		s.sendError(w, "Failed to read audit history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, AuditResponse{ClassroomID: id, Entries: entries})
}

// GET /api/ice-servers
func (s *Server) handleICEServers(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, ICEServersResponse{ICEServers: s.opts.ICEServers})
}

// handleStatic serves the client bundle, falling back to index.html for
// client-side routes.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if s.opts.StaticDir == "" || strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json")
		s.sendError(w, "Not found", http.StatusNotFound)
		return
	}

	file := filepath.Join(s.opts.StaticDir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		http.ServeFile(w, r, file)
		return
	}

	index := filepath.Join(s.opts.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		w.Header().Set("Content-Type", "application/json")
		s.sendError(w, "Not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, index)
}

func (s *Server) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("failed to write response")
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// corsMiddleware allows any origin; the client may be served from a dev
// server on another port.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
