// Package hub is the single owner of coordination state. One goroutine
// takes inbound events and disconnects in arrival order, routes each to
// completion and delivers the resulting frames.
package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"campus/internal/callroom"
	"campus/internal/classroom"
	"campus/internal/metrics"
	"campus/internal/presence"
	"campus/internal/router"
	"campus/internal/websocket"
	"campus/pkg/types"
)

// inbound is an event, a closed connection or a read query. All share one
// queue: a connection's last events are handled before its cleanup, and
// a query sees every event queued before it.
type inbound struct {
	connID     string
	env        *types.Envelope
	disconnect bool
	query      func()
}

// Deps are the collaborators a Hub coordinates.
type Deps struct {
	Registry   *websocket.Registry
	Router     *router.Router
	Presence   *presence.Registry
	Classrooms *classroom.Manager
	Calls      *callroom.Relay
	Metrics    *metrics.Metrics
	Log        zerolog.Logger
	// QueueSize bounds the inbound queue; zero means 1000.
	QueueSize int
}

type Hub struct {
	inboundChannel  chan inbound
	shutdownChannel chan struct{}
	done            chan struct{}

	registry   *websocket.Registry
	router     *router.Router
	presence   *presence.Registry
	classrooms *classroom.Manager
	calls      *callroom.Relay
	groups     *Groups
	metrics    *metrics.Metrics
	log        zerolog.Logger

	running bool
	mu      sync.RWMutex
}

func NewHub(d Deps) *Hub {
	size := d.QueueSize
	if size <= 0 {
		size = 1000
	}
	return &Hub{
		inboundChannel:  make(chan inbound, size),
		shutdownChannel: make(chan struct{}),
		done:            make(chan struct{}),
		registry:        d.Registry,
		router:          d.Router,
		presence:        d.Presence,
		classrooms:      d.Classrooms,
		calls:           d.Calls,
		groups:          NewGroups(),
		metrics:         d.Metrics,
		log:             d.Log.With().Str("component", "hub").Logger(),
	}
}

// Start launches the hub goroutine.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true

	h.log.Info().Msg("starting hub")
	go h.run(ctx)
	return nil
}

// Stop signals the hub goroutine and waits for it to exit.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}
	h.mu.Unlock()

	<-h.done
	return nil
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Dispatch queues an inbound event, blocking while the queue is full.
func (h *Hub) Dispatch(ctx context.Context, connID string, env *types.Envelope) error {
	if env == nil {
		return ErrNilEnvelope
	}
	return h.enqueue(ctx, inbound{connID: connID, env: env})
}

// Disconnect queues cleanup for a closed connection.
func (h *Hub) Disconnect(ctx context.Context, connID string) error {
	return h.enqueue(ctx, inbound{connID: connID, disconnect: true})
}

func (h *Hub) enqueue(ctx context.Context, in inbound) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}
	select {
	case h.inboundChannel <- in:
		return nil
	case <-h.shutdownChannel:
		return ErrHubNotRunning
	case <-h.done:
		return ErrHubNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// query runs fn on the hub goroutine and waits for it.
func (h *Hub) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := h.enqueue(ctx, inbound{query: func() { fn(); close(finished) }}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	defer h.log.Info().Msg("hub stopped")

	maintenance := time.NewTicker(time.Minute)
	defer maintenance.Stop()

	for {
		select {
		case in := <-h.inboundChannel:
			switch {
			case in.query != nil:
				in.query()
			case in.disconnect:
				h.handleDisconnect(in.connID)
			default:
				h.handleEvent(in.connID, in.env)
			}

		case <-maintenance.C:
			h.router.Maintain()

		case <-h.shutdownChannel:
			return

		case <-ctx.Done():
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) handleEvent(connID string, env *types.Envelope) {
	start := time.Now()

	effects, err := h.router.Route(connID, env)
	if err != nil {
		h.rejectEvent(connID, env.Event, err)
		return
	}
	h.apply(effects)
	h.metrics.EventProcessed(env.Event, time.Since(start).Seconds())
}

func (h *Hub) rejectEvent(connID, event string, err error) {
	reason := "invalid"
	switch {
	case errors.Is(err, router.ErrUnknownEvent):
		reason = "unknown_event"
	case errors.Is(err, router.ErrRateLimitExceeded):
		reason = "rate_limited"
	}
	h.metrics.EventRejected(reason)
	h.log.Warn().Err(err).Str("conn", connID).Str("event", event).Msg("event rejected")

	h.apply([]types.Effect{types.Emit(connID, types.EventError, types.ErrorPayload{
		Event:   event,
		Message: err.Error(),
	})})
}

func (h *Hub) handleDisconnect(connID string) {
	h.log.Debug().Str("conn", connID).Strs("groups", h.groups.Of(connID)).Msg("releasing connection")
	h.groups.RemoveAll(connID)
	h.registry.UnregisterConnection(connID)
	h.apply(h.router.Disconnect(connID))
	h.log.Debug().Str("conn", connID).Msg("cleanup complete")
}

// apply runs effects in order. Each frame is encoded once per effect.
func (h *Hub) apply(effects []types.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case types.EffectSubscribe:
			h.groups.Join(e.Group, e.Conn)

		case types.EffectUnsubscribe:
			h.groups.Leave(e.Group, e.Conn)

		case types.EffectEmit:
			frame, ok := h.encode(e)
			if !ok {
				continue
			}
			h.deliver(e.Conn, frame)
			h.observe(e)

		case types.EffectBroadcast:
			frame, ok := h.encode(e)
			if !ok {
				continue
			}
			for _, id := range h.groups.Members(e.Group) {
				if id == e.Except {
					continue
				}
				h.deliver(id, frame)
			}
		}
	}
}

func (h *Hub) encode(e types.Effect) ([]byte, bool) {
	frame, err := types.EncodeFrame(e.Event, e.Data)
	if err != nil {
		h.log.Error().Err(err).Str("event", e.Event).Msg("failed to encode frame")
		return nil, false
	}
	return frame, true
}

func (h *Hub) deliver(connID string, frame []byte) {
	conn, ok := h.registry.GetConnection(connID)
	if !ok {
		h.log.Debug().Str("conn", connID).Msg("target not connected, frame dropped")
		return
	}
	if err := conn.Send(frame); err != nil {
		h.metrics.FrameDropped()
		h.log.Warn().Err(err).Str("conn", connID).Msg("frame dropped")
	}
}

func (h *Hub) observe(e types.Effect) {
	switch e.Event {
	case types.EventNoTeacherInClassroom, types.EventClassroomLocked, types.EventClassroomAccessDenied:
		h.metrics.PolicyDenied(e.Event)
	case types.EventVideoSignal, types.EventSignal:
		h.metrics.SignalRelayed()
	}
}

// Snapshot is a point-in-time view of coordination state.
type Snapshot struct {
	Connections int                    `json:"connections"`
	Presences   int                    `json:"presences"`
	Groups      int                    `json:"groups"`
	Events      []string               `json:"events"`
	Classrooms  []classroom.Summary    `json:"classrooms"`
	CallRooms   []callroom.RoomSummary `json:"call_rooms"`
}

// Snapshot reads state on the hub goroutine.
func (h *Hub) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	err := h.query(ctx, func() {
		snap = Snapshot{
			Connections: h.registry.GetStats()["total_connections"],
			Presences:   h.presence.Count(),
			Groups:      h.groups.Len(),
			Events:      h.router.Events(),
			Classrooms:  h.classrooms.Snapshot(),
			CallRooms:   h.calls.Snapshot(),
		}
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Classroom returns one classroom's summary, read on the hub goroutine.
func (h *Hub) Classroom(ctx context.Context, id string) (classroom.Summary, bool, error) {
	var (
		summary classroom.Summary
		found   bool
	)
	err := h.query(ctx, func() {
		summary, found = h.classrooms.Get(id)
	})
	return summary, found, err
}
