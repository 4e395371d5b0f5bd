// Package router maps inbound events to the component operation that
// owns them.
package router

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"campus/internal/callroom"
	"campus/internal/classroom"
	"campus/internal/presence"
	"campus/pkg/types"
)

type handlerFunc func(connID string, raw json.RawMessage) ([]types.Effect, error)

// Router decodes and validates inbound payloads and calls exactly one
// component operation per event. It runs on the hub goroutine.
type Router struct {
	presence   *presence.Registry
	classrooms *classroom.Manager
	calls      *callroom.Relay
	limiter    *RateLimiter
	handlers   map[string]handlerFunc
	log        zerolog.Logger
}

func NewRouter(p *presence.Registry, c *classroom.Manager, calls *callroom.Relay, limiter *RateLimiter, log zerolog.Logger) *Router {
	r := &Router{
		presence:   p,
		classrooms: c,
		calls:      calls,
		limiter:    limiter,
		log:        log.With().Str("component", "router").Logger(),
	}
	r.handlers = map[string]handlerFunc{
		types.EventJoin:             r.handleJoin,
		types.EventMove:             r.handleMove,
		types.EventJoinClassroom:    r.handleJoinClassroom,
		types.EventClassroomAction:  r.handleClassroomAction,
		types.EventLeaveClassroom:   r.handleLeaveClassroom,
		types.EventClassroomRequest: r.handleClassroomRequest,
		types.EventJoinVideoRoom:    r.handleJoinVideoRoom,
		types.EventVideoSignal:      r.handleVideoSignal,
		types.EventSignal:           r.handleSignal,
	}
	return r
}

// Route handles one inbound envelope from connID. An error means state
// was not touched.
func (r *Router) Route(connID string, env *types.Envelope) ([]types.Effect, error) {
	h, ok := r.handlers[env.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if r.limiter != nil && !r.limiter.Allow(connID) {
		return nil, ErrRateLimitExceeded
	}
	return h(connID, env.Data)
}

// Disconnect runs cleanup for a closed connection: presence, then call
// rooms, then classrooms.
func (r *Router) Disconnect(connID string) []types.Effect {
	var effects []types.Effect
	effects = append(effects, r.presence.Disconnect(connID)...)
	effects = append(effects, r.calls.Leave(connID)...)
	effects = append(effects, r.classrooms.Disconnect(connID)...)
	if r.limiter != nil {
		r.limiter.Forget(connID)
	}
	return effects
}

// Events lists the inbound event names the router understands, sorted.
func (r *Router) Events() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if validator, ok := v.(interface{ Validate() error }); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}
	return nil
}

func (r *Router) handleJoin(connID string, raw json.RawMessage) ([]types.Effect, error) {
	var p types.JoinPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return r.presence.Join(connID, p.UserID, p.Role, p.Room), nil
}

func (r *Router) handleMove(connID string, raw json.RawMessage) ([]types.Effect, error) {
	var p types.MovePayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return r.presence.Move(connID, p), nil
}

func (r *Router) handleJoinClassroom(connID string, raw json.RawMessage) ([]types.Effect, error) {
	var p types.JoinClassroomPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.Role == types.RoleTeacher {
		return r.classrooms.TeacherJoin(connID, p.UserID, p.UserName, p.ClassroomID), nil
	}
	return r.classrooms.StudentEnter(connID, p.UserID, p.ClassroomID), nil
}

func (r *Router) handleClassroomAction(connID string, raw json.RawMessage) ([]types.Effect, error) {
	var p types.ClassroomActionPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	switch p.Action {
	case types.ActionAccept, types.ActionReject:
		return r.classrooms.Decide(p.Action, p.StudentID, p.ClassroomID), nil
	case types.ActionRemove:
		return r.classrooms.Remove(p.StudentID, p.ClassroomID), nil
	default:
		return r.classrooms.ToggleState(p.ClassroomID, classroom.State(p.State)), nil
	}
}

func (r *Router) handleLeaveClassroom(connID string, raw json.RawMessage) ([]types.Effect, error) {
	var p types.LeaveClassroomPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return r.classrooms.Leave(connID, p.UserID, p.ClassroomID), nil
}

func (r *Router) handleClassroomRequest(connID string, raw json.RawMessage) ([]types.Effect, error) {
	var p types.ClassroomRequestPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return r.classrooms.RequestJoin(connID, p.StudentID, p.StudentName, p.ClassroomID), nil
}

func (r *Router) handleJoinVideoRoom(connID string, raw json.RawMessage) ([]types.Effect, error) {
	var p types.JoinVideoRoomPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return r.calls.JoinRoom(connID, p.Room, p.UserID, p.UserName, p.UserRole), nil
}

func (r *Router) handleVideoSignal(connID string, raw json.RawMessage) ([]types.Effect, error) {
	var p types.SignalPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return r.calls.Relay(connID, p.To, p.Data), nil
}

func (r *Router) handleSignal(connID string, raw json.RawMessage) ([]types.Effect, error) {
	var p types.SignalPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return r.calls.RelayLegacy(connID, p.To, p.Data), nil
}

// Maintain performs periodic housekeeping.
func (r *Router) Maintain() {
	if r.limiter != nil {
		r.limiter.Cleanup()
	}
}
