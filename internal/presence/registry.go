// Package presence tracks where each connection stands in the shared world.
package presence

import (
	"github.com/rs/zerolog"

	"campus/pkg/types"
)

// Spawn position for a fresh join.
const (
	SpawnX = 100.0
	SpawnY = 0.0
	SpawnZ = 100.0
)

// Registry holds one presence per connection. It is owned by the hub
// goroutine and is not safe for concurrent use.
type Registry struct {
	presences map[string]*types.Presence
	log       zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		presences: make(map[string]*types.Presence),
		log:       log.With().Str("component", "presence").Logger(),
	}
}

// Join places connID at the spawn point of room, overwriting any previous
// presence, and broadcasts the room's presence set.
func (r *Registry) Join(connID, userID, role, room string) []types.Effect {
	var effects []types.Effect

	if prev, ok := r.presences[connID]; ok && prev.Room != room {
		delete(r.presences, connID)
		group := types.WorldGroup(prev.Room)
		effects = append(effects,
			types.Unsubscribe(connID, group),
			types.Broadcast(group, types.EventPlayers, r.InRoom(prev.Room)),
		)
	}

	r.presences[connID] = &types.Presence{
		ID:       connID,
		X:        SpawnX,
		Y:        SpawnY,
		Z:        SpawnZ,
		Role:     role,
		Room:     room,
		UserID:   userID,
		UserName: userID,
	}
	r.log.Debug().Str("conn", connID).Str("user", userID).Str("room", room).Msg("joined world")

	group := types.WorldGroup(room)
	return append(effects,
		types.Subscribe(connID, group),
		types.Broadcast(group, types.EventPlayers, r.InRoom(room)),
	)
}

// Move merges the supplied coordinates. Unknown connections are ignored.
func (r *Registry) Move(connID string, delta types.MovePayload) []types.Effect {
	p, ok := r.presences[connID]
	if !ok {
		return nil
	}
	if delta.X != nil {
		p.X = *delta.X
	}
	if delta.Y != nil {
		p.Y = *delta.Y
	}
	if delta.Z != nil {
		p.Z = *delta.Z
	}
	return []types.Effect{types.Broadcast(types.WorldGroup(p.Room), types.EventPlayers, r.InRoom(p.Room))}
}

// Disconnect drops connID's presence and re-broadcasts its former room.
func (r *Registry) Disconnect(connID string) []types.Effect {
	p, ok := r.presences[connID]
	if !ok {
		return nil
	}
	delete(r.presences, connID)
	if p.Room == "" {
		return nil
	}
	return []types.Effect{types.Broadcast(types.WorldGroup(p.Room), types.EventPlayers, r.InRoom(p.Room))}
}

// InRoom returns a copy of every presence in room keyed by connection id.
func (r *Registry) InRoom(room string) map[string]types.Presence {
	out := make(map[string]types.Presence)
	for id, p := range r.presences {
		if p.Room == room {
			out[id] = *p
		}
	}
	return out
}

// Get returns connID's presence, if any.
func (r *Registry) Get(connID string) (types.Presence, bool) {
	p, ok := r.presences[connID]
	if !ok {
		return types.Presence{}, false
	}
	return *p, true
}

func (r *Registry) Count() int {
	return len(r.presences)
}
