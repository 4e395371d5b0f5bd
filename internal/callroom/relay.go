// Package callroom tracks call participants and relays WebRTC signaling
// between connections. Payloads are forwarded untouched.
package callroom

import (
	"encoding/json"
	"sort"

	"github.com/rs/zerolog"

	"campus/pkg/types"
)

// UnknownSender is used when a signal comes from a connection that never
// joined a call room.
const UnknownSender = "Unknown"

// Participant is one call member.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
	conn string
}

type room struct {
	id           string
	participants map[string]*Participant
	order        []string
}

func (r *room) add(p *Participant) {
	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
}

func (r *room) remove(id string) {
	delete(r.participants, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// membership is one entry of the connection reverse index.
type membership struct {
	roomID      string
	participant *Participant
}

// RoomSummary is a read-only view of a call room.
type RoomSummary struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
}

// Relay owns every call room. It is owned by the hub goroutine and is not
// safe for concurrent use.
type Relay struct {
	rooms  map[string]*room
	byConn map[string][]membership
	log    zerolog.Logger
}

func NewRelay(log zerolog.Logger) *Relay {
	return &Relay{
		rooms:  make(map[string]*room),
		byConn: make(map[string][]membership),
		log:    log.With().Str("component", "callroom").Logger(),
	}
}

// JoinRoom adds a participant (once per id) and announces it to the rest
// of the room.
func (r *Relay) JoinRoom(connID, roomID, participantID, name, role string) []types.Effect {
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, participants: make(map[string]*Participant)}
		r.rooms[roomID] = rm
	}

	if _, exists := rm.participants[participantID]; !exists {
		p := &Participant{ID: participantID, Name: name, Role: role, conn: connID}
		rm.add(p)
		r.byConn[connID] = append(r.byConn[connID], membership{roomID: roomID, participant: p})
		r.log.Debug().Str("conn", connID).Str("room", roomID).Str("participant", participantID).Msg("joined call")
	}

	group := types.VideoGroup(roomID)
	return []types.Effect{
		types.Subscribe(connID, group),
		types.BroadcastExcept(group, connID, types.EventUserJoinedVideo, types.VideoParticipant{
			UserID:   participantID,
			UserName: name,
			UserRole: role,
		}),
	}
}

// sender resolves signal metadata from the newest call membership.
func (r *Relay) sender(connID string) (name, role string) {
	ms := r.byConn[connID]
	if len(ms) == 0 {
		return UnknownSender, UnknownSender
	}
	p := ms[len(ms)-1].participant
	return p.Name, p.Role
}

// Relay forwards an opaque signaling payload to exactly one connection.
func (r *Relay) Relay(fromConn, toConn string, data json.RawMessage) []types.Effect {
	name, role := r.sender(fromConn)
	return []types.Effect{types.Emit(toConn, types.EventVideoSignal, types.RelayedSignal{
		From:     fromConn,
		Data:     data,
		UserName: name,
		UserRole: role,
	})}
}

// RelayLegacy forwards the older signal event, which carries no sender
// metadata.
func (r *Relay) RelayLegacy(fromConn, toConn string, data json.RawMessage) []types.Effect {
	return []types.Effect{types.Emit(toConn, types.EventSignal, types.LegacySignal{
		From: fromConn,
		Data: data,
	})}
}

// Leave removes every participant joined by connID and tells each room.
func (r *Relay) Leave(connID string) []types.Effect {
	ms, ok := r.byConn[connID]
	if !ok {
		return nil
	}
	delete(r.byConn, connID)

	var effects []types.Effect
	for _, m := range ms {
		rm, ok := r.rooms[m.roomID]
		if !ok {
			continue
		}
		rm.remove(m.participant.ID)
		if len(rm.participants) == 0 {
			delete(r.rooms, m.roomID)
		}
		effects = append(effects, types.Broadcast(types.VideoGroup(m.roomID), types.EventUserLeftVideo, types.VideoParticipant{
			UserID:   m.participant.ID,
			UserName: m.participant.Name,
			UserRole: m.participant.Role,
		}))
	}
	return effects
}

// Participants lists a room's members in join order.
func (r *Relay) Participants(roomID string) []Participant {
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Participant, 0, len(rm.order))
	for _, id := range rm.order {
		out = append(out, *rm.participants[id])
	}
	return out
}

// Snapshot summarizes every room ordered by id.
func (r *Relay) Snapshot() []RoomSummary {
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]RoomSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, RoomSummary{ID: id, Participants: r.Participants(id)})
	}
	return out
}
