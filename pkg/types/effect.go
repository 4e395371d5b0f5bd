package types

// EffectKind says how the dispatch core applies an Effect.
type EffectKind int

const (
	// EffectEmit sends to a single connection.
	EffectEmit EffectKind = iota
	// EffectBroadcast sends to every member of a group, minus Except if set.
	EffectBroadcast
	EffectSubscribe
	EffectUnsubscribe
)

// Effect is one outcome of a component operation. Components return them
// in order and never touch connections or groups themselves.
type Effect struct {
	Kind EffectKind
	// Conn is the target connection for emit/subscribe/unsubscribe.
	Conn string
	// Group is the target group for broadcast/subscribe/unsubscribe.
	Group  string
	Except string
	Event  string
	Data   interface{}
}

func Emit(conn, event string, data interface{}) Effect {
	return Effect{Kind: EffectEmit, Conn: conn, Event: event, Data: data}
}

func Broadcast(group, event string, data interface{}) Effect {
	return Effect{Kind: EffectBroadcast, Group: group, Event: event, Data: data}
}

func BroadcastExcept(group, except, event string, data interface{}) Effect {
	return Effect{Kind: EffectBroadcast, Group: group, Except: except, Event: event, Data: data}
}

func Subscribe(conn, group string) Effect {
	return Effect{Kind: EffectSubscribe, Conn: conn, Group: group}
}

func Unsubscribe(conn, group string) Effect {
	return Effect{Kind: EffectUnsubscribe, Conn: conn, Group: group}
}

// WorldGroup is the presence broadcast group for a world room.
func WorldGroup(room string) string {
	return "world-" + room
}

// ClassroomGroup is the roster broadcast group for a classroom.
func ClassroomGroup(classroomID string) string {
	return "classroom-" + classroomID
}

// VideoGroup is the call-room broadcast group for a room or classroom id.
func VideoGroup(roomID string) string {
	return "video-" + roomID
}
