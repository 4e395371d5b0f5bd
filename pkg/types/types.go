package types

import "encoding/json"

// Inbound event names.
const (
	EventJoin             = "join"
	EventMove             = "move"
	EventJoinClassroom    = "joinClassroom"
	EventClassroomAction  = "classroomAction"
	EventLeaveClassroom   = "leaveClassroom"
	EventClassroomRequest = "classroomRequest"
	EventJoinVideoRoom    = "joinVideoRoom"
	EventVideoSignal      = "videoSignal"
	EventSignal           = "signal"
)

// Outbound event names. classroomRequest and videoSignal share the
// inbound names above.
const (
	EventConnected             = "connected"
	EventError                 = "error"
	EventPlayers               = "players"
	EventClassroomUpdate       = "classroomUpdate"
	EventStudentJoined         = "studentJoined"
	EventStudentLeft           = "studentLeft"
	EventClassroomResponse     = "classroomResponse"
	EventNoTeacherInClassroom  = "noTeacherInClassroom"
	EventClassroomLocked       = "classroomLocked"
	EventClassroomAccessDenied = "classroomAccessDenied"
	EventClassroomJoined       = "classroomJoined"
	EventUserJoinedVideo       = "userJoinedVideo"
	EventUserLeftVideo         = "userLeftVideo"
)

// Classroom actions carried by classroomAction.
const (
	ActionAccept      = "accept"
	ActionReject      = "reject"
	ActionRemove      = "remove"
	ActionToggleState = "toggleState"
)

// Roles as sent by clients.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Envelope is the frame format on the event channel in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Presence is a connection's position in the shared world.
type Presence struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Role   string  `json:"role"`
	Room   string  `json:"room"`
	UserID string  `json:"userId"`
	// UserName mirrors UserID; clients label avatars with it.
	UserName string `json:"userName"`
}

// Identity names a classroom participant.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Roster is the classroomUpdate payload. Students and Pending are never nil.
type Roster struct {
	Students []Identity `json:"students"`
	Pending  []Identity `json:"pending"`
	Teacher  *Identity  `json:"teacher"`
}

// Client -> server payloads.

type JoinPayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Room   string `json:"room"`
}

type MovePayload struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`
}

type JoinClassroomPayload struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Role        string `json:"role"`
	ClassroomID string `json:"classroomId"`
}

type ClassroomActionPayload struct {
	Action      string `json:"action"`
	StudentID   string `json:"studentId"`
	ClassroomID string `json:"classroomId"`
	State       string `json:"state,omitempty"`
}

type LeaveClassroomPayload struct {
	UserID      string `json:"userId"`
	ClassroomID string `json:"classroomId"`
}

// ClassroomRequestPayload travels both ways: student -> server and
// server -> classroom group.
type ClassroomRequestPayload struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	ClassroomID string `json:"classroomId"`
}

type JoinVideoRoomPayload struct {
	Room     string `json:"room"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
}

// SignalPayload is the inbound form of videoSignal and signal.
type SignalPayload struct {
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

// Server -> client payloads.

type ConnectedPayload struct {
	ID string `json:"id"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

type ClassroomResponsePayload struct {
	StudentID   string `json:"studentId"`
	ClassroomID string `json:"classroomId"`
	Accepted    bool   `json:"accepted"`
}

// ClassroomRef carries just the classroom id (noTeacherInClassroom,
// classroomLocked, classroomJoined).
type ClassroomRef struct {
	ClassroomID string `json:"classroomId"`
}

type AccessDeniedPayload struct {
	ClassroomID string `json:"classroomId"`
	Reason      string `json:"reason"`
}

// VideoParticipant is the userJoinedVideo / userLeftVideo payload.
type VideoParticipant struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
	UserRole string `json:"userRole,omitempty"`
}

// RelayedSignal is the outbound videoSignal payload.
type RelayedSignal struct {
	From     string          `json:"from"`
	Data     json.RawMessage `json:"data"`
	UserName string          `json:"userName"`
	UserRole string          `json:"userRole"`
}

// LegacySignal is the outbound signal payload.
type LegacySignal struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}
