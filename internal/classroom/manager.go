// Package classroom runs the admission protocol for every classroom:
// join requests, teacher decisions, entry, removal, locking and leaving.
package classroom

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"campus/pkg/interfaces"
	"campus/pkg/types"
)

// Denial reasons sent with classroomAccessDenied.
const (
	ReasonStillPending = "Your request is still pending. Please wait for teacher approval."
	ReasonMustRequest  = "You must request to join this classroom first."
)

type requestKey struct {
	studentID   string
	classroomID string
}

// Summary is a read-only view of one classroom.
type Summary struct {
	ID     string       `json:"id"`
	State  State        `json:"state"`
	Roster types.Roster `json:"roster"`
}

// Manager owns every classroom and the outstanding request keys. It is
// owned by the hub goroutine and is not safe for concurrent use.
type Manager struct {
	classrooms map[string]*Classroom
	requests   map[requestKey]struct{}
	seq        uint64
	audit      interfaces.AuditRecorder
	log        zerolog.Logger
	now        func() time.Time
}

// NewManager creates an empty manager. audit may be nil.
func NewManager(audit interfaces.AuditRecorder, log zerolog.Logger) *Manager {
	return &Manager{
		classrooms: make(map[string]*Classroom),
		requests:   make(map[requestKey]struct{}),
		audit:      audit,
		log:        log.With().Str("component", "classroom").Logger(),
		now:        time.Now,
	}
}

func (m *Manager) getOrCreate(id string) (*Classroom, bool) {
	if c, ok := m.classrooms[id]; ok {
		return c, false
	}
	c := newClassroom(id)
	m.classrooms[id] = c
	return c, true
}

func (m *Manager) nextSeq() uint64 {
	m.seq++
	return m.seq
}

func rosterUpdate(c *Classroom) types.Effect {
	return types.Broadcast(types.ClassroomGroup(c.ID), types.EventClassroomUpdate, c.Roster())
}

// RequestJoin asks for admission on behalf of a student.
func (m *Manager) RequestJoin(connID, studentID, studentName, classroomID string) []types.Effect {
	key := requestKey{studentID, classroomID}
	if _, dup := m.requests[key]; dup {
		m.log.Debug().Str("student", studentID).Str("classroom", classroomID).Msg("duplicate request ignored")
		return nil
	}

	c, created := m.getOrCreate(classroomID)
	subject := types.Identity{ID: studentID, Name: studentName}
	ref := types.ClassroomRef{ClassroomID: classroomID}

	switch {
	case created:
		m.record(classroomID, types.AuditDenied, subject, connID, types.EventNoTeacherInClassroom)
		return []types.Effect{types.Emit(connID, types.EventNoTeacherInClassroom, ref)}
	case c.State == StateLocked:
		m.record(classroomID, types.AuditDenied, subject, connID, types.EventClassroomLocked)
		return []types.Effect{types.Emit(connID, types.EventClassroomLocked, ref)}
	case c.teacher == nil:
		m.record(classroomID, types.AuditDenied, subject, connID, types.EventNoTeacherInClassroom)
		return []types.Effect{types.Emit(connID, types.EventNoTeacherInClassroom, ref)}
	}

	s, exists := c.members[studentID]
	if exists && s.status == StatusAdmitted {
		s.conn = connID
		return []types.Effect{types.Emit(connID, types.EventClassroomResponse, types.ClassroomResponsePayload{
			StudentID:   studentID,
			ClassroomID: classroomID,
			Accepted:    true,
		})}
	}

	m.requests[key] = struct{}{}
	if !exists {
		c.members[studentID] = &seat{Identity: subject, status: StatusPending, conn: connID, seq: m.nextSeq()}
	} else {
		s.conn = connID
	}
	m.record(classroomID, types.AuditRequested, subject, connID, "")

	group := types.ClassroomGroup(classroomID)
	return []types.Effect{
		types.Broadcast(group, types.EventClassroomRequest, types.ClassroomRequestPayload{
			StudentID:   studentID,
			StudentName: studentName,
			ClassroomID: classroomID,
		}),
		rosterUpdate(c),
	}
}

// TeacherJoin seats a teacher, replacing any previous one.
func (m *Manager) TeacherJoin(connID, teacherID, teacherName, classroomID string) []types.Effect {
	c, _ := m.getOrCreate(classroomID)
	c.teacher = &seat{
		Identity: types.Identity{ID: teacherID, Name: teacherName},
		conn:     connID,
		seq:      m.nextSeq(),
	}
	m.record(classroomID, types.AuditTeacherSeat, c.teacher.Identity, connID, "")

	return []types.Effect{
		types.Subscribe(connID, types.ClassroomGroup(classroomID)),
		types.Subscribe(connID, types.VideoGroup(classroomID)),
		types.Emit(connID, types.EventClassroomUpdate, c.Roster()),
	}
}

// StudentEnter lets an admitted student into the room and its call.
func (m *Manager) StudentEnter(connID, studentID, classroomID string) []types.Effect {
	c, _ := m.getOrCreate(classroomID)

	s, ok := c.members[studentID]
	if !ok {
		return []types.Effect{types.Emit(connID, types.EventClassroomAccessDenied, types.AccessDeniedPayload{
			ClassroomID: classroomID,
			Reason:      ReasonMustRequest,
		})}
	}
	if s.status == StatusPending {
		return []types.Effect{types.Emit(connID, types.EventClassroomAccessDenied, types.AccessDeniedPayload{
			ClassroomID: classroomID,
			Reason:      ReasonStillPending,
		})}
	}

	s.conn = connID
	m.record(classroomID, types.AuditEntered, s.Identity, connID, "")

	group := types.ClassroomGroup(classroomID)
	return []types.Effect{
		types.Subscribe(connID, group),
		types.Subscribe(connID, types.VideoGroup(classroomID)),
		types.Emit(connID, types.EventClassroomJoined, types.ClassroomRef{ClassroomID: classroomID}),
		types.Emit(connID, types.EventClassroomUpdate, c.Roster()),
		types.BroadcastExcept(group, connID, types.EventStudentJoined, s.Identity),
	}
}

// Decide applies a teacher's accept or reject to a pending student.
// Anything else is a no-op.
func (m *Manager) Decide(action, studentID, classroomID string) []types.Effect {
	c, ok := m.classrooms[classroomID]
	if !ok {
		return nil
	}
	s, ok := c.members[studentID]
	if !ok || s.status != StatusPending {
		return nil
	}

	var accepted bool
	switch action {
	case types.ActionAccept:
		accepted = true
		s.status = StatusAdmitted
		s.seq = m.nextSeq()
		m.record(classroomID, types.AuditAccepted, s.Identity, s.conn, "")
	case types.ActionReject:
		delete(c.members, studentID)
		m.record(classroomID, types.AuditRejected, s.Identity, s.conn, "")
	default:
		return nil
	}
	delete(m.requests, requestKey{studentID, classroomID})

	return []types.Effect{
		types.Emit(s.conn, types.EventClassroomResponse, types.ClassroomResponsePayload{
			StudentID:   studentID,
			ClassroomID: classroomID,
			Accepted:    accepted,
		}),
		rosterUpdate(c),
	}
}

// Remove expels an admitted student. The student's connection hears
// userLeftVideo and is then dropped from both groups.
func (m *Manager) Remove(studentID, classroomID string) []types.Effect {
	c, ok := m.classrooms[classroomID]
	if !ok {
		return nil
	}
	s, ok := c.members[studentID]
	if !ok || s.status != StatusAdmitted {
		return nil
	}
	delete(c.members, studentID)
	m.record(classroomID, types.AuditRemoved, s.Identity, s.conn, "")

	videoGroup := types.VideoGroup(classroomID)
	return []types.Effect{
		types.Broadcast(videoGroup, types.EventUserLeftVideo, types.VideoParticipant{UserID: studentID}),
		types.Unsubscribe(s.conn, types.ClassroomGroup(classroomID)),
		types.Unsubscribe(s.conn, videoGroup),
		rosterUpdate(c),
	}
}

// ToggleState sets the classroom's state to exactly the caller's value.
func (m *Manager) ToggleState(classroomID string, state State) []types.Effect {
	c, ok := m.classrooms[classroomID]
	if !ok {
		return nil
	}
	c.State = state
	m.record(classroomID, types.AuditStateChanged, types.Identity{}, "", string(state))
	return []types.Effect{rosterUpdate(c)}
}

// Leave drops userID from whatever seat it holds and unsubscribes connID.
func (m *Manager) Leave(connID, userID, classroomID string) []types.Effect {
	c, ok := m.classrooms[classroomID]
	if !ok {
		return nil
	}

	if s, ok := c.members[userID]; ok {
		if s.status == StatusPending {
			delete(m.requests, requestKey{userID, classroomID})
		}
		delete(c.members, userID)
		m.record(classroomID, types.AuditLeft, s.Identity, connID, s.status.String())
	}
	if c.teacher != nil && c.teacher.ID == userID {
		m.record(classroomID, types.AuditLeft, c.teacher.Identity, connID, "teacher")
		c.teacher = nil
	}

	group := types.ClassroomGroup(classroomID)
	videoGroup := types.VideoGroup(classroomID)
	return []types.Effect{
		types.Unsubscribe(connID, group),
		types.Unsubscribe(connID, videoGroup),
		types.Broadcast(group, types.EventStudentLeft, userID),
		types.Broadcast(videoGroup, types.EventUserLeftVideo, types.VideoParticipant{UserID: userID}),
		rosterUpdate(c),
	}
}

// Disconnect releases every seat held by connID across all classrooms.
func (m *Manager) Disconnect(connID string) []types.Effect {
	var effects []types.Effect

	for _, id := range m.sortedIDs() {
		c := m.classrooms[id]
		changed := false
		group := types.ClassroomGroup(id)

		for _, s := range sortedSeats(c.members) {
			if s.conn != connID {
				continue
			}
			delete(c.members, s.ID)
			changed = true
			m.record(id, types.AuditReleased, s.Identity, connID, s.status.String())
			if s.status == StatusPending {
				delete(m.requests, requestKey{s.ID, id})
			} else {
				effects = append(effects, types.Broadcast(group, types.EventStudentLeft, s.ID))
			}
		}
		if c.teacher != nil && c.teacher.conn == connID {
			m.record(id, types.AuditReleased, c.teacher.Identity, connID, "teacher")
			c.teacher = nil
			changed = true
		}

		if changed {
			effects = append(effects, rosterUpdate(c))
		}
	}
	return effects
}

// Get returns a classroom's summary.
func (m *Manager) Get(classroomID string) (Summary, bool) {
	c, ok := m.classrooms[classroomID]
	if !ok {
		return Summary{}, false
	}
	return Summary{ID: c.ID, State: c.State, Roster: c.Roster()}, true
}

// Snapshot summarizes every classroom ordered by id.
func (m *Manager) Snapshot() []Summary {
	ids := m.sortedIDs()
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		c := m.classrooms[id]
		out = append(out, Summary{ID: c.ID, State: c.State, Roster: c.Roster()})
	}
	return out
}

// Status reports a user's standing in a classroom.
func (m *Manager) Status(userID, classroomID string) Status {
	c, ok := m.classrooms[classroomID]
	if !ok {
		return StatusUnknown
	}
	return c.Status(userID)
}

// HasRequest reports whether a request key is outstanding.
func (m *Manager) HasRequest(studentID, classroomID string) bool {
	_, ok := m.requests[requestKey{studentID, classroomID}]
	return ok
}

func (m *Manager) sortedIDs() []string {
	ids := make([]string, 0, len(m.classrooms))
	for id := range m.classrooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedSeats(members map[string]*seat) []*seat {
	out := make([]*seat, 0, len(members))
	for _, s := range members {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (m *Manager) record(classroomID, action string, subject types.Identity, connID, detail string) {
	if m.audit == nil {
		return
	}
	m.audit.Record(&types.AuditEntry{
		ID:           uuid.NewString(),
		ClassroomID:  classroomID,
		Action:       action,
		SubjectID:    subject.ID,
		SubjectName:  subject.Name,
		ConnectionID: connID,
		Detail:       detail,
		Timestamp:    m.now(),
	})
}
