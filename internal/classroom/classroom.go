package classroom

import (
	"sort"

	"campus/pkg/types"
)

// State is a classroom's admission state. Teachers may set any value;
// only StateLocked refuses new requests.
type State string

const (
	StateActive State = "active"
	StateLocked State = "locked"
)

// Status is a user's standing in one classroom. A user has exactly one
// status per classroom, so pending and admitted cannot overlap.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusAdmitted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAdmitted:
		return "admitted"
	default:
		return "unknown"
	}
}

// seat is a member or teacher entry. conn is the connection that last
// acted for the seat; notifications and disconnect cleanup use it.
type seat struct {
	types.Identity
	status Status
	conn   string
	seq    uint64
}

// Classroom is created lazily and never deleted.
type Classroom struct {
	ID      string
	State   State
	teacher *seat
	members map[string]*seat
}

func newClassroom(id string) *Classroom {
	return &Classroom{
		ID:      id,
		State:   StateActive,
		members: make(map[string]*seat),
	}
}

// Status reports userID's standing.
func (c *Classroom) Status(userID string) Status {
	if s, ok := c.members[userID]; ok {
		return s.status
	}
	return StatusUnknown
}

// Teacher returns the current teacher, if any.
func (c *Classroom) Teacher() (types.Identity, bool) {
	if c.teacher == nil {
		return types.Identity{}, false
	}
	return c.teacher.Identity, true
}

// Roster builds the classroomUpdate payload. Lists are ordered by when
// each member reached its current status.
func (c *Classroom) Roster() types.Roster {
	var students, pending []*seat
	for _, s := range c.members {
		switch s.status {
		case StatusAdmitted:
			students = append(students, s)
		case StatusPending:
			pending = append(pending, s)
		}
	}

	roster := types.Roster{
		Students: identities(students),
		Pending:  identities(pending),
	}
	if c.teacher != nil {
		t := c.teacher.Identity
		roster.Teacher = &t
	}
	return roster
}

func identities(seats []*seat) []types.Identity {
	sort.Slice(seats, func(i, j int) bool { return seats[i].seq < seats[j].seq })
	out := make([]types.Identity, 0, len(seats))
	for _, s := range seats {
		out = append(out, s.Identity)
	}
	return out
}
