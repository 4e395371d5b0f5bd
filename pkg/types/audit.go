package types

import "time"

// Audit actions recorded for admission decisions.
const (
	AuditRequested    = "requested"
	AuditDenied       = "denied"
	AuditAccepted     = "accepted"
	AuditRejected     = "rejected"
	AuditEntered      = "entered"
	AuditRemoved      = "removed"
	AuditStateChanged = "state_changed"
	AuditLeft         = "left"
	AuditReleased     = "released"
	AuditTeacherSeat  = "teacher_joined"
)

// AuditEntry is one row of the admission history.
type AuditEntry struct {
	ID           string    `json:"id"`
	ClassroomID  string    `json:"classroom_id"`
	Action       string    `json:"action"`
	SubjectID    string    `json:"subject_id"`
	SubjectName  string    `json:"subject_name,omitempty"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
