package interfaces

import (
	"context"

	"campus/pkg/types"
)

// AuditRecorder receives admission decisions. Record must not block the
// caller; the hub goroutine calls it mid-event.
type AuditRecorder interface {
	Record(entry *types.AuditEntry)
}

// AuditStore is the queryable side of the admission history.
type AuditStore interface {
	AuditRecorder

	// ClassroomHistory returns up to limit entries, newest first.
	ClassroomHistory(ctx context.Context, classroomID string, limit int) ([]*types.AuditEntry, error)

	HealthCheck(ctx context.Context) error
}
