package interfaces

import "errors"

// Common errors shared across component boundaries
var (
	ErrDispatcherStopped = errors.New("dispatcher is not running")
	ErrAuditUnavailable  = errors.New("audit store unavailable")
)
