package interfaces

import (
	"context"

	"campus/pkg/types"
)

// Dispatcher accepts inbound events and connection closures from the
// transport layer.
type Dispatcher interface {
	// Dispatch queues an inbound envelope from connID. It blocks until the
	// event is queued, ctx is done or the dispatcher stops.
	Dispatch(ctx context.Context, connID string, env *types.Envelope) error

	// Disconnect queues cleanup for connID. Called exactly once per
	// connection.
	Disconnect(ctx context.Context, connID string) error
}
