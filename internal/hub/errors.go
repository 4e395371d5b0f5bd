package hub

import (
	"errors"
	"fmt"

	"campus/pkg/interfaces"
)

var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = fmt.Errorf("hub: %w", interfaces.ErrDispatcherStopped)
	ErrNilEnvelope       = errors.New("envelope cannot be nil")
)
