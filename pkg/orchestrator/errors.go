package orchestrator

import "errors"

var (
	// ErrClosed is returned by Run once the queue has been closed and
	// drained, the normal shutdown path.
	ErrClosed = errors.New("orchestrator: queue closed")
)
