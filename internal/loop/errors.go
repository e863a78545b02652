package loop

import "errors"

// Domain errors for the gateway loop.
var (
	// ErrStopped is returned when work is submitted to a loop that is not
	// running, or that stopped before the work ran.
	ErrStopped = errors.New("loop: not running")

	// ErrCallTimeout is returned when the caller's context or the
	// configured call timeout expires before the operation completes.
	ErrCallTimeout = errors.New("loop: call timed out")

	// ErrOperationPanic is returned when an invoked operation panics.
	// The panic value is included in the error message.
	ErrOperationPanic = errors.New("loop: operation panicked")
)
