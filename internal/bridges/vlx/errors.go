package vlx

import (
	"errors"
	"fmt"
)

// Domain errors for the vlx bridge.
var (
	// ErrInvalidPayload is wrapped by every ValidationError.
	ErrInvalidPayload = errors.New("vlx: invalid payload")

	// ErrDuplicateEntityID is returned when two nodes sanitise to the same
	// entity id. It aborts startup.
	ErrDuplicateEntityID = errors.New("vlx: duplicate entity id")

	// ErrGatewayOperation is wrapped by every GatewayOperationError.
	ErrGatewayOperation = errors.New("vlx: gateway operation failed")
)

// ValidationError reports an inbound command payload that was rejected
// before reaching the gateway.
type ValidationError struct {
	Payload string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vlx: invalid payload %q: %s", e.Payload, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidPayload
}

// GatewayOperationError reports a failed SetPosition or Stop.
type GatewayOperationError struct {
	EntityID string
	Op       string
	Err      error
}

func (e *GatewayOperationError) Error() string {
	return fmt.Sprintf("vlx: %s on %s: %v", e.Op, e.EntityID, e.Err)
}

// Unwrap exposes both ErrGatewayOperation and the underlying cause.
func (e *GatewayOperationError) Unwrap() []error {
	return []error{ErrGatewayOperation, e.Err}
}
