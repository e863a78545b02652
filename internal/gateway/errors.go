package gateway

import "errors"

// Domain errors for gateway drivers.
var (
	// ErrConnect is returned when the gateway session cannot be opened.
	ErrConnect = errors.New("gateway: connection failed")

	// ErrNotConnected is returned when an operation needs a session.
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrUnknownDriver is returned for an unsupported gateway.driver value.
	ErrUnknownDriver = errors.New("gateway: unknown driver")
)
