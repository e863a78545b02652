package supervisor

import "errors"

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("supervisor: invalid configuration")
