package gateway

import (
	"context"
	"strings"
)

// Driver is a connection to a gateway.
//
// A driver and its nodes are owned by the loop goroutine: every method must
// be called from a loop task, and node callbacks are raised there too.
type Driver interface {
	// Connect opens the session and authenticates.
	Connect(ctx context.Context) error

	// Discover returns the nodes known to the gateway.
	Discover(ctx context.Context) ([]Node, error)

	// Ping performs a round trip to the gateway without changing any
	// node. It fails when the session is gone.
	Ping(ctx context.Context) error

	// Disconnect closes the session. It is safe to call more than once.
	Disconnect(ctx context.Context) error
}

// Node is a single actuator behind the gateway.
//
// Positions are raw device positions: 0 is fully open, 100 fully closed.
// Position may return a value outside [0,100] when the gateway does not
// know where the actuator is.
type Node interface {
	ID() int
	Name() string
	Type() DeviceType
	Position() int

	// Target is the position the device itself is moving toward. It equals
	// Position while the device is idle and is outside [0,100] when unknown.
	Target() int

	// SetPosition starts a move toward pct. It returns once the gateway
	// has accepted the command; progress arrives through Subscribe.
	SetPosition(ctx context.Context, pct int) error

	// Stop halts any movement.
	Stop(ctx context.Context) error

	// Subscribe registers a callback for node updates. Callbacks run on
	// the loop goroutine.
	Subscribe(fn func(Node))
}

// DeviceType is the closed set of opening devices a gateway can report.
type DeviceType int

const (
	TypeUnknown DeviceType = iota
	TypeWindow
	TypeBlind
	TypeAwning
	TypeRollerShutter
	TypeGarageDoor
	TypeGate
	TypeBlade
)

var deviceTypeNames = map[DeviceType]string{
	TypeUnknown:       "unknown",
	TypeWindow:        "window",
	TypeBlind:         "blind",
	TypeAwning:        "awning",
	TypeRollerShutter: "roller_shutter",
	TypeGarageDoor:    "garage_door",
	TypeGate:          "gate",
	TypeBlade:         "blade",
}

// String returns the configuration name of the type.
func (t DeviceType) String() string {
	if name, ok := deviceTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseDeviceType parses a configuration name such as "roller_shutter".
// Spaces and hyphens are accepted in place of underscores. Unrecognised
// names return TypeUnknown and false.
func ParseDeviceType(s string) (DeviceType, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for t, name := range deviceTypeNames {
		if t != TypeUnknown && name == norm {
			return t, true
		}
	}
	return TypeUnknown, false
}
