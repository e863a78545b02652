package vlx

import (
	"bytes"
	"strconv"
)

// Cover command payloads.
const (
	PayloadOpen  = "OPEN"
	PayloadClose = "CLOSE"
	PayloadStop  = "STOP"
)

// Keep-open switch payloads.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// Bus positions for fully open and fully closed.
const (
	PositionOpen   = 0
	PositionClosed = 100
)

// CommandKind is the driver operation a cover command maps to.
type CommandKind int

const (
	CommandSetPosition CommandKind = iota
	CommandStop
)

// String returns the kind as used in metrics labels.
func (k CommandKind) String() string {
	if k == CommandStop {
		return "stop"
	}
	return "set_position"
}

// Command is a validated cover command. Position is a bus position and is
// only meaningful for CommandSetPosition.
type Command struct {
	Kind     CommandKind
	Position int
}

// ParseCommand validates a cover command payload. Surrounding whitespace
// is ignored; keywords are case-sensitive. Anything other than OPEN, CLOSE,
// STOP or an integer 0..100 returns a *ValidationError.
func ParseCommand(payload []byte) (Command, error) {
	s := string(bytes.TrimSpace(payload))

	switch s {
	case PayloadOpen:
		return Command{Kind: CommandSetPosition, Position: PositionOpen}, nil
	case PayloadClose:
		return Command{Kind: CommandSetPosition, Position: PositionClosed}, nil
	case PayloadStop:
		return Command{Kind: CommandStop}, nil
	}

	if !isDigits(s) {
		return Command{}, &ValidationError{Payload: string(payload), Reason: "not a command or position"}
	}
	pct, err := strconv.Atoi(s)
	if err != nil {
		return Command{}, &ValidationError{Payload: string(payload), Reason: "not a command or position"}
	}
	if pct < PositionOpen || pct > PositionClosed {
		return Command{}, &ValidationError{Payload: string(payload), Reason: "position out of range 0..100"}
	}
	return Command{Kind: CommandSetPosition, Position: pct}, nil
}

// isDigits rejects signs, which strconv.Atoi would accept.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseSwitch validates a keep-open switch payload.
func ParseSwitch(payload []byte) (bool, error) {
	switch string(bytes.TrimSpace(payload)) {
	case PayloadOn:
		return true, nil
	case PayloadOff:
		return false, nil
	default:
		return false, &ValidationError{Payload: string(payload), Reason: "expected ON or OFF"}
	}
}
