package vlx

// Movement is the direction a cover is travelling, in bus terms.
type Movement int

const (
	MovementIdle Movement = iota
	MovementOpening
	MovementClosing
)

func (m Movement) String() string {
	switch m {
	case MovementOpening:
		return "opening"
	case MovementClosing:
		return "closing"
	default:
		return "idle"
	}
}

// Cover state payloads.
const (
	StateOpen    = "open"
	StateClosed  = "closed"
	StateOpening = "opening"
	StateClosing = "closing"
)

// CoverState is the bus-visible state of a cover.
type CoverState struct {
	Position int
	Movement Movement
	Limited  bool
}

// BusState returns the state topic payload.
func (s CoverState) BusState() string {
	switch s.Movement {
	case MovementOpening:
		return StateOpening
	case MovementClosing:
		return StateClosing
	}
	if s.Position == PositionClosed {
		return StateClosed
	}
	return StateOpen
}

// Mapper converts between raw device positions and bus state for one node.
//
// It holds the outstanding set-position target and the keep-open flag.
// A Mapper is owned by the loop goroutine and is not safe for concurrent
// use.
type Mapper struct {
	invert bool
	limit  int

	target    int
	hasTarget bool
	limited   bool
}

// NewMapper creates a mapper. limit is the highest raw position accepted
// while keep-open is active.
func NewMapper(invert bool, limit int) *Mapper {
	return &Mapper{
		invert: invert,
		limit:  clampPosition(limit),
	}
}

// Limited reports whether keep-open is active.
func (m *Mapper) Limited() bool { return m.limited }

// SetLimited switches keep-open on or off.
func (m *Mapper) SetLimited(on bool) { m.limited = on }

// Target converts a bus target into the raw position to send to the
// driver and records it as outstanding. clamped is true when keep-open
// reduced the target.
func (m *Mapper) Target(busPosition int) (raw int, clamped bool) {
	raw = clampPosition(busPosition)
	if m.invert {
		raw = PositionClosed - raw
	}
	if m.limited && raw > m.limit {
		raw = m.limit
		clamped = true
	}
	m.target = raw
	m.hasTarget = true
	return raw, clamped
}

// Outstanding returns the raw target of the pending set-position, if any.
func (m *Mapper) Outstanding() (int, bool) {
	return m.target, m.hasTarget
}

// Clear drops the outstanding target. Used after Stop or a failed
// SetPosition.
func (m *Mapper) Clear() {
	m.hasTarget = false
}

// Restore puts back a target previously returned by Outstanding.
func (m *Mapper) Restore(raw int, ok bool) {
	m.target, m.hasTarget = raw, ok
}

// Enforce returns the raw position to move to when keep-open is active and
// the device sits beyond the limit. The returned target is recorded as
// outstanding.
func (m *Mapper) Enforce(raw int) (int, bool) {
	if !m.limited || clampPosition(raw) <= m.limit {
		return 0, false
	}
	m.target = m.limit
	m.hasTarget = true
	return m.limit, true
}

// Observe computes the bus state for a raw device position and the target
// the device itself reports. Positions outside [0,100] are clamped; a
// device target outside that range means the device does not know it and
// is ignored.
//
// The outstanding target is cleared when it is reached or when the device
// reports a different target, which happens when it halts early or is
// moved by another controller.
func (m *Mapper) Observe(raw, deviceTarget int) CoverState {
	pos := clampPosition(raw)
	known := deviceTarget == clampPosition(deviceTarget)

	if m.hasTarget && known && deviceTarget != m.target {
		m.hasTarget = false
	}

	target, tracking := m.target, m.hasTarget
	if !tracking && known {
		target, tracking = deviceTarget, true
	}

	movement := MovementIdle
	if tracking {
		switch {
		case target < pos:
			movement = MovementOpening
		case target > pos:
			movement = MovementClosing
		default:
			m.hasTarget = false
		}
	}

	if m.invert {
		pos = PositionClosed - pos
		switch movement {
		case MovementOpening:
			movement = MovementClosing
		case MovementClosing:
			movement = MovementOpening
		}
	}

	return CoverState{Position: pos, Movement: movement, Limited: m.limited}
}

func clampPosition(p int) int {
	return min(max(p, PositionOpen), PositionClosed)
}
