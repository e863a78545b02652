package supervisor

import (
	"sync"
	"time"
)

// State is the connection health state.
type State int

const (
	// StateHealthy means the gateway answered within the health window.
	StateHealthy State = iota

	// StateDegraded means the health window elapsed without contact.
	StateDegraded

	// StateRestartPending is terminal: a restart has been triggered and the
	// process is tearing down.
	StateRestartPending
)

// String returns the lowercase state name used in logs and /healthz.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateRestartPending:
		return "restart_pending"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of the health state.
type Snapshot struct {
	State        string        `json:"state"`
	LastContact  time.Time     `json:"last_contact"`
	LastRestart  time.Time     `json:"last_restart"`
	SinceContact time.Duration `json:"since_contact_ns"`
}

// Health tracks gateway liveness.
//
// It is written from the loop goroutine (RecordContact) and read by the
// supervisor tasks and the status server, so every access goes through the
// mutex.
type Health struct {
	mu          sync.RWMutex
	lastContact time.Time
	lastRestart time.Time
	state       State
	now         func() time.Time
}

// NewHealth creates a Health that starts Healthy with last contact set to
// now. A nil clock uses time.Now.
func NewHealth(now func() time.Time) *Health {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Health{
		lastContact: t,
		state:       StateHealthy,
		now:         now,
	}
}

// RecordContact marks a successful gateway interaction.
// A Degraded state recovers to Healthy; RestartPending is never left.
func (h *Health) RecordContact() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastContact = h.now()
	if h.state != StateRestartPending {
		h.state = StateHealthy
	}
}

// LastContact returns the time of the last successful gateway interaction.
func (h *Health) LastContact() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastContact
}

// LastRestart returns when a restart was triggered, or the zero time.
func (h *Health) LastRestart() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastRestart
}

// State returns the current state.
func (h *Health) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Snapshot returns a copy of all fields taken under one lock.
func (h *Health) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		State:        h.state.String(),
		LastContact:  h.lastContact,
		LastRestart:  h.lastRestart,
		SinceContact: h.now().Sub(h.lastContact),
	}
}

// sinceContact returns the elapsed time since the last contact.
func (h *Health) sinceContact() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.now().Sub(h.lastContact)
}

// markDegraded moves Healthy to Degraded. It reports whether the state is
// now Degraded.
func (h *Health) markDegraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateRestartPending {
		return false
	}
	h.state = StateDegraded
	return true
}

// markRestartPending enters the terminal state and records the restart time.
func (h *Health) markRestartPending() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateRestartPending
	h.lastRestart = h.now()
}
