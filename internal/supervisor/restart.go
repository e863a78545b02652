package supervisor

import (
	"sync"
)

// Restart reasons passed to RestartController.Trigger.
const (
	ReasonHealthCheckTimeout = "health_check_timeout"
	ReasonPeriodicRestart    = "periodic_restart"
	ReasonConnectionError    = "connection_error"
)

// RestartController is the one-shot restart signal.
//
// The first Trigger wins: it records the reason, marks the health state
// RestartPending and closes Done. The process's main goroutine waits on
// Done and performs an ordered teardown followed by exit.
type RestartController struct {
	health    *Health
	logger    Logger
	onTrigger func(reason string)

	once   sync.Once
	done   chan struct{}
	mu     sync.RWMutex
	reason string
}

// NewRestartController creates a controller bound to health.
// onTrigger, if non-nil, is called once with the winning reason.
func NewRestartController(health *Health, logger Logger, onTrigger func(reason string)) *RestartController {
	return &RestartController{
		health:    health,
		logger:    logger,
		onTrigger: onTrigger,
		done:      make(chan struct{}),
	}
}

// Trigger requests a restart. It returns true for the call that set the
// signal and false for every later call. Safe for concurrent use.
func (r *RestartController) Trigger(reason string) bool {
	fired := false
	r.once.Do(func() {
		fired = true

		r.mu.Lock()
		r.reason = reason
		r.mu.Unlock()

		if r.health != nil {
			r.health.markRestartPending()
		}
		if r.logger != nil {
			r.logger.Warn("restart triggered", "reason", reason)
		}
		if r.onTrigger != nil {
			r.onTrigger(reason)
		}
		close(r.done)
	})

	if !fired && r.logger != nil {
		r.logger.Debug("restart already pending, ignoring trigger", "reason", reason)
	}
	return fired
}

// Done is closed once a restart has been triggered.
func (r *RestartController) Done() <-chan struct{} {
	return r.done
}

// Triggered reports whether a restart has been triggered.
func (r *RestartController) Triggered() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Reason returns the reason passed to the winning Trigger, or "".
func (r *RestartController) Reason() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reason
}
