package supervisor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// failureThreshold is the number of health intervals without contact after
// which the connection is considered lost.
const failureThreshold = 2.0

// Logger is the logging interface used by the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the supervisor timings.
type Config struct {
	// HealthCheckInterval is how often liveness is checked. 0 disables
	// the health task.
	HealthCheckInterval time.Duration

	// RestartInterval forces a restart on a fixed period. 0 disables it.
	RestartInterval time.Duration

	// StateUpdateInterval is how often the refresher polls the gateway.
	// 0 disables the task.
	StateUpdateInterval time.Duration

	// RestartOnError restarts immediately when a gateway operation fails.
	RestartOnError bool
}

// Refresher polls the gateway and republishes changed state.
// *vlx.Bridge satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Supervisor runs the periodic health, state update and restart tasks.
type Supervisor struct {
	cfg       Config
	health    *Health
	restart   *RestartController
	refresher Refresher
	logger    Logger
}

// New creates a supervisor.
//
// Parameters:
//   - cfg: task timings
//   - health: shared health state, also updated by the bridge
//   - restart: the restart signal the tasks fire
//   - logger: required
func New(cfg Config, health *Health, restart *RestartController, logger Logger) (*Supervisor, error) {
	if health == nil || restart == nil {
		return nil, fmt.Errorf("%w: health and restart controller are required", ErrInvalidConfig)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ErrInvalidConfig)
	}
	if cfg.HealthCheckInterval < 0 || cfg.RestartInterval < 0 || cfg.StateUpdateInterval < 0 {
		return nil, fmt.Errorf("%w: intervals must not be negative", ErrInvalidConfig)
	}
	return &Supervisor{
		cfg:     cfg,
		health:  health,
		restart: restart,
		logger:  logger,
	}, nil
}

// Health returns the shared health state.
func (s *Supervisor) Health() *Health {
	return s.health
}

// Restart returns the restart controller.
func (s *Supervisor) Restart() *RestartController {
	return s.restart
}

// SetRefresher sets the target of the state update task. Must be called
// before Run.
func (s *Supervisor) SetRefresher(r Refresher) {
	s.refresher = r
}

// Run starts the enabled periodic tasks and blocks until ctx is cancelled
// or a restart has been triggered. It returns nil in both cases.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.cfg.HealthCheckInterval > 0 {
		g.Go(func() error {
			s.every(ctx, s.cfg.HealthCheckInterval, func() { s.CheckHealth() })
			return nil
		})
	} else {
		s.logger.Info("health check disabled")
	}

	if s.cfg.StateUpdateInterval > 0 && s.refresher != nil {
		g.Go(func() error {
			s.every(ctx, s.cfg.StateUpdateInterval, func() { s.UpdateState(ctx) })
			return nil
		})
	}

	if s.cfg.RestartInterval > 0 {
		g.Go(func() error {
			s.every(ctx, s.cfg.RestartInterval, func() {
				s.logger.Info("periodic restart interval reached", "interval", s.cfg.RestartInterval)
				s.restart.Trigger(ReasonPeriodicRestart)
			})
			return nil
		})
	}

	return g.Wait()
}

// every calls fn on each tick until ctx is done or a restart is pending.
func (s *Supervisor) every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.restart.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// CheckHealth evaluates liveness once. When no contact has been recorded
// for more than twice the health interval, it marks the state Degraded and
// triggers a restart. It reports whether the connection was found healthy.
func (s *Supervisor) CheckHealth() bool {
	if s.cfg.HealthCheckInterval <= 0 {
		return true
	}

	elapsed := s.health.sinceContact()
	limit := time.Duration(float64(s.cfg.HealthCheckInterval) * failureThreshold)
	if elapsed <= limit {
		s.logger.Debug("health check ok", "since_contact", elapsed)
		return true
	}

	if s.restart.Triggered() {
		return false
	}

	s.logger.Warn("no gateway contact within health window",
		"since_contact", elapsed,
		"limit", limit,
	)
	if s.health.markDegraded() {
		s.restart.Trigger(ReasonHealthCheckTimeout)
	}
	return false
}

// UpdateState runs the refresher once and records gateway contact when it
// succeeds. A failure is only logged: a gateway that stays silent is caught
// by the health check.
func (s *Supervisor) UpdateState(ctx context.Context) bool {
	if s.refresher == nil {
		return false
	}
	if err := s.refresher.Refresh(ctx); err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("state update failed", "error", err)
		}
		return false
	}
	s.health.RecordContact()
	return true
}

// ReportError handles a failed gateway operation. With RestartOnError it
// triggers a restart; otherwise the failure is only logged and a lasting
// outage shows up through the health check.
func (s *Supervisor) ReportError(err error) {
	if err == nil {
		return
	}
	if s.cfg.RestartOnError {
		s.logger.Error("gateway error, restarting", "error", err)
		s.restart.Trigger(ReasonConnectionError)
		return
	}
	s.logger.Error("gateway error", "error", err)
}
