package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// ExitRestart is the exit code a child uses to ask for a respawn. It never
// counts as a failure.
const ExitRestart = 3

// RunIDEnv carries the run id into the child's environment.
const RunIDEnv = "VLXBRIDGE_RUN_ID"

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

const (
	// outputBufferSize is the buffer size for capturing subprocess stdout/stderr.
	outputBufferSize = 4096

	// maxConsecutiveHealthFailures kills the child after this many failed checks.
	maxConsecutiveHealthFailures = 3

	healthCheckTimeout = 5 * time.Second
	killWaitTimeout    = 5 * time.Second
)

// Config holds configuration for a managed subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// Stdout and Stderr receive the child's output. When nil the output is
	// logged at debug level instead.
	Stdout io.Writer
	Stderr io.Writer

	// RestartOnFailure enables respawning after a crash or a non-zero exit.
	// Exit code ExitRestart is always respawned.
	RestartOnFailure bool

	// RestartDelay is the base delay before a respawn. Consecutive failures
	// double it up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// StableThreshold is how long a run must last before the failure count
	// resets.
	StableThreshold time.Duration

	// MaxRestartAttempts limits consecutive failed runs. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// HealthCheckFunc is polled while the child runs. Repeated failures
	// kill it so that it is respawned.
	HealthCheckFunc     func(ctx context.Context) error
	HealthCheckInterval time.Duration

	// OnStart is called after each successful spawn.
	OnStart func(run Run)

	// OnExit is called whenever a run ends.
	OnExit func(run Run, code int, err error)
}

// Run identifies one spawn of the child.
type Run struct {
	ID      string
	PID     int
	Started time.Time
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name, binary string, args []string) Config {
	return Config{
		Name:                name,
		Binary:              binary,
		Args:                args,
		RestartOnFailure:    true,
		RestartDelay:        5 * time.Second,
		MaxRestartDelay:     5 * time.Minute,
		StableThreshold:     2 * time.Minute,
		MaxRestartAttempts:  10,
		GracefulTimeout:     10 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager runs a child process and respawns it according to its exit code.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	run           Run
	status        Status
	restartCount  int
	failures      int
	lastExitCode  int
	lastError     error
	stopRequested bool

	stop chan struct{}
	done chan struct{}
}

// NewManager creates a new process manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.MaxRestartDelay == 0 {
		cfg.MaxRestartDelay = 5 * time.Minute
	}
	if cfg.StableThreshold == 0 {
		cfg.StableThreshold = 2 * time.Minute
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start spawns the child and begins supervising it. It returns an error if
// the first spawn fails; later spawn failures are retried by the monitor.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("process %s is already running", m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	if err := m.startProcess(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		m.mu.Unlock()
		close(done)
		return err
	}

	go m.monitor(ctx, stop, done)

	return nil
}

// Done is closed once the manager stops supervising, either because the
// child exited cleanly, Stop was called, ctx ended, or restarts ran out.
// It returns nil before the first Start.
func (m *Manager) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

// startProcess spawns one run of the child.
func (m *Manager) startProcess(ctx context.Context) error {
	runID := uuid.NewString()
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
		"run_id", runID,
	)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // Binary comes from the operator's command line

	// Own process group so signals reach every child of the bridge.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd, syscall.SIGTERM)
	}
	cmd.WaitDelay = m.config.GracefulTimeout

	cmd.Env = append(os.Environ(), m.config.Env...)
	cmd.Env = append(cmd.Env, RunIDEnv+"="+runID)

	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	var stdout, stderr io.Reader
	if m.config.Stdout != nil {
		cmd.Stdout = m.config.Stdout
	} else {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("creating stdout pipe: %w", err)
		}
		stdout = pipe
	}
	if m.config.Stderr != nil {
		cmd.Stderr = m.config.Stderr
	} else {
		pipe, err := cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("creating stderr pipe: %w", err)
		}
		stderr = pipe
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	run := Run{ID: runID, PID: cmd.Process.Pid, Started: time.Now()}

	m.mu.Lock()
	m.cmd = cmd
	m.run = run
	m.status = StatusRunning
	m.mu.Unlock()

	if stdout != nil {
		go m.captureOutput("stdout", stdout)
	}
	if stderr != nil {
		go m.captureOutput("stderr", stderr)
	}

	m.logger.Info("process started",
		"name", m.config.Name,
		"pid", run.PID,
		"run_id", runID,
	)

	if m.config.OnStart != nil {
		m.config.OnStart(run)
	}

	return nil
}

// captureOutput reads from the given reader and logs each chunk.
func (m *Manager) captureOutput(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.logger.Debug("process output",
				"name", m.config.Name,
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}

// waitForExitOrHealthFailure waits for the child to exit. When a health
// check is configured and fails repeatedly, the child is killed.
func (m *Manager) waitForExitOrHealthFailure(cmd *exec.Cmd) error {
	exitCh := make(chan error, 1)
	go func() {
		exitCh <- cmd.Wait()
	}()

	if m.config.HealthCheckFunc == nil {
		return <-exitCh
	}

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	for {
		select {
		case err := <-exitCh:
			return err

		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
			err := m.config.HealthCheckFunc(checkCtx)
			cancel()

			if err == nil {
				if consecutiveFailures > 0 {
					m.logger.Info("health check recovered",
						"name", m.config.Name,
						"previous_failures", consecutiveFailures,
					)
				}
				consecutiveFailures = 0
				continue
			}

			consecutiveFailures++
			m.logger.Warn("health check failed",
				"name", m.config.Name,
				"error", err,
				"consecutive_failures", consecutiveFailures,
			)
			if consecutiveFailures < maxConsecutiveHealthFailures {
				continue
			}

			m.logger.Error("health check failed repeatedly, killing process",
				"name", m.config.Name,
				"failures", consecutiveFailures,
			)
			signalGroup(cmd, syscall.SIGKILL) //nolint:errcheck // Exit is observed below

			select {
			case exitErr := <-exitCh:
				return fmt.Errorf("killed after %d failed health checks: %w", consecutiveFailures, exitErr)
			case <-time.After(killWaitTimeout):
				return fmt.Errorf("process did not exit after kill (health check failure)")
			}
		}
	}
}

// monitor supervises runs until the child should no longer be respawned.
func (m *Manager) monitor(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer close(done)

	for {
		m.mu.RLock()
		cmd := m.cmd
		run := m.run
		m.mu.RUnlock()

		err := m.waitForExitOrHealthFailure(cmd)
		code := ExitCode(err)

		m.mu.Lock()
		m.lastExitCode = code
		stopRequested := m.stopRequested || ctx.Err() != nil
		m.mu.Unlock()

		if m.config.OnExit != nil {
			m.config.OnExit(run, code, err)
		}

		if stopRequested {
			m.logger.Info("process stopped as requested", "name", m.config.Name, "run_id", run.ID)
			m.setStatus(StatusStopped, nil)
			return
		}

		attempt, ok := m.recordExit(run, code, err)
		if !ok {
			return
		}

		if !m.respawn(ctx, stop, attempt) {
			return
		}
	}
}

// recordExit classifies a finished run. It returns the number of
// consecutive failures and whether the child should be respawned.
func (m *Manager) recordExit(run Run, code int, err error) (int, bool) {
	switch {
	case err == nil:
		m.logger.Info("process exited cleanly, not restarting", "name", m.config.Name, "run_id", run.ID)
		m.setStatus(StatusStopped, nil)
		return 0, false

	case code == ExitRestart:
		m.logger.Info("process requested restart", "name", m.config.Name, "run_id", run.ID)
		m.mu.Lock()
		m.failures = 0
		m.status = StatusStarting
		m.mu.Unlock()
		return 0, true
	}

	m.logger.Warn("process exited unexpectedly",
		"name", m.config.Name,
		"run_id", run.ID,
		"exit_code", code,
		"error", err,
	)

	m.mu.Lock()
	if time.Since(run.Started) >= m.config.StableThreshold {
		m.failures = 0
	}
	m.failures++
	attempt := m.failures
	m.mu.Unlock()
	m.setStatus(StatusFailed, err)

	if !m.config.RestartOnFailure {
		m.logger.Info("restart disabled, not restarting", "name", m.config.Name)
		return attempt, false
	}
	if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
		m.logger.Error("max restart attempts reached",
			"name", m.config.Name,
			"attempts", attempt-1,
		)
		return attempt, false
	}
	return attempt, true
}

// respawn waits out the backoff delay and starts the next run. Spawn
// errors are retried with growing delays until restarts run out.
func (m *Manager) respawn(ctx context.Context, stop <-chan struct{}, attempt int) bool {
	for {
		delay := m.calculateBackoffDelay(attempt)
		m.logger.Info("restarting process",
			"name", m.config.Name,
			"attempt", attempt,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			m.logger.Info("context cancelled, not restarting", "name", m.config.Name)
			m.setStatus(StatusStopped, nil)
			return false
		case <-stop:
			m.setStatus(StatusStopped, nil)
			return false
		case <-time.After(delay):
		}

		m.mu.Lock()
		if m.stopRequested {
			m.status = StatusStopped
			m.mu.Unlock()
			return false
		}
		m.restartCount++
		m.mu.Unlock()

		err := m.startProcess(ctx)
		if err == nil {
			return true
		}

		m.logger.Error("failed to restart process", "name", m.config.Name, "error", err)
		m.mu.Lock()
		m.failures++
		attempt = m.failures
		m.mu.Unlock()
		m.setStatus(StatusFailed, err)

		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.logger.Error("max restart attempts reached", "name", m.config.Name, "attempts", attempt-1)
			return false
		}
	}
}

// calculateBackoffDelay returns the delay before respawn attempt n.
// A requested restart (attempt 0) and the first failure use RestartDelay.
func (m *Manager) calculateBackoffDelay(attempt int) time.Duration {
	delay := m.config.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.config.MaxRestartDelay {
			return m.config.MaxRestartDelay
		}
	}
	return delay
}

func (m *Manager) setStatus(s Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
	if err != nil {
		m.lastError = err
	}
}

// Stop sends SIGTERM to the child's process group and waits for it to
// exit, escalating to SIGKILL after GracefulTimeout. The child is not
// respawned.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.stopRequested && m.stop != nil {
		close(m.stop)
	}
	m.stopRequested = true
	cmd := m.cmd
	done := m.done
	running := m.status == StatusRunning || m.status == StatusStarting
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	if !running || cmd == nil || cmd.Process == nil {
		<-done
		return nil
	}

	m.logger.Info("stopping process", "name", m.config.Name, "pid", cmd.Process.Pid)

	if err := signalGroup(cmd, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("failed to send SIGTERM to process group", "name", m.config.Name, "error", err)
	}

	select {
	case <-done:
		m.logger.Info("process stopped gracefully", "name", m.config.Name)
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	if err := signalGroup(cmd, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
	}

	<-done
	m.logger.Info("process killed", "name", m.config.Name)

	return nil
}

// signalGroup signals the child's whole process group.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}

// ExitCode extracts the exit status from a Wait error. It returns 0 for
// nil and -1 when the process did not exit normally.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the last error that caused the process to exit.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// LastExitCode returns the exit code of the most recent run.
func (m *Manager) LastExitCode() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastExitCode
}

// RestartCount returns the number of times the process has been respawned.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restartCount
}

// Uptime returns how long the current run has lasted, or 0 if not running.
func (m *Manager) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusRunning {
		return 0
	}
	return time.Since(m.run.Started)
}

// PID returns the process ID, or 0 if never started.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.run.PID
}

// Stats returns statistics about the managed process.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	RunID        string        `json:"run_id,omitempty"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastExitCode int           `json:"last_exit_code"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RunID:        m.run.ID,
		PID:          m.run.PID,
		RestartCount: m.restartCount,
		LastExitCode: m.lastExitCode,
	}

	if m.status == StatusRunning {
		stats.Uptime = time.Since(m.run.Started)
	}

	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}

	return stats
}
