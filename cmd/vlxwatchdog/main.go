// vlxwatchdog keeps a vlxbridge process alive on hosts without a service
// manager.
//
// Usage:
//
//	vlxwatchdog [flags] -- /usr/local/bin/vlxbridge /etc/vlxbridge/config.yaml
//
// Exit code 3 from the child is a restart request and is always honoured.
// Other non-zero exits are respawned with exponential backoff until
// --max-attempts consecutive failures. A clean exit stops the watchdog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/vlx-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vlx-bridge/internal/process"
)

var version = "dev"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// options are the parsed command line.
type options struct {
	restartDelay    time.Duration
	maxRestartDelay time.Duration
	maxAttempts     int
	gracefulTimeout time.Duration
	healthURL       string
	healthInterval  time.Duration
	logLevel        string
	logFormat       string

	binary string
	args   []string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, "vlxwatchdog:", err)
		return exitUsage
	}

	log := logging.New(config.LoggingConfig{
		Level:  opts.logLevel,
		Format: opts.logFormat,
		Output: "stderr",
	}, version).With("component", "watchdog")

	mgr := process.NewManager(managerConfig(opts))
	mgr.SetLogger(log)

	if err := mgr.Start(ctx); err != nil {
		log.Error("failed to start child", "binary", opts.binary, "error", err)
		return exitError
	}

	select {
	case <-ctx.Done():
		log.Info("signal received, stopping child")
		if err := mgr.Stop(); err != nil {
			log.Warn("error stopping child", "error", err)
		}
		return exitOK
	case <-mgr.Done():
	}

	stats := mgr.Stats()
	if stats.Status == process.StatusFailed {
		log.Error("giving up on child",
			"restarts", stats.RestartCount,
			"last_exit_code", stats.LastExitCode,
			"error", stats.LastError,
		)
		return exitError
	}
	log.Info("child exited cleanly", "restarts", stats.RestartCount)
	return exitOK
}

// parseFlags reads watchdog flags. Everything after the first positional
// argument (or after "--") is the child command line.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	defaults := process.DefaultConfig("", "", nil)

	fs := pflag.NewFlagSet("vlxwatchdog", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)

	var opts options
	fs.DurationVar(&opts.restartDelay, "restart-delay", defaults.RestartDelay, "base delay before respawning the child")
	fs.DurationVar(&opts.maxRestartDelay, "max-restart-delay", defaults.MaxRestartDelay, "upper bound on the respawn delay")
	fs.IntVar(&opts.maxAttempts, "max-attempts", defaults.MaxRestartAttempts, "consecutive failures before giving up (0 = never)")
	fs.DurationVar(&opts.gracefulTimeout, "graceful-timeout", defaults.GracefulTimeout, "time between SIGTERM and SIGKILL")
	fs.StringVar(&opts.healthURL, "health-url", "", "poll this URL (e.g. http://127.0.0.1:9180/healthz) and kill the child when it keeps failing")
	fs.DurationVar(&opts.healthInterval, "health-interval", defaults.HealthCheckInterval, "health poll interval")
	fs.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&opts.logFormat, "log-format", "text", "text or json")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return options{}, errors.New("missing child command")
	}
	opts.binary = rest[0]
	opts.args = rest[1:]

	if opts.maxAttempts < 0 {
		return options{}, errors.New("--max-attempts must not be negative")
	}
	if opts.restartDelay <= 0 || opts.maxRestartDelay < opts.restartDelay {
		return options{}, errors.New("--max-restart-delay must be >= --restart-delay > 0")
	}
	return opts, nil
}

func managerConfig(opts options) process.Config {
	cfg := process.DefaultConfig("vlxbridge", opts.binary, opts.args)
	cfg.Stdout = os.Stdout
	cfg.Stderr = os.Stderr
	cfg.RestartDelay = opts.restartDelay
	cfg.MaxRestartDelay = opts.maxRestartDelay
	cfg.MaxRestartAttempts = opts.maxAttempts
	cfg.GracefulTimeout = opts.gracefulTimeout
	if opts.healthURL != "" {
		cfg.HealthCheckFunc = httpHealthCheck(http.DefaultClient, opts.healthURL)
		cfg.HealthCheckInterval = opts.healthInterval
	}
	return cfg
}

// httpHealthCheck returns a check that passes on any 2xx response.
func httpHealthCheck(client *http.Client, url string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drained for connection reuse

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("health endpoint returned %s", resp.Status)
		}
		return nil
	}
}
