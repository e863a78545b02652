// vlxbridge exposes the covers of a KLF-200 style gateway to Home Assistant
// over MQTT.
//
// Usage:
//
//	vlxbridge [config.yaml]
//
// The config path defaults to $VLXBRIDGE_CONFIG, then
// /etc/vlxbridge/config.yaml.
//
// Exit codes: 0 after a shutdown signal, 1 on a fatal error, 3 when the
// health supervisor requests a restart. Respawning is left to systemd
// (Restart=always) or vlxwatchdog.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/vlx-bridge/migrations"

	"github.com/nerrad567/vlx-bridge/internal/bridges/vlx"
	"github.com/nerrad567/vlx-bridge/internal/gateway"
	"github.com/nerrad567/vlx-bridge/internal/gateway/sim"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/database"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/retry"
	"github.com/nerrad567/vlx-bridge/internal/loop"
	"github.com/nerrad567/vlx-bridge/internal/process"
	"github.com/nerrad567/vlx-bridge/internal/status"
	"github.com/nerrad567/vlx-bridge/internal/supervisor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "/etc/vlxbridge/config.yaml"

const (
	exitOK    = 0
	exitError = 1
)

// teardownTimeout bounds each blocking teardown step.
const teardownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

// run loads configuration, serves until a signal or a restart request, and
// returns the process exit code.
func run(ctx context.Context, args []string) int {
	return runWith(ctx, args, defaultDeps())
}

func runWith(ctx context.Context, args []string, d deps) int {
	log := logging.Default()

	path := configPath(args)
	cfg, err := config.Load(path)
	if err != nil {
		log.Error("loading config", "path", path, "error", err)
		return exitError
	}

	base := logging.New(cfg.Logging, version)
	defer base.Close() //nolint:errcheck // Nothing useful to do on exit

	log = base
	if runID := os.Getenv(process.RunIDEnv); runID != "" {
		log = base.With("run_id", runID)
	}
	log.Info("starting vlxbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", path,
	)

	restart, err := serve(ctx, cfg, log, d)
	switch {
	case err != nil:
		log.Error("vlxbridge stopped", "error", err)
		return exitError
	case restart:
		log.Info("vlxbridge exiting for restart", "exit_code", process.ExitRestart)
		return process.ExitRestart
	default:
		log.Info("vlxbridge stopped")
		return exitOK
	}
}

// configPath resolves the config file: first argument, then
// VLXBRIDGE_CONFIG, then the default.
func configPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if path := os.Getenv("VLXBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// busClient is the part of *mqtt.Client that serve uses.
type busClient interface {
	vlx.BusClient
	ClientID() string
	QoS() byte
	SetLogger(logger mqtt.Logger)
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	Close() error
}

// deps are the outside connections serve opens. Tests replace them.
type deps struct {
	newDriver  func(cfg config.GatewayConfig, lp *loop.Loop, log *logging.Logger) (gateway.Driver, error)
	connectBus func(ctx context.Context, cfg config.MQTTConfig, notify retry.Notify) (busClient, error)

	// ready is called once every component runs.
	ready func(restart *supervisor.RestartController)

	// trace sees the name of each teardown step as it starts.
	trace func(step string)
}

func defaultDeps() deps {
	return deps{
		newDriver: newDriver,
		connectBus: func(ctx context.Context, cfg config.MQTTConfig, notify retry.Notify) (busClient, error) {
			client, err := mqtt.ConnectWithRetry(ctx, cfg, notify)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	}
}

// serve wires every component and blocks until ctx ends or a restart is
// triggered. Teardown runs in reverse start order: supervisor, status
// server, entities, MQTT, driver, loop, then history and database.
func serve(ctx context.Context, cfg *config.Config, log *logging.Logger, d deps) (restart bool, err error) {
	td := &teardown{log: log, trace: d.trace}
	defer td.run()

	metrics := status.NewMetrics()
	health := supervisor.NewHealth(nil)

	// Optional stores.
	var (
		limits       vlx.LimitStore
		history      vlx.HistoryWriter
		influxClient *influxdb.Client
	)

	if cfg.Database.Enabled {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return false, err
		}
		td.add("database", db.Close)
		limits = vlx.NewLimitStore(db)
		log.Info("keep-open persistence enabled", "path", cfg.Database.Path)
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return false, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		td.add("influxdb", influxClient.Close)
		influxClient.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		history = vlx.NewPointHistory(influxClient)
		log.Info("InfluxDB history enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	restarter := supervisor.NewRestartController(health, log, func(reason string) {
		metrics.RestartTriggered(reason)
		if influxClient != nil {
			influxClient.WriteRestart(reason)
		}
	})

	// Gateway loop.
	lp := loop.New(loop.Options{
		MaxInFlight: int64(cfg.Gateway.MaxInFlight),
		CallTimeout: cfg.GetCallTimeout(),
		OnCallDone:  metrics.ObserveCall,
		Logger:      log,
	})
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		lp.Run(loopCtx) //nolint:errcheck // Only fails if started twice
	}()
	td.add("loop", func() error {
		stopLoop()
		<-loopDone
		return nil
	})

	driver, err := d.newDriver(cfg.Gateway, lp, log.Gateway())
	if err != nil {
		return false, err
	}

	nodes, err := connectGateway(ctx, cfg.Gateway, lp, driver, log)
	if err != nil {
		return false, err
	}
	health.RecordContact()
	td.add("gateway", func() error {
		dctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		return lp.Invoke(dctx, driver.Disconnect)
	})

	bindings, err := vlx.BindNodes(nodes, cfg.HomeAssistant.InvertAwning, log)
	if err != nil {
		return false, err
	}
	log.Info("gateway nodes discovered", "count", len(bindings))

	// MQTT.
	bus, err := d.connectBus(ctx, cfg.MQTT, func(attempt int, err error, next time.Duration) {
		log.Warn("MQTT connect failed, retrying", "attempt", attempt, "error", err, "next", next)
	})
	if err != nil {
		return false, err
	}
	td.add("mqtt", bus.Close)
	bus.SetLogger(log)
	bus.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", bus.ClientID(),
	)

	sup, err := supervisor.New(supervisor.Config{
		HealthCheckInterval: cfg.GetHealthCheckInterval(),
		StateUpdateInterval: cfg.GetStateUpdateInterval(),
		RestartInterval:     cfg.GetRestartInterval(),
		RestartOnError:      cfg.Restart.RestartOnError,
	}, health, restarter, log)
	if err != nil {
		return false, err
	}

	// Entities.
	bridge, err := vlx.NewBridge(vlx.BridgeOptions{
		Settings: vlx.Settings{
			DiscoveryPrefix: cfg.HomeAssistant.DiscoveryPrefix,
			Prefix:          cfg.HomeAssistant.Prefix,
			KeepOpenLimit:   cfg.HomeAssistant.KeepOpenLimit,
			QoS:             bus.QoS(),
		},
		Bus:     bus,
		Gateway: driver,
		Loop:    lp,
		Health:  health,
		Errors:  sup,
		Limits:  limits,
		History: history,
		Metrics: metrics,
		Logger:  log.With("component", "vlx"),
	})
	if err != nil {
		return false, err
	}
	td.add("entities", func() error {
		bridge.Close()
		return nil
	})
	if err := bridge.Start(ctx, bindings); err != nil {
		return false, fmt.Errorf("starting entities: %w", err)
	}
	bus.SetOnConnect(func() {
		log.Info("MQTT reconnected, republishing entities")
		bridge.Republish()
	})
	sup.SetRefresher(bridge)

	if cfg.Status.Enabled {
		srv, err := status.New(status.Deps{
			Config:  cfg.Status,
			Health:  health,
			Metrics: metrics,
			Logger:  log.With("component", "status"),
		})
		if err != nil {
			return false, err
		}
		if err := srv.Start(ctx); err != nil {
			return false, err
		}
		td.add("status", srv.Close)
	}

	// Supervision.
	supCtx, stopSup := context.WithCancel(context.Background())
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(supCtx) //nolint:errcheck // Run returns nil on cancel
	}()
	td.add("supervisor", func() error {
		stopSup()
		<-supDone
		return nil
	})

	log.Info("initialisation complete",
		"entities", len(bindings),
		"state_update_interval", cfg.GetStateUpdateInterval(),
		"health_check_interval", cfg.GetHealthCheckInterval(),
		"restart_interval", cfg.GetRestartInterval(),
	)
	if d.ready != nil {
		d.ready(restarter)
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
		return false, nil
	case <-restarter.Done():
		log.Warn("restart requested, cleaning up", "reason", restarter.Reason())
		return true, nil
	}
}

// openDatabase opens and migrates the keep-open store.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.FromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newDriver builds the configured gateway driver.
func newDriver(cfg config.GatewayConfig, lp *loop.Loop, log *logging.Logger) (gateway.Driver, error) {
	switch cfg.Driver {
	case "sim":
		simCfg, err := sim.FromConfig(cfg.Sim)
		if err != nil {
			return nil, fmt.Errorf("gateway.sim: %w", err)
		}
		return sim.New(simCfg, lp, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", gateway.ErrUnknownDriver, cfg.Driver)
	}
}

// connectGateway connects on the loop with retries, then discovers nodes.
func connectGateway(ctx context.Context, cfg config.GatewayConfig, lp *loop.Loop, driver gateway.Driver, log *logging.Logger) ([]gateway.Node, error) {
	_, err := retry.Do(ctx, retry.FromConfig(cfg.Retry),
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, lp.Invoke(ctx, driver.Connect)
		},
		func(attempt int, err error, next time.Duration) {
			log.Warn("gateway connect failed, retrying", "attempt", attempt, "error", err, "next", next)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to gateway: %w", err)
	}
	log.Info("gateway connected", "driver", cfg.Driver, "host", cfg.Host)

	nodes, err := loop.Call(ctx, lp, driver.Discover)
	if err != nil {
		return nil, fmt.Errorf("discovering nodes: %w", err)
	}
	return nodes, nil
}
