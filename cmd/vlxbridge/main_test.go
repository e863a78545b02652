package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/vlx-bridge/internal/gateway"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/retry"
	"github.com/nerrad567/vlx-bridge/internal/loop"
	"github.com/nerrad567/vlx-bridge/internal/process"
	"github.com/nerrad567/vlx-bridge/internal/supervisor"
)

func TestConfigPath(t *testing.T) {
	t.Run("argument wins", func(t *testing.T) {
		t.Setenv("VLXBRIDGE_CONFIG", "/from/env.yaml")
		if got := configPath([]string{"/from/arg.yaml"}); got != "/from/arg.yaml" {
			t.Errorf("configPath() = %q, want /from/arg.yaml", got)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("VLXBRIDGE_CONFIG", "/from/env.yaml")
		if got := configPath(nil); got != "/from/env.yaml" {
			t.Errorf("configPath() = %q, want /from/env.yaml", got)
		}
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv("VLXBRIDGE_CONFIG", "")
		if got := configPath([]string{""}); got != defaultConfigPath {
			t.Errorf("configPath() = %q, want %q", got, defaultConfigPath)
		}
	})
}

func TestRun_InvalidConfigPath(t *testing.T) {
	code := run(context.Background(), []string{"/nonexistent/path/config.yaml"})
	if code != exitError {
		t.Errorf("run() = %d, want %d", code, exitError)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "gateway:\n  driver: klf\n")

	code := run(context.Background(), []string{path})
	if code != exitError {
		t.Errorf("run() = %d, want %d", code, exitError)
	}
}

func TestRun_BrokerUnreachable(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: 127.0.0.1
    port: 1
  reconnect:
    max_attempts: 1
gateway:
  driver: sim
  retry:
    max_attempts: 1
  sim:
    step_interval_ms: 10
    nodes:
      - name: Kitchen
        type: window
        position: 100
logging:
  level: error
`)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	code := run(ctx, []string{path})
	if code != exitError {
		t.Errorf("run() = %d, want %d", code, exitError)
	}
}

func TestNewDriver(t *testing.T) {
	lp := loop.New(loop.Options{MaxInFlight: 1})
	log := logging.Default()

	t.Run("sim", func(t *testing.T) {
		cfg := config.GatewayConfig{
			Driver: "sim",
			Sim: config.SimConfig{
				Nodes: []config.SimNodeConfig{{Name: "Kitchen", Type: "window"}},
			},
		}
		driver, err := newDriver(cfg, lp, log)
		if err != nil {
			t.Fatalf("newDriver() error = %v", err)
		}
		if driver == nil {
			t.Fatal("newDriver() returned nil driver")
		}
	})

	t.Run("bad sim node type", func(t *testing.T) {
		cfg := config.GatewayConfig{
			Driver: "sim",
			Sim: config.SimConfig{
				Nodes: []config.SimNodeConfig{{Name: "Kitchen", Type: "submarine"}},
			},
		}
		if _, err := newDriver(cfg, lp, log); err == nil {
			t.Error("newDriver() error = nil, want unknown type error")
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := newDriver(config.GatewayConfig{Driver: "klf"}, lp, log)
		if !errors.Is(err, gateway.ErrUnknownDriver) {
			t.Errorf("newDriver() error = %v, want ErrUnknownDriver", err)
		}
	})
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// eventLog collects teardown steps and side effects in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// index returns the position of the first occurrence of event, or -1.
func (l *eventLog) index(event string) int {
	return slices.Index(l.all(), event)
}

// fakeBus is an in-memory busClient.
type fakeBus struct {
	log *eventLog

	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
}

func (b *fakeBus) Publish(string, []byte, byte, bool) error { return nil }

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string]mqtt.MessageHandler)
	}
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	delete(b.handlers, topic)
	b.mu.Unlock()
	b.log.add("bus:unsubscribe")
	return nil
}

func (b *fakeBus) IsConnected() bool               { return true }
func (b *fakeBus) ClientID() string                { return "vlxbridge-test" }
func (b *fakeBus) QoS() byte                       { return 1 }
func (b *fakeBus) SetLogger(mqtt.Logger)           {}
func (b *fakeBus) SetOnConnect(func())             {}
func (b *fakeBus) SetOnDisconnect(func(err error)) {}

func (b *fakeBus) Close() error {
	b.log.add("bus:close")
	return nil
}

// recordingDriver wraps a real driver and records Disconnect.
type recordingDriver struct {
	gateway.Driver
	log *eventLog
}

func (d *recordingDriver) Disconnect(ctx context.Context) error {
	d.log.add("driver:disconnect")
	return d.Driver.Disconnect(ctx)
}

func testDeps(events *eventLog, ready func(*supervisor.RestartController)) deps {
	return deps{
		newDriver: func(cfg config.GatewayConfig, lp *loop.Loop, log *logging.Logger) (gateway.Driver, error) {
			driver, err := newDriver(cfg, lp, log)
			if err != nil {
				return nil, err
			}
			return &recordingDriver{Driver: driver, log: events}, nil
		},
		connectBus: func(context.Context, config.MQTTConfig, retry.Notify) (busClient, error) {
			return &fakeBus{log: events}, nil
		},
		ready: ready,
		trace: func(step string) { events.add("step:" + step) },
	}
}

func serveConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, `
gateway:
  driver: sim
  sim:
    step_interval_ms: 10
    nodes:
      - name: Kitchen
        type: window
        position: 100
database:
  enabled: true
  path: `+filepath.Join(t.TempDir(), "vlx.db")+`
logging:
  level: error
`)
}

func TestRun_RestartRequestExitsWithRestartCode(t *testing.T) {
	events := &eventLog{}
	d := testDeps(events, func(r *supervisor.RestartController) {
		r.Trigger(supervisor.ReasonPeriodicRestart)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if code := runWith(ctx, []string{serveConfig(t)}, d); code != process.ExitRestart {
		t.Fatalf("runWith() = %d, want %d", code, process.ExitRestart)
	}

	var steps []string
	for _, e := range events.all() {
		if len(e) > 5 && e[:5] == "step:" {
			steps = append(steps, e[5:])
		}
	}
	wantSteps := []string{"supervisor", "entities", "mqtt", "gateway", "loop", "database"}
	if !slices.Equal(steps, wantSteps) {
		t.Errorf("teardown steps = %v, want %v", steps, wantSteps)
	}

	// Tasks stop first, then entities leave the bus, then the bus closes,
	// then the driver disconnects.
	order := []string{"step:supervisor", "bus:unsubscribe", "bus:close", "driver:disconnect"}
	for i := 1; i < len(order); i++ {
		before, after := events.index(order[i-1]), events.index(order[i])
		if before < 0 || after < 0 || before > after {
			t.Errorf("%s (at %d) should precede %s (at %d); events = %v",
				order[i-1], before, order[i], after, events.all())
		}
	}
}

func TestRun_SignalExitsCleanly(t *testing.T) {
	events := &eventLog{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d := testDeps(events, func(*supervisor.RestartController) { cancel() })
	if code := runWith(ctx, []string{serveConfig(t)}, d); code != exitOK {
		t.Fatalf("runWith() = %d, want %d", code, exitOK)
	}
	if events.index("driver:disconnect") < 0 {
		t.Error("gateway not disconnected on shutdown")
	}
}

func TestTeardown_RunsInReverseAndContinuesOnError(t *testing.T) {
	var ran []string
	td := &teardown{log: logging.Default()}
	td.add("first", func() error { ran = append(ran, "first"); return nil })
	td.add("second", func() error { ran = append(ran, "second"); return errors.New("boom") })
	td.add("third", func() error { ran = append(ran, "third"); return nil })

	td.run()
	td.run()

	if want := []string{"third", "second", "first"}; !slices.Equal(ran, want) {
		t.Errorf("steps ran = %v, want %v", ran, want)
	}
}
