package vlx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/vlx-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/vlx-bridge/internal/loop"
)

// Command result labels for metrics.
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultFailed   = "failed"
	resultDropped  = "dropped"

	kindKeepOpen = "keep_open"
)

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BusClient is the MQTT client. *mqtt.Client satisfies it.
type BusClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Scheduler runs work on the loop goroutine that owns the gateway driver.
// *loop.Loop satisfies it.
type Scheduler interface {
	Invoke(ctx context.Context, op func(ctx context.Context) error) error
	Post(fn func(ctx context.Context)) error
}

// Pinger checks that the gateway session is alive. gateway.Driver
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ContactRecorder is told about every successful gateway interaction.
// *supervisor.Health satisfies it.
type ContactRecorder interface {
	RecordContact()
}

// ErrorReporter receives failed gateway operations.
// *supervisor.Supervisor satisfies it.
type ErrorReporter interface {
	ReportError(err error)
}

// LimitStore persists keep-open flags across restarts.
type LimitStore interface {
	LoadLimits(ctx context.Context) (map[string]bool, error)
	SaveLimit(ctx context.Context, entityID string, limited bool) error
}

// HistoryWriter records published cover states.
type HistoryWriter interface {
	WriteCoverState(entityID string, class DeviceClass, state CoverState)
}

// Metrics counts bridge activity.
type Metrics interface {
	CommandHandled(kind, result string)
	StatePublished()
}

// Settings are the entity naming and limiter options.
type Settings struct {
	DiscoveryPrefix string
	Prefix          string
	KeepOpenLimit   int
	QoS             byte
}

// BridgeOptions holds the dependencies of a Bridge.
type BridgeOptions struct {
	Settings Settings

	// Bus, Gateway, Loop, Health and Errors are required.
	Bus     BusClient
	Gateway Pinger
	Loop    Scheduler
	Health  ContactRecorder
	Errors  ErrorReporter

	// Limits, History and Metrics are optional.
	Limits  LimitStore
	History HistoryWriter
	Metrics Metrics

	Logger Logger
}

// Bridge exposes gateway nodes as Home Assistant covers with a keep-open
// switch each.
//
// Command handlers run on MQTT callback goroutines and reach the gateway
// only through the loop. Node events arrive on the loop.
type Bridge struct {
	settings Settings
	bus      BusClient
	gateway  Pinger
	loop     Scheduler
	health   ContactRecorder
	errors   ErrorReporter
	limits   LimitStore
	history  HistoryWriter
	metrics  Metrics
	logger   Logger

	mu        sync.RWMutex
	covers    []*Cover
	keepOpens []*KeepOpen

	// ctx is cancelled by Close and bounds every command.
	ctx       context.Context
	ctxCancel context.CancelFunc
	closeOnce sync.Once
}

// NewBridge creates a bridge. Call Start to register entities.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Bus == nil {
		return nil, errors.New("vlx: bus client is required")
	}
	if opts.Gateway == nil {
		return nil, errors.New("vlx: gateway is required")
	}
	if opts.Loop == nil {
		return nil, errors.New("vlx: loop is required")
	}
	if opts.Health == nil || opts.Errors == nil {
		return nil, errors.New("vlx: health recorder and error reporter are required")
	}
	if opts.Logger == nil {
		return nil, errors.New("vlx: logger is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		settings:  opts.Settings,
		bus:       opts.Bus,
		gateway:   opts.Gateway,
		loop:      opts.Loop,
		health:    opts.Health,
		errors:    opts.Errors,
		limits:    opts.Limits,
		history:   opts.History,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		ctx:       ctx,
		ctxCancel: cancel,
	}, nil
}

// Start registers one cover and one keep-open switch per binding.
//
// It restores persisted keep-open flags, publishes discovery, attaches
// node callbacks and publishes initial state on the loop, marks every
// entity online, and finally subscribes to the command topics.
func (b *Bridge) Start(ctx context.Context, bindings []NodeBinding) error {
	restored := b.loadLimits(ctx)

	covers := make([]*Cover, 0, len(bindings))
	keepOpens := make([]*KeepOpen, 0, len(bindings))
	for _, binding := range bindings {
		mapper := NewMapper(binding.Invert, b.settings.KeepOpenLimit)
		mapper.SetLimited(restored[binding.ID])
		covers = append(covers, newCover(b, binding, mapper))
		keepOpens = append(keepOpens, newKeepOpen(b, binding, mapper))
	}

	b.mu.Lock()
	b.covers = covers
	b.keepOpens = keepOpens
	b.mu.Unlock()

	for i := range covers {
		if err := covers[i].announce(false); err != nil {
			return err
		}
		if err := keepOpens[i].announce(false); err != nil {
			return err
		}
	}

	err := b.loop.Invoke(ctx, func(context.Context) error {
		for i, c := range covers {
			c.binding.Node.Subscribe(c.onNodeUpdate)
			c.refresh(false)
			keepOpens[i].refresh(false)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("attach node callbacks: %w", err)
	}

	for i := range covers {
		covers[i].markOnline(false)
		keepOpens[i].markOnline(false)
	}

	for i := range covers {
		if err := b.bus.Subscribe(covers[i].topics.Command, b.settings.QoS, covers[i].handleCommand); err != nil {
			return fmt.Errorf("subscribe %s: %w", covers[i].topics.Command, err)
		}
		if err := b.bus.Subscribe(keepOpens[i].topics.Command, b.settings.QoS, keepOpens[i].handleCommand); err != nil {
			return fmt.Errorf("subscribe %s: %w", keepOpens[i].topics.Command, err)
		}
	}

	b.logger.Info("bridge started", "entities", len(covers))
	return nil
}

// loadLimits returns the persisted keep-open flags. A failing store is
// logged and treated as empty.
func (b *Bridge) loadLimits(ctx context.Context) map[string]bool {
	if b.limits == nil {
		return map[string]bool{}
	}
	limits, err := b.limits.LoadLimits(ctx)
	if err != nil {
		b.logger.Warn("failed to load keep-open flags", "error", err)
		return map[string]bool{}
	}
	return limits
}

// Republish force-publishes discovery, availability and state of every
// entity. It is meant for the MQTT on-connect callback, so it queues the
// work on the loop instead of blocking the caller.
func (b *Bridge) Republish() {
	b.mu.RLock()
	covers, keepOpens := b.covers, b.keepOpens
	b.mu.RUnlock()

	if len(covers) == 0 {
		return
	}

	err := b.loop.Post(func(context.Context) {
		for i, c := range covers {
			_ = c.announce(true)
			_ = keepOpens[i].announce(true)
			c.refresh(true)
			keepOpens[i].refresh(true)
			c.markOnline(true)
			keepOpens[i].markOnline(true)
		}
		b.logger.Info("republished all entities", "entities", len(covers))
	})
	if err != nil {
		b.logger.Warn("republish not scheduled", "error", err)
	}
}

// Refresh pings the gateway and publishes every cover whose position or
// movement changed since it was last published. It is the periodic state
// update task; a nil return means the gateway answered.
func (b *Bridge) Refresh(ctx context.Context) error {
	b.mu.RLock()
	covers := b.covers
	b.mu.RUnlock()

	return b.loop.Invoke(ctx, func(ctx context.Context) error {
		if err := b.gateway.Ping(ctx); err != nil {
			return err
		}
		for _, c := range covers {
			c.refresh(false)
		}
		return nil
	})
}

// Close unsubscribes every command topic, publishes offline availability
// and stops all further publishing. Errors are logged; Close always
// completes. Safe to call more than once.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.ctxCancel()

		b.mu.RLock()
		covers, keepOpens := b.covers, b.keepOpens
		b.mu.RUnlock()

		for i := range covers {
			covers[i].close()
			keepOpens[i].close()
		}
		b.logger.Info("bridge closed", "entities", len(covers))
	})
}

// finishCommand classifies the outcome of a command invoked on the loop.
func (b *Bridge) finishCommand(entityID, kind string, err error) {
	switch {
	case err == nil:
		b.countCommand(kind, resultOK)
	case errors.Is(err, loop.ErrStopped) || b.ctx.Err() != nil:
		b.logger.Debug("command dropped during shutdown", "entity", entityID, "kind", kind, "error", err)
		b.countCommand(kind, resultDropped)
	default:
		var opErr *GatewayOperationError
		if !errors.As(err, &opErr) {
			opErr = &GatewayOperationError{EntityID: entityID, Op: kind, Err: err}
		}
		b.logger.Error("gateway operation failed", "entity", entityID, "kind", kind, "error", opErr)
		b.countCommand(kind, resultFailed)
		b.errors.ReportError(opErr)
	}
}

// rejectCommand logs an invalid payload. It never reaches the gateway.
func (b *Bridge) rejectCommand(entityID, kind, topic string, err error) {
	b.logger.Warn("rejected command", "entity", entityID, "topic", topic, "error", err)
	b.countCommand(kind, resultRejected)
}

func (b *Bridge) countCommand(kind, result string) {
	if b.metrics != nil {
		b.metrics.CommandHandled(kind, result)
	}
}
