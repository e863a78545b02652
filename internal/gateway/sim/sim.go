package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/vlx-bridge/internal/gateway"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/config"
)

// Scheduler queues work onto the goroutine that owns the driver.
// *loop.Loop satisfies it.
type Scheduler interface {
	Post(fn func(ctx context.Context)) error
}

// Logger is the logging interface used by the simulator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// NodeConfig is one simulated node.
type NodeConfig struct {
	Name     string
	Type     gateway.DeviceType
	Position int
}

// Config describes a simulated gateway.
type Config struct {
	// StepInterval is the time between position updates while moving.
	StepInterval time.Duration

	// StepPercent is how far a node travels per step.
	StepPercent int

	// FailConnects makes the first N Connect calls fail.
	FailConnects int

	Nodes []NodeConfig
}

// FromConfig converts the gateway.sim config section.
func FromConfig(cfg config.SimConfig) (Config, error) {
	out := Config{
		StepInterval: time.Duration(cfg.StepIntervalMS) * time.Millisecond,
		StepPercent:  cfg.StepPercent,
	}
	for i, n := range cfg.Nodes {
		typ, ok := gateway.ParseDeviceType(n.Type)
		if !ok && n.Type != "" {
			return Config{}, fmt.Errorf("gateway.sim.nodes[%d]: unknown type %q", i, n.Type)
		}
		out.Nodes = append(out.Nodes, NodeConfig{Name: n.Name, Type: typ, Position: n.Position})
	}
	return out, nil
}

// Driver is an in-process gateway whose nodes move over time.
//
// All methods must run on the scheduler's goroutine. Movement is driven by
// ticker goroutines that only post step tasks back to the scheduler.
type Driver struct {
	cfg    Config
	sched  Scheduler
	logger Logger

	connected    bool
	connectCalls int
	nodes        []*Node
}

// New creates a simulated driver.
func New(cfg Config, sched Scheduler, logger Logger) *Driver {
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = 250 * time.Millisecond
	}
	if cfg.StepPercent <= 0 {
		cfg.StepPercent = 5
	}
	return &Driver{cfg: cfg, sched: sched, logger: logger}
}

// Connect opens the simulated session.
func (d *Driver) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.connectCalls++
	if d.connectCalls <= d.cfg.FailConnects {
		return fmt.Errorf("%w: simulated failure %d of %d", gateway.ErrConnect, d.connectCalls, d.cfg.FailConnects)
	}
	d.connected = true
	d.logger.Debug("simulated gateway connected", "nodes", len(d.cfg.Nodes))
	return nil
}

// Discover returns the configured nodes. Repeated calls return the same
// node instances.
func (d *Driver) Discover(ctx context.Context) ([]gateway.Node, error) {
	if !d.connected {
		return nil, gateway.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.nodes == nil {
		for i, nc := range d.cfg.Nodes {
			d.nodes = append(d.nodes, &Node{
				driver:   d,
				id:       i,
				name:     nc.Name,
				typ:      nc.Type,
				position: nc.Position,
				target:   nc.Position,
			})
		}
	}

	out := make([]gateway.Node, len(d.nodes))
	for i, n := range d.nodes {
		out[i] = n
	}
	return out, nil
}

// Ping answers while the session is open.
func (d *Driver) Ping(ctx context.Context) error {
	if !d.connected {
		return gateway.ErrNotConnected
	}
	return ctx.Err()
}

// Disconnect halts every movement and closes the session.
func (d *Driver) Disconnect(context.Context) error {
	for _, n := range d.nodes {
		n.halt()
	}
	if d.connected {
		d.logger.Debug("simulated gateway disconnected")
	}
	d.connected = false
	return nil
}

// Node is a simulated actuator.
type Node struct {
	driver *Driver

	id       int
	name     string
	typ      gateway.DeviceType
	position int
	target   int

	// gen invalidates step tasks from a previous movement.
	gen    int
	cancel context.CancelFunc

	subs    []func(gateway.Node)
	failErr error
}

var _ gateway.Node = (*Node)(nil)

func (n *Node) ID() int                  { return n.id }
func (n *Node) Name() string             { return n.name }
func (n *Node) Type() gateway.DeviceType { return n.typ }
func (n *Node) Position() int            { return n.position }

// Target returns the position the node is moving toward, or its current
// position when idle.
func (n *Node) Target() int { return n.target }

// Moving reports whether a movement is in progress.
func (n *Node) Moving() bool { return n.cancel != nil }

// FailNext makes the next SetPosition or Stop return err.
func (n *Node) FailNext(err error) { n.failErr = err }

// Subscribe registers fn for position updates.
func (n *Node) Subscribe(fn func(gateway.Node)) {
	n.subs = append(n.subs, fn)
}

// SetPosition starts a move toward pct.
func (n *Node) SetPosition(ctx context.Context, pct int) error {
	if err := n.precheck(ctx); err != nil {
		return err
	}
	if pct < 0 || pct > 100 {
		return fmt.Errorf("sim: node %d: position %d out of range", n.id, pct)
	}

	n.halt()
	n.target = pct
	n.driver.logger.Debug("simulated move", "node", n.name, "from", n.position, "to", pct)

	if clamp(n.position) == pct {
		n.position = pct
		n.notify()
		return nil
	}
	n.start()
	return nil
}

// Halt stops the node where it is without a command, like an obstacle or a
// wall switch would, and raises the node callbacks.
func (n *Node) Halt() {
	n.halt()
	n.target = n.position
	n.notify()
}

// Stop halts the node where it is.
func (n *Node) Stop(ctx context.Context) error {
	if err := n.precheck(ctx); err != nil {
		return err
	}
	n.halt()
	n.target = n.position
	n.notify()
	return nil
}

func (n *Node) precheck(ctx context.Context) error {
	if !n.driver.connected {
		return gateway.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.failErr != nil {
		err := n.failErr
		n.failErr = nil
		return err
	}
	return nil
}

// start launches the ticker goroutine for the current movement.
func (n *Node) start() {
	n.gen++
	gen := n.gen
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	interval := n.driver.cfg.StepInterval
	sched := n.driver.sched
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sched.Post(func(context.Context) { n.step(gen) }); err != nil {
					return
				}
			}
		}
	}()
}

// halt cancels the current movement, if any.
func (n *Node) halt() {
	n.gen++
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

// step advances one increment toward the target. Runs on the scheduler.
func (n *Node) step(gen int) {
	if gen != n.gen {
		return
	}

	pos := clamp(n.position)
	delta := n.driver.cfg.StepPercent
	switch {
	case pos < n.target:
		pos = min(pos+delta, n.target)
	case pos > n.target:
		pos = max(pos-delta, n.target)
	}
	n.position = pos

	if pos == n.target {
		n.halt()
	}
	n.notify()
}

func (n *Node) notify() {
	for _, fn := range n.subs {
		fn(n)
	}
}

func clamp(pct int) int {
	return min(max(pct, 0), 100)
}
