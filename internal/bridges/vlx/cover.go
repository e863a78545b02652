package vlx

import (
	"context"
	"strconv"

	"github.com/nerrad567/vlx-bridge/internal/gateway"
)

const kindCover = "cover"

// Cover is the Home Assistant cover entity of one node.
type Cover struct {
	b       *Bridge
	binding NodeBinding
	topics  Topics
	mapper  *Mapper
	pub     *publisher
}

func newCover(b *Bridge, binding NodeBinding, mapper *Mapper) *Cover {
	return &Cover{
		b:       b,
		binding: binding,
		topics:  CoverTopics(b.settings.DiscoveryPrefix, b.settings.Prefix, binding.ID),
		mapper:  mapper,
		pub:     newPublisher(b.bus, b.settings.QoS, b.logger),
	}
}

// ID returns the entity id.
func (c *Cover) ID() string { return c.binding.ID }

// Topics returns the entity's MQTT topics.
func (c *Cover) Topics() Topics { return c.topics }

func (c *Cover) announce(force bool) error {
	payload, err := coverDiscoveryPayload(c.binding, c.b.settings.Prefix, c.topics)
	if err != nil {
		return err
	}
	c.pub.publish(c.topics.Discovery, string(payload), force)
	return nil
}

func (c *Cover) markOnline(force bool) {
	c.pub.publish(c.topics.Availability, payloadOnline, force)
}

// handleCommand runs on an MQTT callback goroutine.
func (c *Cover) handleCommand(topic string, payload []byte) error {
	cmd, err := ParseCommand(payload)
	if err != nil {
		c.b.rejectCommand(c.binding.ID, kindCover, topic, err)
		return nil
	}

	c.b.logger.Debug("cover command", "entity", c.binding.ID, "kind", cmd.Kind.String(), "position", cmd.Position)
	err = c.b.loop.Invoke(c.b.ctx, func(ctx context.Context) error {
		return c.apply(ctx, cmd)
	})
	c.b.finishCommand(c.binding.ID, cmd.Kind.String(), err)
	return nil
}

// apply performs cmd on the driver. Runs on the loop.
func (c *Cover) apply(ctx context.Context, cmd Command) error {
	node := c.binding.Node

	switch cmd.Kind {
	case CommandStop:
		// Stop may raise node callbacks before it returns; they must not
		// see the old target.
		target, had := c.mapper.Outstanding()
		c.mapper.Clear()
		if err := node.Stop(ctx); err != nil {
			c.mapper.Restore(target, had)
			return &GatewayOperationError{EntityID: c.binding.ID, Op: "stop", Err: err}
		}

	case CommandSetPosition:
		raw, clamped := c.mapper.Target(cmd.Position)
		if clamped {
			c.b.logger.Info("keep-open active, limiting target",
				"entity", c.binding.ID,
				"requested", cmd.Position,
				"target", raw,
			)
		}
		if err := node.SetPosition(ctx, raw); err != nil {
			c.mapper.Clear()
			return &GatewayOperationError{EntityID: c.binding.ID, Op: "set_position", Err: err}
		}
	}

	c.b.health.RecordContact()
	c.refresh(false)
	return nil
}

// onNodeUpdate is the node callback. Runs on the loop.
func (c *Cover) onNodeUpdate(gateway.Node) {
	c.b.health.RecordContact()
	c.refresh(false)
	c.markOnline(false)
}

// refresh publishes the node's current state. Runs on the loop.
func (c *Cover) refresh(force bool) {
	node := c.binding.Node
	raw := node.Position()
	if raw != clampPosition(raw) {
		c.b.logger.Warn("device position out of range, clamping", "entity", c.binding.ID, "raw", raw)
	}
	c.publishState(c.mapper.Observe(raw, node.Target()), force)
}

func (c *Cover) publishState(state CoverState, force bool) {
	posChanged := c.pub.publish(c.topics.Position, strconv.Itoa(state.Position), force)
	stateChanged := c.pub.publish(c.topics.State, state.BusState(), force)
	if !posChanged && !stateChanged {
		return
	}

	if c.b.metrics != nil {
		c.b.metrics.StatePublished()
	}
	if c.b.history != nil {
		c.b.history.WriteCoverState(c.binding.ID, c.binding.Class, state)
	}
}

func (c *Cover) close() {
	if err := c.b.bus.Unsubscribe(c.topics.Command); err != nil {
		c.b.logger.Warn("unsubscribe failed", "topic", c.topics.Command, "error", err)
	}
	c.pub.close(c.topics.Availability)
}
