package vlx

import (
	"context"
	"sync/atomic"
)

// KeepOpen is the keep-open switch entity of one node. It shares the
// cover's Mapper, so switching it on limits the cover's targets.
type KeepOpen struct {
	b       *Bridge
	binding NodeBinding
	topics  Topics
	mapper  *Mapper
	pub     *publisher
}

func newKeepOpen(b *Bridge, binding NodeBinding, mapper *Mapper) *KeepOpen {
	return &KeepOpen{
		b:       b,
		binding: binding,
		topics:  KeepOpenTopics(b.settings.DiscoveryPrefix, b.settings.Prefix, binding.ID),
		mapper:  mapper,
		pub:     newPublisher(b.bus, b.settings.QoS, b.logger),
	}
}

// Topics returns the entity's MQTT topics.
func (k *KeepOpen) Topics() Topics { return k.topics }

func (k *KeepOpen) announce(force bool) error {
	payload, err := switchDiscoveryPayload(k.binding, k.b.settings.Prefix, k.topics)
	if err != nil {
		return err
	}
	k.pub.publish(k.topics.Discovery, string(payload), force)
	return nil
}

func (k *KeepOpen) markOnline(force bool) {
	k.pub.publish(k.topics.Availability, payloadOnline, force)
}

// handleCommand runs on an MQTT callback goroutine.
func (k *KeepOpen) handleCommand(topic string, payload []byte) error {
	on, err := ParseSwitch(payload)
	if err != nil {
		k.b.rejectCommand(k.binding.ID, kindKeepOpen, topic, err)
		return nil
	}

	// applied is read even when Invoke times out while the task still runs.
	var applied atomic.Bool
	err = k.b.loop.Invoke(k.b.ctx, func(ctx context.Context) error {
		k.mapper.SetLimited(on)
		applied.Store(true)
		k.refresh(false)
		return k.enforce(ctx)
	})
	if applied.Load() {
		k.b.logger.Info("keep-open switched", "entity", k.binding.ID, "on", on)
		if k.b.limits != nil {
			if err := k.b.limits.SaveLimit(k.b.ctx, k.binding.ID, on); err != nil {
				k.b.logger.Warn("failed to persist keep-open flag", "entity", k.binding.ID, "error", err)
			}
		}
	}
	k.b.finishCommand(k.binding.ID, kindKeepOpen, err)
	return nil
}

// enforce moves the cover back to the limit when keep-open was switched on
// while it stood beyond it. Runs on the loop.
func (k *KeepOpen) enforce(ctx context.Context) error {
	node := k.binding.Node
	raw, ok := k.mapper.Enforce(node.Position())
	if !ok {
		return nil
	}

	k.b.logger.Info("keep-open active, moving to limit", "entity", k.binding.ID, "position", node.Position(), "target", raw)
	if err := node.SetPosition(ctx, raw); err != nil {
		k.mapper.Clear()
		return &GatewayOperationError{EntityID: k.binding.ID, Op: "keep_open_limit", Err: err}
	}
	k.b.health.RecordContact()
	return nil
}

// refresh publishes the switch state. Runs on the loop.
func (k *KeepOpen) refresh(force bool) {
	state := switchStateOff
	if k.mapper.Limited() {
		state = switchStateOn
	}
	k.pub.publish(k.topics.State, state, force)
}

func (k *KeepOpen) close() {
	if err := k.b.bus.Unsubscribe(k.topics.Command); err != nil {
		k.b.logger.Warn("unsubscribe failed", "topic", k.topics.Command, "error", err)
	}
	k.pub.close(k.topics.Availability)
}
