package vlx

import (
	"sync"
)

// publisher sends retained messages for one entity and suppresses
// payloads identical to the last one sent on the same topic.
//
// It is used from the loop goroutine (node events), from MQTT callbacks
// (reconnect) and from teardown, so it carries its own lock.
type publisher struct {
	bus    BusClient
	qos    byte
	logger Logger

	mu     sync.Mutex
	last   map[string]string
	closed bool
}

func newPublisher(bus BusClient, qos byte, logger Logger) *publisher {
	return &publisher{
		bus:    bus,
		qos:    qos,
		logger: logger,
		last:   make(map[string]string),
	}
}

// publish sends payload unless it equals the last payload on topic.
// force bypasses the comparison. It reports whether a message was sent.
func (p *publisher) publish(topic, payload string, force bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if prev, ok := p.last[topic]; ok && prev == payload && !force {
		return false
	}

	if err := p.bus.Publish(topic, []byte(payload), p.qos, true); err != nil {
		// Forget the topic so the next attempt is not de-duplicated away.
		delete(p.last, topic)
		p.logger.Warn("publish failed", "topic", topic, "error", err)
		return false
	}
	p.last[topic] = payload
	return true
}

// close publishes the offline payloads and stops all further publishing.
func (p *publisher) close(availabilityTopics ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	for _, topic := range availabilityTopics {
		if err := p.bus.Publish(topic, []byte(payloadOffline), p.qos, true); err != nil {
			p.logger.Warn("publish offline failed", "topic", topic, "error", err)
		}
	}
	p.closed = true
}
