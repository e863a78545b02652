package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps a single message at 1 MiB.
const maxPayloadSize = 1 << 20

// Publish sends payload on topic and waits for the broker to acknowledge it.
// Discovery, availability and state topics are published retained so Home
// Assistant sees the current value on subscribe.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload on %s exceeds %d", ErrPublishFailed, len(payload), topic, maxPayloadSize)
	}
	if err := c.checkReady(topic, qos); err != nil {
		return err
	}
	return await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// checkReady validates topic and QoS, then the connection state.
func (c *Client) checkReady(topic string, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case !c.IsConnected():
		return ErrNotConnected
	}
	return nil
}

// await blocks on token for at most defaultPublishTimeout. Failures wrap op.
func await(token pahomqtt.Token, op error) error {
	return awaitFor(token, defaultPublishTimeout, op)
}

func awaitFor(token pahomqtt.Token, timeout time.Duration, op error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", op, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", op, err)
	}
	return nil
}
