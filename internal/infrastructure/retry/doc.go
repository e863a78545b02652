// Package retry runs connection attempts with bounded exponential backoff.
//
// It is a thin layer over github.com/cenkalti/backoff/v5 that fixes the
// behaviour the bridge relies on at startup:
//
//   - a hard attempt limit (no elapsed-time limit, no retry-forever)
//   - no jitter, so delays are non-decreasing
//   - exhaustion is reported as ErrExhausted wrapping the last error
//
// Usage:
//
//	client, err := retry.Do(ctx, retry.FromConfig(cfg.MQTT.Reconnect),
//	    func(ctx context.Context) (*mqtt.Client, error) { return mqtt.Connect(cfg.MQTT) },
//	    func(attempt int, err error, next time.Duration) {
//	        logger.Warn("mqtt connect failed", "attempt", attempt, "retry_in", next, "error", err)
//	    })
package retry
