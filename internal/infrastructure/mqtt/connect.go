package mqtt

import (
	"context"
	"fmt"

	"github.com/nerrad567/vlx-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vlx-bridge/internal/infrastructure/retry"
)

// dialFunc makes one connection attempt. Replaced in tests.
type dialFunc func(cfg config.MQTTConfig) (*Client, error)

// ConnectWithRetry connects to the broker, retrying failed attempts with
// non-decreasing backoff as configured in cfg.Reconnect.
//
// Exhausting cfg.Reconnect.MaxAttempts returns an error wrapping
// ErrConnectionFailed; callers treat it as fatal. notify may be nil.
func ConnectWithRetry(ctx context.Context, cfg config.MQTTConfig, notify retry.Notify) (*Client, error) {
	return connectWithRetry(ctx, cfg, Connect, notify)
}

func connectWithRetry(ctx context.Context, cfg config.MQTTConfig, dial dialFunc, notify retry.Notify) (*Client, error) {
	client, err := retry.Do(ctx, retry.FromConfig(cfg.Reconnect),
		func(context.Context) (*Client, error) {
			return dial(cfg)
		},
		notify,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s:%d: %w", ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, err)
	}
	return client, nil
}
