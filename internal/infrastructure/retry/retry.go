package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nerrad567/vlx-bridge/internal/infrastructure/config"
)

// ErrExhausted is returned when every allowed attempt has failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy bounds one connection-attempt sequence.
type Policy struct {
	MaxAttempts  int           // total attempts, including the first; must be >= 1
	InitialDelay time.Duration // delay after the first failure
	MaxDelay     time.Duration // cap on any single delay
	Multiplier   float64       // growth factor between delays; values < 1 are treated as 1
}

// FromConfig converts a config section into a Policy.
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelayDuration(),
		MaxDelay:     cfg.MaxDelayDuration(),
		Multiplier:   cfg.Multiplier,
	}
}

// Notify is called after a failed attempt that will be retried.
// attempt is 1-based; next is the delay before the following attempt.
type Notify func(attempt int, err error, next time.Duration)

// Permanent marks err as not worth retrying. Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// backOff builds the delay sequence. Randomisation is disabled so
// delays never decrease between attempts.
func (p Policy) backOff() *backoff.ExponentialBackOff {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	maxDelay := p.MaxDelay
	if maxDelay < p.InitialDelay {
		maxDelay = p.InitialDelay
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          multiplier,
		MaxInterval:         maxDelay,
	}
}

// Do runs op until it succeeds, returns a Permanent error, ctx ends, or
// p.MaxAttempts attempts have failed. It never loops indefinitely.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), notify Notify) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, fmt.Errorf("retry: max attempts must be at least 1, got %d", p.MaxAttempts)
	}

	attempt := 0
	result, err := backoff.Retry(ctx,
		func() (T, error) {
			attempt++
			return op(ctx)
		},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if notify != nil {
				notify(attempt, err, next)
			}
		}),
	)
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
	}
	if attempt < p.MaxAttempts {
		// Permanent error: backoff has already unwrapped it.
		return zero, err
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
}
