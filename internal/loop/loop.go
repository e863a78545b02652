package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const defaultQueueSize = 64

// Logger is the logging interface used by the loop.
type Logger interface {
	Error(msg string, args ...any)
}

// Options configures a Loop.
type Options struct {
	// MaxInFlight bounds how many Invoke/Call callers may be admitted
	// at once. Default: 1.
	MaxInFlight int64

	// CallTimeout bounds how long Invoke/Call wait for completion,
	// including time spent waiting for admission. 0 waits until the
	// caller's context ends.
	CallTimeout time.Duration

	// QueueSize is the task channel buffer. Default: 64.
	QueueSize int

	// OnCallDone, if set, is called after every Invoke/Call with its
	// duration and result.
	OnCallDone func(d time.Duration, err error)

	Logger Logger
}

// Loop is a single-goroutine scheduler that owns the gateway driver.
//
// Every task runs on the goroutine executing Run, one at a time, so state
// owned by the loop needs no locking as long as it is only touched from
// tasks. Other goroutines reach that state through Invoke, Call or Post.
//
// Tasks must never call Invoke or Call on their own loop; the loop would
// wait on itself.
type Loop struct {
	tasks      chan func(context.Context)
	permits    *semaphore.Weighted
	timeout    time.Duration
	onCallDone func(time.Duration, error)
	logger     Logger

	started atomic.Bool
	done    chan struct{}
}

// New creates a loop. Call Run to start executing tasks.
func New(opts Options) *Loop {
	maxInFlight := opts.MaxInFlight
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	queueSize := opts.QueueSize
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}

	return &Loop{
		tasks:      make(chan func(context.Context), queueSize),
		permits:    semaphore.NewWeighted(maxInFlight),
		timeout:    opts.CallTimeout,
		onCallDone: opts.OnCallDone,
		logger:     opts.Logger,
		done:       make(chan struct{}),
	}
}

// Run executes queued tasks until ctx is cancelled, then returns nil.
// Tasks receive ctx; it is cancelled when the loop stops.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("loop: already started")
	}
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-l.tasks:
			l.runTask(ctx, task)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) runTask(ctx context.Context, task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil && l.logger != nil {
			l.logger.Error("loop task panic recovered", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task(ctx)
}

// Post queues fn to run on the loop and returns without waiting.
// Drivers use it to raise callbacks on the loop. Post blocks while the
// queue is full and returns ErrStopped once the loop has stopped.
func (l *Loop) Post(fn func(ctx context.Context)) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Invoke runs op on the loop and blocks until it has completed, returning
// its error. It is safe to call from any goroutine other than the loop's.
func (l *Loop) Invoke(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Call(ctx, l, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

type result[T any] struct {
	val T
	err error
}

// Call runs op on l and blocks until it has completed, returning its
// result. A panic in op is returned as ErrOperationPanic.
//
// At most Options.MaxInFlight callers are admitted at once; the permit is
// released on every return path. If the caller gives up (context or call
// timeout) while op is running, op keeps running to completion on the
// loop but its context is cancelled.
func Call[T any](ctx context.Context, l *Loop, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	val, err := call(ctx, l, op)
	if l.onCallDone != nil {
		l.onCallDone(time.Since(start), err)
	}
	if err != nil {
		return zero, err
	}
	return val, nil
}

func call[T any](ctx context.Context, l *Loop, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := l.permits.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("%w: waiting for admission: %w", ErrCallTimeout, err)
	}
	defer l.permits.Release(1)

	resc := make(chan result[T], 1)
	task := func(loopCtx context.Context) {
		if err := ctx.Err(); err != nil {
			resc <- result[T]{err: err}
			return
		}

		opCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(loopCtx, cancel)
		defer stop()

		v, err := runRecovered(opCtx, op)
		resc <- result[T]{val: v, err: err}
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: waiting for queue: %w", ErrCallTimeout, ctx.Err())
	}

	select {
	case r := <-resc:
		return r.val, r.err
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", ErrCallTimeout, ctx.Err())
	case <-l.done:
		select {
		case r := <-resc:
			return r.val, r.err
		default:
			return zero, ErrStopped
		}
	}
}

func runRecovered[T any](ctx context.Context, op func(ctx context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrOperationPanic, r, debug.Stack())
		}
	}()
	return op(ctx)
}
