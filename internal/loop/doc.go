// Package loop provides the single-goroutine scheduler that owns the
// gateway driver, and the bridge that lets MQTT handler goroutines call
// into it synchronously.
//
// # Concurrency domains
//
//   - The loop goroutine (Run) owns the driver and all node state. Only
//     tasks running there may touch it.
//   - MQTT handler goroutines call Invoke or Call. These acquire an
//     admission permit, queue the operation, and block until it has run.
//   - Drivers raise node callbacks with Post.
//
// # Usage
//
//	l := loop.New(loop.Options{MaxInFlight: 1, CallTimeout: 30 * time.Second})
//	go l.Run(ctx)
//
//	err := l.Invoke(ctx, func(ctx context.Context) error {
//	    return node.SetPosition(ctx, 40)
//	})
//
//	nodes, err := loop.Call(ctx, l, driver.Discover)
package loop
