// Package process supervises a child process and respawns it according to
// how it exited.
//
// It backs the vlxwatchdog binary, a small alternative to systemd
// Restart=always for hosts without an init system:
//
//   - exit code 0 ends supervision;
//   - exit code ExitRestart (3) respawns after RestartDelay without counting
//     as a failure;
//   - any other exit respawns with exponential backoff until
//     MaxRestartAttempts consecutive failures.
//
// Every spawn gets a fresh run id, passed to the child as VLXBRIDGE_RUN_ID.
// The child runs in its own process group; Stop and context cancellation
// send SIGTERM to the group and escalate to SIGKILL after GracefulTimeout.
//
// Example usage:
//
//	mgr := process.NewManager(process.DefaultConfig(
//	    "vlxbridge", "/usr/local/bin/vlxbridge", []string{"/etc/vlxbridge/config.yaml"},
//	))
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	<-mgr.Done()
package process
