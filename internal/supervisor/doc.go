// Package supervisor tracks gateway liveness and decides when the bridge
// process must restart.
//
// Health holds the last contact and restart timestamps behind a mutex.
// The bridge calls RecordContact after every successful driver call and
// every node event. Supervisor runs two periodic tasks:
//
//   - the health check, every health_check_interval, which triggers a
//     restart when no contact was seen for twice that interval;
//   - the periodic restart, every restart_interval.
//
// RestartController is the one-shot signal both tasks fire. A restart is a
// process exit with status 3; respawning is left to systemd or
// cmd/vlxwatchdog.
package supervisor
