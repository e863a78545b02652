// Package status serves the bridge's health snapshot and Prometheus
// metrics over HTTP.
//
// Routes:
//
//	GET /healthz   health snapshot as JSON; 200 when healthy, else 503
//	GET /metrics   Prometheus exposition of the bridge registry
//
// The server is read-only and binds to 127.0.0.1 by default.
package status
