package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/vlx-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vlx-bridge/internal/supervisor"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// staticHealth returns a fixed snapshot.
type staticHealth supervisor.Snapshot

func (h staticHealth) Snapshot() supervisor.Snapshot { return supervisor.Snapshot(h) }

func newTestServer(t *testing.T, health HealthSource) (*Server, *Metrics) {
	t.Helper()
	metrics := NewMetrics()
	srv, err := New(Deps{
		Config:  config.StatusConfig{Enabled: true, Host: "127.0.0.1", Port: 0},
		Health:  health,
		Metrics: metrics,
		Logger:  nopLogger{},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, metrics
}

func TestHealthz(t *testing.T) {
	contact := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		state      string
		wantStatus int
	}{
		{supervisor.StateHealthy.String(), http.StatusOK},
		{supervisor.StateDegraded.String(), http.StatusServiceUnavailable},
		{supervisor.StateRestartPending.String(), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			srv, _ := newTestServer(t, staticHealth{State: tt.state, LastContact: contact})

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var got supervisor.Snapshot
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if got.State != tt.state || !got.LastContact.Equal(contact) {
				t.Errorf("body = %+v", got)
			}
		})
	}
}

func TestHealthz_LiveHealth(t *testing.T) {
	health := supervisor.NewHealth(nil)
	srv, _ := newTestServer(t, health)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("fresh Health served %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, metrics := newTestServer(t, staticHealth{State: "healthy"})

	metrics.CommandHandled("cover", "ok")
	metrics.CommandHandled("cover", "ok")
	metrics.CommandHandled("keep_open", "rejected")
	metrics.StatePublished()
	metrics.RestartTriggered(supervisor.ReasonPeriodicRestart)
	metrics.ObserveCall(120*time.Millisecond, nil)
	metrics.ObserveCall(2*time.Second, errors.New("gateway timeout"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`vlxbridge_commands_total{kind="cover",result="ok"} 2`,
		`vlxbridge_commands_total{kind="keep_open",result="rejected"} 1`,
		`vlxbridge_state_publishes_total 1`,
		`vlxbridge_restart_triggers_total{reason="periodic_restart"} 1`,
		`vlxbridge_loop_call_duration_seconds_count{result="ok"} 1`,
		`vlxbridge_loop_call_duration_seconds_count{result="error"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.CommandHandled("cover", "failed")
	m.RestartTriggered(supervisor.ReasonHealthCheckTimeout)
	m.RestartTriggered(supervisor.ReasonHealthCheckTimeout)

	if got := testutil.ToFloat64(m.commands.WithLabelValues("cover", "failed")); got != 1 {
		t.Errorf("commands{cover,failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.restarts.WithLabelValues(supervisor.ReasonHealthCheckTimeout)); got != 2 {
		t.Errorf("restarts{health_check_timeout} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.publishes); got != 0 {
		t.Errorf("publishes = %v, want 0", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, staticHealth{State: "healthy"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz = %d, want 405", rec.Code)
	}
}

func TestServer_StartAndClose(t *testing.T) {
	srv, _ := newTestServer(t, staticHealth{State: "healthy"})

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_CloseWithoutStart(t *testing.T) {
	srv, _ := newTestServer(t, staticHealth{State: "healthy"})
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if srv.Addr() != nil {
		t.Error("Addr() before Start should be nil")
	}
}

func TestNew_MissingDependencies(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"health", Deps{Metrics: NewMetrics(), Logger: nopLogger{}}},
		{"metrics", Deps{Health: staticHealth{}, Logger: nopLogger{}}},
		{"logger", Deps{Health: staticHealth{}, Metrics: NewMetrics()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); !errors.Is(err, ErrMissingDependency) {
				t.Errorf("New() error = %v, want ErrMissingDependency", err)
			}
		})
	}
}
