package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/vlx-bridge/internal/supervisor"
)

// Handler builds the router. Exposed so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

// handleHealth serves the health snapshot. Anything but healthy is 503 so
// load balancers and the watchdog can act on the status code alone.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.health.Snapshot()

	status := http.StatusOK
	if snap.State != supervisor.StateHealthy.String() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, snap)
}

// loggingMiddleware logs each request at debug level; scrapes are frequent.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write; the client may be gone
	json.NewEncoder(w).Encode(v)
}
