package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/vlx-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vlx-bridge/internal/supervisor"
)

const (
	// gracefulShutdownTimeout bounds how long Close waits for in-flight
	// scrapes.
	gracefulShutdownTimeout = 5 * time.Second

	readHeaderTimeout = 5 * time.Second
)

// ErrMissingDependency is returned by New when a required dependency is nil.
var ErrMissingDependency = errors.New("status: missing dependency")

// HealthSource provides the snapshot served on /healthz.
type HealthSource interface {
	Snapshot() supervisor.Snapshot
}

// Logger is the logging surface used by the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config  config.StatusConfig
	Health  HealthSource
	Metrics *Metrics
	Logger  Logger
}

// Server is the read-only HTTP endpoint for health and metrics.
type Server struct {
	cfg     config.StatusConfig
	health  HealthSource
	metrics *Metrics
	logger  Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a status server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Health == nil:
		return nil, fmt.Errorf("%w: health", ErrMissingDependency)
	case deps.Metrics == nil:
		return nil, fmt.Errorf("%w: metrics", ErrMissingDependency)
	case deps.Logger == nil:
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}
	return &Server{
		cfg:     deps.Config,
		health:  deps.Health,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}, nil
}

// Start binds the listener and serves in the background. Bind errors (port
// in use) are returned directly.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("status server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding status server on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.server = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	s.logger.Info("status server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts the server down. Safe to call if never started.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}
