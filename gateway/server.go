// Package gateway exposes the hub over HTTP: a JSON query surface for
// device state, a websocket feed of live state changes, health and
// Prometheus endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ftcid/AutomatedHomeV2/component"
	"github.com/ftcid/AutomatedHomeV2/errors"
	"github.com/ftcid/AutomatedHomeV2/metric"
	"github.com/ftcid/AutomatedHomeV2/state"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Config holds Server configuration.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string
	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HealthSource supplies per-component health for the health endpoint.
type HealthSource func() map[string]component.HealthStatus

// Server is the HTTP surface of the hub.
type Server struct {
	cfg      Config
	store    *state.Store
	registry *metric.MetricsRegistry
	health   HealthSource

	hub        *stateHub
	httpServer *http.Server
	listener   net.Listener

	logger  *slog.Logger
	metrics *serverMetrics

	mu      sync.Mutex
	started bool
}

// NewServer creates a Server reading device state from store.
func NewServer(store *state.Store, cfg Config, registry *metric.MetricsRegistry) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		store:    store,
		registry: registry,
		hub:      newStateHub(),
		logger:   slog.Default().With("component", "gateway"),
	}
	s.metrics = newServerMetrics(registry, s)
	return s
}

// SetHealthSource installs the component health provider.
func (s *Server) SetHealthSource(fn HealthSource) {
	s.health = fn
}

// OnStateChange feeds a state change to connected websocket clients.
// Registered with the engine as an observer; must not block.
func (s *Server) OnStateChange(topic, value string) {
	s.hub.broadcast(topic, value)
}

// Handler returns the full route table. Split out so tests can drive the
// mux without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /automatedhome", s.instrument("query", s.handleQuery))
	mux.HandleFunc("GET /healthz", s.instrument("healthz", s.handleHealth))
	mux.HandleFunc("GET /ws/state", s.handleWebsocket)
	if s.registry != nil {
		mux.Handle("GET /metrics", s.registry.Handler())
	}
	return mux
}

// Start begins serving. The listener is opened synchronously so an occupied
// port fails Start instead of a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.ErrAlreadyStarted
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.WrapFatal(err, "gateway", "Start", "listen on "+s.cfg.Addr)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()

	s.started = true
	s.logger.Info("Gateway listening", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the server down, waiting up to timeout for in-flight requests.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.ErrNotStarted
	}
	s.started = false

	s.hub.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "gateway", "Stop", "shutdown")
	}
	return nil
}

// Addr returns the bound listen address. Empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// instrument wraps a handler with request counting.
func (s *Server) instrument(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.metrics != nil {
			s.metrics.requestsTotal.WithLabelValues(name).Inc()
		}
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	healthy := true

	if s.health != nil {
		components := s.health()
		for _, hs := range components {
			if !hs.Healthy {
				healthy = false
			}
		}
		resp["components"] = components
	}
	if !healthy {
		resp["status"] = "degraded"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("Failed to encode response", "error", err)
	}
}
