package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teemow/calendar-mcp/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is where the scrape endpoint listens when no
	// address is configured.
	DefaultMetricsAddr = ":9090"

	// DefaultShutdownTimeout bounds graceful drain of the listeners.
	DefaultShutdownTimeout = 30 * time.Second
)

// MetricsServerConfig configures the scrape listener.
type MetricsServerConfig struct {
	// Addr is the listen address, e.g. ":9090".
	Addr string

	// InstrumentationProvider must be enabled; its prometheus exporter
	// feeds the registry this server exposes.
	InstrumentationProvider *instrumentation.Provider
}

// MetricsServer exposes /metrics on its own listener, kept apart from the
// authenticated MCP port so scrapers never need the bearer token.
type MetricsServer struct {
	httpServer *http.Server
}

// NewMetricsServer wires the scrape endpoint. The returned server is not
// listening yet; call Start.
func NewMetricsServer(cfg MetricsServerConfig) (*MetricsServer, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultMetricsAddr
	}
	if cfg.InstrumentationProvider == nil || !cfg.InstrumentationProvider.Enabled() {
		return nil, errors.New("metrics server requires enabled instrumentation")
	}

	mux := http.NewServeMux()
	// The prometheus exporter registers on the global registry, which
	// promhttp.Handler reads.
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// Start listens and serves until Shutdown is called or the listener fails.
func (s *MetricsServer) Start() error {
	slog.Info("starting metrics listener", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight scrapes.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the listen address.
func (s *MetricsServer) Addr() string {
	return s.httpServer.Addr
}
