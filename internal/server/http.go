package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calendar-mcp/internal/instrumentation"
)

const (
	// ServiceName identifies this server in the health response.
	ServiceName = "calendar-mcp"

	// ProtocolVersionHeader carries the MCP protocol version negotiated
	// by the client. Requests without it, or with a different version than
	// the server speaks, are rejected before reaching the JSON-RPC layer.
	ProtocolVersionHeader = "MCP-Protocol-Version"

	// DefaultProtocolVersion is the protocol version this server accepts.
	DefaultProtocolVersion = "2025-06-18"
)

// HTTPServerConfig holds configuration for the MCP HTTP transport.
type HTTPServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// BearerToken is the shared secret required on every MCP request.
	// Empty disables authentication; only use that for local development.
	BearerToken string

	// ProtocolVersion is the accepted MCP protocol version. Defaults to
	// DefaultProtocolVersion when empty.
	ProtocolVersion string

	// Logger receives transport-level log records.
	Logger *slog.Logger

	// Metrics records per-request counters and latencies. May be nil.
	Metrics *instrumentation.Metrics
}

// HTTPServer exposes the MCP server over streamable HTTP. The /mcp
// endpoint sits behind bearer authentication and a protocol version
// check; /health and the probe endpoints stay open for load balancers.
type HTTPServer struct {
	cfg        HTTPServerConfig
	httpServer *http.Server
}

// NewHTTPServer wires the MCP server and health checker into an HTTP
// server. The returned server is not listening yet; call Start.
func NewHTTPServer(mcpSrv *mcpserver.MCPServer, health *HealthChecker, cfg HTTPServerConfig) *HTTPServer {
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = DefaultProtocolVersion
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &HTTPServer{cfg: cfg}

	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", s.instrument(s.authenticate(s.checkProtocolVersion(streamable))))
	mux.Handle("/health", s.instrument(http.HandlerFunc(s.handleHealth)))
	if health != nil {
		health.RegisterHealthEndpoints(mux)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Start listens and serves until Shutdown is called or the listener fails.
func (s *HTTPServer) Start() error {
	s.cfg.Logger.Info("starting http transport", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the assembled HTTP handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleHealth answers load balancer checks. Unlike the MCP endpoint it
// requires no credentials.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// authenticate enforces the shared bearer token on the MCP endpoint.
func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.BearerToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			s.deny(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		const prefix = "Bearer "
		if len(header) < len(prefix) || header[:len(prefix)] != prefix {
			s.deny(w, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token := header[len(prefix):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.BearerToken)) != 1 {
			s.deny(w, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkProtocolVersion rejects requests that do not carry the protocol
// version this server speaks.
func (s *HTTPServer) checkProtocolVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version := r.Header.Get(ProtocolVersionHeader)
		if version == "" {
			s.deny(w, http.StatusBadRequest, "MCP-Protocol-Version header required")
			return
		}
		if version != s.cfg.ProtocolVersion {
			s.deny(w, http.StatusBadRequest, "Unsupported MCP protocol version: "+version)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// instrument records request count and latency per endpoint.
func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
		}
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
