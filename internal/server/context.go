package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/calendar-mcp/internal/audit"
	"github.com/teemow/calendar-mcp/internal/idempotency"
	"github.com/teemow/calendar-mcp/internal/instrumentation"
	"github.com/teemow/calendar-mcp/internal/router"
	"github.com/teemow/calendar-mcp/internal/workers"
)

// ServerContext carries the shared dependencies of the MCP server. Tool
// handlers receive it instead of constructing collaborators themselves.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	logger      *slog.Logger
	provider    *instrumentation.Provider
	pool        *workers.Pool
	cache       *idempotency.Cache
	auditLogger *audit.Logger
	router      *router.Router

	mu       sync.RWMutex
	shutdown bool
}

// Dependencies bundles the collaborators for a ServerContext.
type Dependencies struct {
	Logger      *slog.Logger
	Provider    *instrumentation.Provider
	Pool        *workers.Pool
	Cache       *idempotency.Cache
	AuditLogger *audit.Logger
	Router      *router.Router
}

// NewServerContext creates a server context owning the given dependencies.
// Shutdown releases them in reverse dependency order.
func NewServerContext(ctx context.Context, deps Dependencies) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerContext{
		ctx:         shutdownCtx,
		cancel:      cancel,
		logger:      logger,
		provider:    deps.Provider,
		pool:        deps.Pool,
		cache:       deps.Cache,
		auditLogger: deps.AuditLogger,
		router:      deps.Router,
	}
}

// Context returns the server lifetime context.
func (sc *ServerContext) Context() context.Context { return sc.ctx }

// Logger returns the shared logger.
func (sc *ServerContext) Logger() *slog.Logger { return sc.logger }

// Router returns the dispatch pipeline.
func (sc *ServerContext) Router() *router.Router { return sc.router }

// Pool returns the worker pool, or nil when not configured.
func (sc *ServerContext) Pool() *workers.Pool { return sc.pool }

// AuditLogger returns the audit trail writer, or nil when not configured.
func (sc *ServerContext) AuditLogger() *audit.Logger { return sc.auditLogger }

// Metrics returns the metrics recorder. Never nil; without instrumentation
// it is a no-op recorder.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	if sc.provider == nil {
		return &instrumentation.Metrics{}
	}
	return sc.provider.Metrics()
}

// Provider returns the instrumentation provider, or nil.
func (sc *ServerContext) Provider() *instrumentation.Provider { return sc.provider }

// IsShutdown reports whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops the pipeline and releases owned resources. Safe to call
// more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	sc.mu.Unlock()

	sc.cancel()

	if sc.pool != nil {
		sc.pool.Shutdown()
	}
	if sc.cache != nil {
		if err := sc.cache.Close(); err != nil {
			sc.logger.Warn("closing idempotency cache", "error", err)
		}
	}
	if sc.auditLogger != nil {
		if err := sc.auditLogger.Close(); err != nil {
			sc.logger.Warn("closing audit log", "error", err)
		}
	}
	if sc.provider != nil {
		if err := sc.provider.Shutdown(context.Background()); err != nil {
			sc.logger.Warn("shutting down instrumentation", "error", err)
		}
	}
	return nil
}
