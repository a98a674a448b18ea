// Package router ties the mutation pipeline together: arguments are
// validated, deduplicated against the idempotency cache, dispatched to the
// calendar adapter, and the resulting envelope is cached for the
// deduplication window. Validation failures are answered directly and never
// cached; a retried fix of a bad request must reach the service.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/calendar-mcp/internal/idempotency"
	"github.com/teemow/calendar-mcp/internal/instrumentation"
	"github.com/teemow/calendar-mcp/internal/schema"
)

// Executor is the operation surface the router dispatches to.
type Executor interface {
	CreateEvent(ctx context.Context, req schema.CreateEvent, rawArgs map[string]any, user string) schema.Envelope
	UpdateEvent(ctx context.Context, req schema.UpdateEvent, rawArgs map[string]any, user string) schema.Envelope
	DeleteEvent(ctx context.Context, req schema.DeleteEvent, rawArgs map[string]any, user string) schema.Envelope
	FreeBusyQuery(ctx context.Context, req schema.FreeBusyQuery) schema.Envelope
}

// Router validates, deduplicates and dispatches tool calls.
type Router struct {
	executor Executor
	cache    *idempotency.Cache
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// SetMetrics attaches a metrics recorder. A nil recorder is a no-op.
func (r *Router) SetMetrics(m *instrumentation.Metrics) { r.metrics = m }

// New builds a router. cache may be nil to disable deduplication.
func New(executor Executor, cache *idempotency.Cache, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{executor: executor, cache: cache, logger: logger}
}

// Dispatch runs one tool call through the full pipeline and always returns
// an envelope.
func (r *Router) Dispatch(ctx context.Context, tool string, args map[string]any, user string) schema.Envelope {
	req, err := schema.Validate(tool, args)
	if err != nil {
		var unknown *schema.UnknownOperationError
		if errors.As(err, &unknown) {
			r.logger.Error("unknown tool requested", "tool", tool)
			return schema.ErrorEnvelope(fmt.Sprintf("Unknown tool: %s", tool), err)
		}
		r.logger.Warn("tool call failed validation", "tool", tool, "error", err)
		return schema.ErrorEnvelope(fmt.Sprintf("Validation failed for %s", tool), err)
	}

	var key string
	if r.cache != nil {
		key = idempotency.Fingerprint(tool, args, user)
		if env, hit := r.cache.Lookup(ctx, key); hit {
			r.logger.Info("returning cached result", "tool", tool)
			r.metrics.RecordIdempotencyLookup(ctx, "hit")
			return env
		}
		r.metrics.RecordIdempotencyLookup(ctx, "miss")
	}

	env := r.execute(ctx, req, args, user)

	if r.cache != nil {
		r.cache.Remember(ctx, key, env)
	}
	return env
}

// execute dispatches over the closed request union. A request type without
// a case here cannot be produced by Validate, so the default is unreachable
// short of a schema bug.
func (r *Router) execute(ctx context.Context, req schema.Request, args map[string]any, user string) schema.Envelope {
	switch typed := req.(type) {
	case schema.CreateEvent:
		return r.executor.CreateEvent(ctx, typed, args, user)
	case schema.UpdateEvent:
		return r.executor.UpdateEvent(ctx, typed, args, user)
	case schema.DeleteEvent:
		return r.executor.DeleteEvent(ctx, typed, args, user)
	case schema.FreeBusyQuery:
		return r.executor.FreeBusyQuery(ctx, typed)
	default:
		r.logger.Error("request type without executor case", "operation", req.Operation())
		return schema.ErrorEnvelope(
			fmt.Sprintf("Unknown tool: %s", req.Operation()),
			fmt.Errorf("no executor for operation %q", req.Operation()),
		)
	}
}
