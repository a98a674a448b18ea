// Package instrumentation provides OpenTelemetry-based metrics for the
// calendar mutation pipeline.
//
// Metrics cover the MCP tool surface (invocation counts and latencies),
// the Google Calendar API calls behind it, and the pipeline internals
// (idempotency cache hits, retry attempts, worker queue depth). Metrics are
// exported in Prometheus format and served by the metrics server.
//
// When instrumentation is disabled the Provider hands out no-op recorders,
// so call sites never need nil checks.
package instrumentation
