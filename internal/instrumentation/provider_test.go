package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	require.NotNil(t, p.Metrics())
	assert.NotNil(t, p.Tracer("test"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.ServiceInstanceID = "test-instance"

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	assert.True(t, p.Enabled())
	require.NotNil(t, p.Metrics())

	// Recording must not panic.
	ctx := context.Background()
	p.Metrics().RecordToolInvocation(ctx, "create_event", StatusSuccess, 10*time.Millisecond)
	p.Metrics().RecordCalendarOperation(ctx, "insert", StatusError, 5*time.Millisecond)
	p.Metrics().RecordIdempotencyLookup(ctx, "hit")
	p.Metrics().RecordRetryAttempt(ctx, "insert")
	p.Metrics().AddQueueDepth(ctx, 1)
	p.Metrics().AddQueueDepth(ctx, -1)
	p.Metrics().RecordHTTPRequest(ctx, "POST", "/mcp", 200, time.Millisecond)
}

func TestNoOpMetricsAreSafe(t *testing.T) {
	m := &Metrics{}
	ctx := context.Background()
	m.RecordToolInvocation(ctx, "create_event", StatusSuccess, time.Millisecond)
	m.RecordCalendarOperation(ctx, "insert", StatusSuccess, time.Millisecond)
	m.RecordIdempotencyLookup(ctx, "miss")
	m.RecordRetryAttempt(ctx, "patch")
	m.AddQueueDepth(ctx, 1)
	m.RecordHTTPRequest(ctx, "GET", "/health", 200, time.Millisecond)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Enabled: true}
	assert.Error(t, cfg.Validate())

	cfg.ServiceName = "calendar-mcp"
	assert.NoError(t, cfg.Validate())
}
