package idempotency

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/teemow/calendar-mcp/internal/schema"
)

// DefaultTTL is the deduplication window applied when none is configured.
const DefaultTTL = 5 * time.Minute

// Cache wraps a Store with envelope serialization and degrade-not-fail
// semantics. Both success and failure envelopes are remembered, so a retried
// call observes the same outcome the first call produced.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache builds a cache over store. A zero or negative ttl falls back to
// DefaultTTL.
func NewCache(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, ttl: ttl, logger: logger}
}

// Lookup returns the envelope stored under key, if any. Backend errors and
// undecodable payloads are logged and reported as a miss.
func (c *Cache) Lookup(ctx context.Context, key string) (schema.Envelope, bool) {
	payload, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("idempotency lookup failed, treating as miss",
			"key", ShortKey(key), "error", err)
		return schema.Envelope{}, false
	}
	if !found {
		return schema.Envelope{}, false
	}

	var env schema.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.logger.Warn("idempotency entry undecodable, treating as miss",
			"key", ShortKey(key), "error", err)
		return schema.Envelope{}, false
	}
	c.logger.Debug("idempotency hit", "key", ShortKey(key))
	return env, true
}

// Remember stores env under key for the deduplication window. Storage
// failures are logged and swallowed; the caller's response is unaffected.
func (c *Cache) Remember(ctx context.Context, key string, env schema.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		c.logger.Warn("idempotency entry unencodable, skipping",
			"key", ShortKey(key), "error", err)
		return
	}
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		c.logger.Warn("idempotency store failed, result not cached",
			"key", ShortKey(key), "error", err)
	}
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
