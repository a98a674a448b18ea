package idempotency

import (
	"context"
	"time"
)

// Store is a TTL-bounded key/value backend for cached response envelopes.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored payload and whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores payload under key for at most ttl.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
