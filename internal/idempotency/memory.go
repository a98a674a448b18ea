package idempotency

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryEntries bounds the in-process store so a burst of unique calls
// cannot grow memory without limit.
const memoryEntries = 4096

// MemoryStore keeps entries in an in-process expirable LRU. Suitable for a
// single server instance; entries vanish on restart.
type MemoryStore struct {
	cache *expirable.LRU[string, []byte]
}

// NewMemoryStore returns a store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: expirable.NewLRU[string, []byte](memoryEntries, nil, ttl),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	payload, ok := s.cache.Get(key)
	return payload, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	// The LRU applies one TTL to all entries; per-key TTLs are a backend
	// concern and the cache is constructed with the configured window.
	s.cache.Add(key, payload)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
