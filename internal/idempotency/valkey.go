package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyStore persists entries in an external Valkey instance so that
// deduplication survives restarts and spans replicas.
type ValkeyStore struct {
	client valkey.Client
}

// ValkeyConfig carries the connection parameters for an external store.
type ValkeyConfig struct {
	Address  string
	Password string
	DB       int
}

// NewValkeyStore connects to Valkey and verifies the connection with a ping.
func NewValkeyStore(ctx context.Context, cfg ValkeyConfig) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to valkey at %s: %w", cfg.Address, err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging valkey at %s: %w", cfg.Address, err)
	}
	return &ValkeyStore{client: client}, nil
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("valkey get: %w", err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return nil, false, fmt.Errorf("valkey get: %w", err)
	}
	return payload, true, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(key).Value(string(payload)).
		Ex(ttl.Round(time.Second)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
