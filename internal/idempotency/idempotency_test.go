package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calendar-mcp/internal/schema"
)

func TestFingerprintIgnoresKeyOrder(t *testing.T) {
	a := Fingerprint("create_event", map[string]any{
		"calendarId": "primary",
		"summary":    "Standup",
		"start":      map[string]any{"dateTime": "2026-03-02T10:00:00Z", "timeZone": "UTC"},
	}, "alice")
	b := Fingerprint("create_event", map[string]any{
		"summary":    "Standup",
		"start":      map[string]any{"timeZone": "UTC", "dateTime": "2026-03-02T10:00:00Z"},
		"calendarId": "primary",
	}, "alice")
	assert.Equal(t, a, b)
}

func TestFingerprintDistinguishesInputs(t *testing.T) {
	base := map[string]any{"calendarId": "primary", "summary": "Standup"}

	byTool := Fingerprint("update_event", base, "alice")
	byUser := Fingerprint("create_event", base, "bob")
	byArgs := Fingerprint("create_event", map[string]any{"calendarId": "primary", "summary": "Retro"}, "alice")
	original := Fingerprint("create_event", base, "alice")

	assert.NotEqual(t, original, byTool)
	assert.NotEqual(t, original, byUser)
	assert.NotEqual(t, original, byArgs)
}

func TestFingerprintHandlesNestedValues(t *testing.T) {
	a := Fingerprint("create_event", map[string]any{
		"attendees": []any{map[string]any{"email": "a@example.com", "optional": true}},
		"count":     float64(3),
		"note":      nil,
	}, "alice")
	b := Fingerprint("create_event", map[string]any{
		"note":      nil,
		"count":     float64(3),
		"attendees": []any{map[string]any{"optional": true, "email": "a@example.com"}},
	}, "alice")
	assert.Equal(t, a, b)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	ctx := context.Background()
	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k", []byte(`{"success":true}`), time.Minute))
	payload, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"success":true}`, string(payload))
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("x"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	// Absent keys delete cleanly.
	assert.NoError(t, store.Delete(ctx, "never-stored"))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("x"), 0))

	assert.Eventually(t, func() bool {
		_, found, _ := store.Get(ctx, "k")
		return !found
	}, time.Second, 10*time.Millisecond)
}

func TestCacheRoundTripsEnvelopes(t *testing.T) {
	cache := NewCache(NewMemoryStore(time.Minute), time.Minute, nil)
	defer cache.Close()

	ctx := context.Background()
	key := Fingerprint("create_event", map[string]any{"summary": "x"}, "alice")

	_, hit := cache.Lookup(ctx, key)
	assert.False(t, hit)

	stored := schema.SuccessEnvelope("Event created successfully", map[string]any{"event_id": "abc"})
	cache.Remember(ctx, key, stored)

	env, hit := cache.Lookup(ctx, key)
	require.True(t, hit)
	assert.True(t, env.Success)
	assert.Equal(t, "Event created successfully", env.Message)
	assert.Equal(t, "abc", env.Data["event_id"])
}

func TestCacheRemembersFailures(t *testing.T) {
	cache := NewCache(NewMemoryStore(time.Minute), time.Minute, nil)
	defer cache.Close()

	ctx := context.Background()
	cache.Remember(ctx, "k", schema.ErrorEnvelope("Failed to create event", errors.New("backend unavailable")))

	env, hit := cache.Lookup(ctx, "k")
	require.True(t, hit)
	assert.False(t, env.Success)
	assert.Equal(t, "backend unavailable", env.Error)
}

// failingStore simulates a broken backend.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("backend unavailable")
}

func (failingStore) Close() error { return nil }

func TestCacheDegradesOnBackendFailure(t *testing.T) {
	cache := NewCache(failingStore{}, time.Minute, nil)

	ctx := context.Background()
	_, hit := cache.Lookup(ctx, "k")
	assert.False(t, hit)

	// Remember must not panic or surface the error.
	cache.Remember(ctx, "k", schema.SuccessEnvelope("ok", nil))
}

// corruptStore returns payloads that do not decode as envelopes.
type corruptStore struct{}

func (corruptStore) Get(context.Context, string) ([]byte, bool, error) {
	return []byte("not json"), true, nil
}

func (corruptStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (corruptStore) Delete(context.Context, string) error { return nil }

func (corruptStore) Close() error { return nil }

func TestCacheTreatsCorruptEntriesAsMiss(t *testing.T) {
	cache := NewCache(corruptStore{}, time.Minute, nil)
	_, hit := cache.Lookup(context.Background(), "k")
	assert.False(t, hit)
}
