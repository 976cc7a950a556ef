package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newKeys(t *testing.T) (*memory.IdempotencyKeys, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 4, 10, 8, 30, 0, 0, time.UTC)}
	return memory.NewIdempotencyRepository(memory.WithIdempotencyClock(clock.Now)), clock
}

func TestIdempotencyKeys_CreateNormalizesKey(t *testing.T) {
	keys, clock := newKeys(t)
	ctx := context.Background()

	created, err := keys.CreateProcessing(ctx, "  create-invoice-42 ", "sha-a", clock.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "create-invoice-42", created.Key)
	assert.Equal(t, domain.IdempotencyStatusProcessing, created.Status)
	assert.Equal(t, clock.now, created.CreatedAt)

	got, err := keys.Get(ctx, "create-invoice-42")
	require.NoError(t, err)
	assert.Equal(t, "sha-a", got.RequestHash)
}

func TestIdempotencyKeys_CreateRejectsBadInput(t *testing.T) {
	keys, _ := newKeys(t)
	ctx := context.Background()

	_, err := keys.CreateProcessing(ctx, " ", "sha", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)

	_, err = keys.CreateProcessing(ctx, "bad\tkey", "sha", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyInvalid)

	_, err = keys.CreateProcessing(ctx, "create-invoice-1", "", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
	assert.Zero(t, keys.Len())
}

func TestIdempotencyKeys_DefaultTTL(t *testing.T) {
	keys, clock := newKeys(t)

	created, err := keys.CreateProcessing(context.Background(), "create-invoice-7", "sha", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(domain.DefaultIdempotencyTTL), created.TTLAt)
}

func TestIdempotencyKeys_ReuseWhileAlive(t *testing.T) {
	keys, clock := newKeys(t)
	ctx := context.Background()
	ttl := clock.now.Add(time.Hour)

	_, err := keys.CreateProcessing(ctx, "create-invoice-1", "sha-a", ttl)
	require.NoError(t, err)

	existing, err := keys.CreateProcessing(ctx, "create-invoice-1", "sha-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	assert.Equal(t, domain.IdempotencyStatusProcessing, existing.Status)

	_, err = keys.CreateProcessing(ctx, "create-invoice-1", "sha-b", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
}

func TestIdempotencyKeys_ExpiredKeyIsReclaimed(t *testing.T) {
	keys, clock := newKeys(t)
	ctx := context.Background()

	_, err := keys.CreateProcessing(ctx, "create-invoice-1", "sha-a", clock.now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, keys.MarkDone(ctx, "create-invoice-1", []byte(`{"id":"inv-1"}`), 201))

	clock.now = clock.now.Add(2 * time.Minute)

	_, err = keys.Get(ctx, "create-invoice-1")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound, "expired record is invisible before cleanup")
	require.ErrorIs(t, keys.MarkFailed(ctx, "create-invoice-1", nil, 500), domain.ErrIdempotencyKeyNotFound)

	reclaimed, err := keys.CreateProcessing(ctx, "create-invoice-1", "sha-b", clock.now.Add(time.Hour))
	require.NoError(t, err, "a different request may take over an expired key")
	assert.Equal(t, "sha-b", reclaimed.RequestHash)
	assert.Empty(t, reclaimed.ResponseBody)
	assert.Equal(t, 1, keys.Len())
}

func TestIdempotencyKeys_MarkStoresResponseCopy(t *testing.T) {
	keys, clock := newKeys(t)
	ctx := context.Background()

	_, err := keys.CreateProcessing(ctx, "create-invoice-1", "sha", clock.now.Add(time.Hour))
	require.NoError(t, err)

	body := []byte(`{"error":{"type":"insufficient_stock"}}`)
	clock.now = clock.now.Add(time.Second)
	require.NoError(t, keys.MarkFailed(ctx, "create-invoice-1", body, 409))
	body[2] = 'X'

	got, err := keys.Get(ctx, "create-invoice-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusFailed, got.Status)
	assert.Equal(t, 409, got.ResponseStatus)
	assert.Equal(t, `{"error":{"type":"insufficient_stock"}}`, string(got.ResponseBody))
	assert.Equal(t, clock.now, got.UpdatedAt)

	got.ResponseBody[0] = 'X'
	again, err := keys.Get(ctx, "create-invoice-1")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), again.ResponseBody[0], "callers must not mutate stored responses")

	require.ErrorIs(t, keys.MarkDone(ctx, "missing", nil, 200), domain.ErrIdempotencyKeyNotFound)
}

func TestIdempotencyKeys_DeleteExpiredOldestFirst(t *testing.T) {
	keys, clock := newKeys(t)
	ctx := context.Background()

	for key, offset := range map[string]time.Duration{
		"oldest": -3 * time.Hour,
		"older":  -2 * time.Hour,
		"old":    -time.Hour,
		"alive":  time.Hour,
	} {
		_, err := keys.CreateProcessing(ctx, key, "sha", clock.now.Add(offset))
		require.NoError(t, err)
	}

	removed, err := keys.DeleteExpired(ctx, clock.now, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, keys.Len())

	clock.now = clock.now.Add(-90 * time.Minute)
	_, err = keys.Get(ctx, "old")
	require.NoError(t, err, "the youngest expired record survives a capped batch")

	removed, err = keys.DeleteExpired(ctx, time.Time{}, 0)
	require.NoError(t, err)
	assert.Zero(t, removed, "zero cutoff uses the repository clock")
}
