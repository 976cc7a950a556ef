package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// pgClock позволяет сдвигать время репозитория относительно базы.
type pgClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *pgClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *pgClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func idempotencyTestRepo(t *testing.T) (domain.IdempotencyRepository, *pgClock) {
	t.Helper()
	store := migratedTestStore(t)
	clock := &pgClock{now: time.Now().UTC().Truncate(time.Microsecond)}
	return NewIdempotencyRepository(store, WithIdempotencyClock(clock.Now)), clock
}

func TestIdempotencyRepository_PostgresCreateInvoiceReplay(t *testing.T) {
	repo, clock := idempotencyTestRepo(t)
	ctx := context.Background()
	ttl := clock.now.Add(2 * time.Hour)

	created, err := repo.CreateProcessing(ctx, " create-invoice-1 ", "sha-a", ttl)
	require.NoError(t, err)
	assert.Equal(t, "create-invoice-1", created.Key)
	assert.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	processing, err := repo.CreateProcessing(ctx, "create-invoice-1", "sha-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	assert.Equal(t, domain.IdempotencyStatusProcessing, processing.Status)

	require.NoError(t, repo.MarkDone(ctx, "create-invoice-1", []byte(`{"id":"inv-1","total":"30.00"}`), 201))

	done, err := repo.CreateProcessing(ctx, "create-invoice-1", "sha-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	assert.Equal(t, domain.IdempotencyStatusDone, done.Status)
	assert.Equal(t, 201, done.ResponseStatus)
	assert.JSONEq(t, `{"id":"inv-1","total":"30.00"}`, string(done.ResponseBody))
	assert.True(t, done.TTLAt.Equal(ttl), "ttl mismatch: expected %s, got %s", ttl, done.TTLAt)

	_, err = repo.CreateProcessing(ctx, "create-invoice-1", "sha-b", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
}

func TestIdempotencyRepository_PostgresFailedResponse(t *testing.T) {
	repo, clock := idempotencyTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "create-invoice-2", "sha", clock.now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, "create-invoice-2", []byte(`{"error":{"type":"insufficient_stock"}}`), 409))

	got, err := repo.Get(ctx, "create-invoice-2")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusFailed, got.Status)
	assert.Equal(t, 409, got.ResponseStatus)

	require.ErrorIs(t, repo.MarkDone(ctx, "create-invoice-missing", nil, 201), domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(ctx, "bad\nkey")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyInvalid)
}

func TestIdempotencyRepository_PostgresExpiredKeyIsReclaimed(t *testing.T) {
	repo, clock := idempotencyTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "create-invoice-3", "sha-a", clock.now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone(ctx, "create-invoice-3", []byte(`{"id":"inv-3"}`), 201))

	clock.advance(2 * time.Minute)

	_, err = repo.Get(ctx, "create-invoice-3")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	reclaimed, err := repo.CreateProcessing(ctx, "create-invoice-3", "sha-b", clock.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "sha-b", reclaimed.RequestHash)

	got, err := repo.Get(ctx, "create-invoice-3")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusProcessing, got.Status)
	assert.Empty(t, got.ResponseBody, "reclaimed key must not replay the old invoice")
	assert.Zero(t, got.ResponseStatus)
}

func TestIdempotencyRepository_PostgresDeleteExpiredInBatches(t *testing.T) {
	repo, clock := idempotencyTestRepo(t)
	ctx := context.Background()

	for i, offset := range []time.Duration{-5 * time.Minute, -4 * time.Minute, -3 * time.Minute, time.Hour} {
		_, err := repo.CreateProcessing(ctx, "create-invoice-batch-"+string(rune('a'+i)), "sha", clock.now.Add(offset))
		require.NoError(t, err)
	}

	removed, err := repo.DeleteExpired(ctx, clock.now, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = repo.DeleteExpired(ctx, time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "zero cutoff falls back to the repository clock")

	_, err = repo.Get(ctx, "create-invoice-batch-d")
	require.NoError(t, err)
}
