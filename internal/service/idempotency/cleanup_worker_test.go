package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

var _ domain.IdempotencyRepository = (*scriptedRepo)(nil)

// scriptedRepo отдаёт заранее заданные результаты DeleteExpired по порядку.
type scriptedRepo struct {
	domain.IdempotencyRepository

	mu      sync.Mutex
	results []int
	errs    []error
	cutoffs []time.Time
}

func (r *scriptedRepo) DeleteExpired(_ context.Context, before time.Time, _ int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cutoffs = append(r.cutoffs, before)
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	if len(r.results) == 0 {
		return 0, nil
	}
	n := r.results[0]
	r.results = r.results[1:]
	return n, nil
}

func (r *scriptedRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cutoffs)
}

// manualClock управляемые часы для проверки свежести.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCleanupWorker_Sweep(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		results    []int
		errs       []error
		maxBatches int
		want       SweepResult
		wantErr    bool
	}{
		{name: "drains until short batch", results: []int{2, 2, 1}, want: SweepResult{Deleted: 5, Batches: 3}},
		{name: "empty store", want: SweepResult{Batches: 1}},
		{name: "capped by max batches", results: []int{2, 2, 2, 2}, maxBatches: 2, want: SweepResult{Deleted: 4, Batches: 2, Truncated: true}},
		{name: "error keeps partial result", results: []int{2}, errs: []error{nil, errors.New("db down")}, want: SweepResult{Deleted: 2, Batches: 1}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
			repo := &scriptedRepo{results: tc.results, errs: tc.errs}
			worker := NewCleanupWorker(repo,
				WithBatchSize(2),
				WithMaxBatches(tc.maxBatches),
				WithClock(func() time.Time { return now }),
			)

			got, err := worker.Sweep(context.Background())
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			tc.want.Before = now
			assert.Equal(t, tc.want, got)
			for _, cutoff := range repo.cutoffs {
				assert.True(t, cutoff.Equal(now), "every batch uses the same cutoff")
			}
		})
	}
}

func TestCleanupWorker_SweepStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	repo := &scriptedRepo{results: []int{2, 2}}
	worker := NewCleanupWorker(repo, WithBatchSize(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := worker.Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.calls())
}

func TestCleanupWorker_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &scriptedRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool { return repo.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestCleanupWorker_RunWithoutRepositoryReturns(t *testing.T) {
	t.Parallel()

	worker := NewCleanupWorker(nil)
	worker.Run(context.Background())
	require.NoError(t, worker.Ping(context.Background()))
}

func TestCleanupWorker_PingReportsStaleness(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	repo := &scriptedRepo{errs: []error{nil, errors.New("db down"), errors.New("db down")}}
	worker := NewCleanupWorker(repo,
		WithInterval(time.Minute),
		WithClock(clock.Now),
		WithMetrics(metrics.NewCleanupMetricsWithRegisterer(prometheus.NewRegistry())),
	)
	ctx := context.Background()

	require.NoError(t, worker.Ping(ctx), "worker that never ran is healthy")

	worker.mu.Lock()
	worker.startedAt = clock.Now()
	worker.mu.Unlock()

	worker.runOnce(ctx)
	require.NoError(t, worker.Ping(ctx))

	clock.Advance(2 * time.Minute)
	worker.runOnce(ctx)
	require.NoError(t, worker.Ping(ctx), "one failed sweep is tolerated")

	clock.Advance(2 * time.Minute)
	worker.runOnce(ctx)
	err := worker.Ping(ctx)
	require.ErrorIs(t, err, ErrCleanupStale)
	assert.Contains(t, err.Error(), "db down")

	clock.Advance(time.Minute)
	worker.runOnce(ctx)
	require.NoError(t, worker.Ping(ctx), "successful sweep clears staleness")
}

func TestCleanupWorker_RemovesOnlyExpiredInvoiceKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := memory.NewIdempotencyRepository(memory.WithIdempotencyClock(func() time.Time { return now }))

	for i, ttl := range []time.Duration{-2 * time.Hour, -time.Minute, time.Hour} {
		key := fmt.Sprintf("create-invoice-%d", i)
		_, err := repo.CreateProcessing(ctx, key, "hash", now.Add(ttl))
		require.NoError(t, err, key)
	}

	worker := NewCleanupWorker(repo, WithBatchSize(1), WithClock(func() time.Time { return now }))
	result, err := worker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 3, result.Batches)

	_, err = repo.Get(ctx, "create-invoice-2")
	require.NoError(t, err, "active key must survive cleanup")
	_, err = repo.Get(ctx, "create-invoice-0")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}
