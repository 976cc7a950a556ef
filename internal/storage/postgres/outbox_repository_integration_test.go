package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

func outboxEvent(id, invoiceID, eventType string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateInvoice,
		AggregateID:   invoiceID,
		EventType:     eventType,
		Payload:       []byte(`{"invoice_id":"` + invoiceID + `"}`),
	}
}

func TestOutboxRepository_EnqueueAndMark(t *testing.T) {
	store := migratedTestStore(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	generated, err := repo.Enqueue(ctx, outboxEvent("", "invoice-1", domain.EventInvoiceCreated))
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.False(t, generated.CreatedAt.IsZero())

	fixed, err := repo.Enqueue(ctx, outboxEvent("outbox-fixed-id", "invoice-2", domain.EventInvoiceDiscounted))
	require.NoError(t, err)
	assert.Equal(t, "outbox-fixed-id", fixed.ID)

	pending, err := repo.PullPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.JSONEq(t, `{"invoice_id":"invoice-1"}`, string(pending[0].Payload))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingCount)
	assert.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(ctx, generated.ID))
	require.NoError(t, repo.MarkFailed(ctx, fixed.ID))

	pending, err = repo.PullPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
	assert.True(t, stats.OldestPendingAt.IsZero())
}

func TestOutboxRepository_PullKeepsInsertOrder(t *testing.T) {
	store := migratedTestStore(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Одинаковый created_at: порядок выдачи задаёт только seq.
	for _, id := range []string{"evt-z", "evt-a", "evt-m"} {
		msg := outboxEvent(id, "invoice-1", domain.EventInvoiceLineCorrected)
		msg.CreatedAt = at
		_, err := repo.Enqueue(ctx, msg)
		require.NoError(t, err)
	}

	pending, err := repo.PullPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "evt-z", pending[0].ID)
	assert.Equal(t, "evt-a", pending[1].ID)
	assert.True(t, pending[0].CreatedAt.Equal(at))

	require.NoError(t, repo.MarkSent(ctx, "evt-z"))
	pending, err = repo.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "evt-a", pending[0].ID)
	assert.Equal(t, "evt-m", pending[1].ID)
}

func TestOutboxRepository_StatsOldestPending(t *testing.T) {
	store := migratedTestStore(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	late := outboxEvent("evt-late", "invoice-late", domain.EventInvoiceCreated)
	late.CreatedAt = base.Add(time.Minute)
	early := outboxEvent("evt-early", "invoice-early", domain.EventInvoiceCreated)
	early.CreatedAt = base

	_, err := repo.Enqueue(ctx, late)
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, early)
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingCount)
	assert.True(t, stats.OldestPendingAt.Equal(base), "got %s", stats.OldestPendingAt)

	require.NoError(t, repo.MarkSent(ctx, "evt-early"))
	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.OldestPendingAt.Equal(base.Add(time.Minute)))
}

func TestOutboxRepository_MarkMissing(t *testing.T) {
	repo := NewOutboxRepository(migratedTestStore(t))
	ctx := context.Background()

	assert.ErrorIs(t, repo.MarkSent(ctx, "missing-outbox"), domain.ErrOutboxMessageNotFound)
	err := repo.MarkFailed(ctx, "missing-outbox")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "missing-outbox")
}
