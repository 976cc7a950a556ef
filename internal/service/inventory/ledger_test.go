package inventory

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

func loggerForTests() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "inventory-test")
}

func newLedgerForTests(t *testing.T, stock int64, policy domain.StockPolicy) (*Ledger, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	require.NoError(t, store.UpsertProduct(context.Background(), domain.Product{
		ID:     "p-1",
		Name:   "Widget",
		Price:  decimal.RequireFromString("10.00"),
		Stock:  stock,
		Active: true,
	}))

	ledger := NewLedger(store, store, policy,
		WithLogger(loggerForTests()),
		WithMetrics(metrics.NewInvoiceMetricsWithRegisterer(prometheus.NewRegistry())),
	)
	return ledger, store
}

func TestNewLedgerDefaultsToStrict(t *testing.T) {
	ledger, _ := newLedgerForTests(t, 0, "")
	assert.Equal(t, domain.StockPolicyStrict, ledger.Policy())
}

func TestAdjustStockAppliesDeltaAndRecordsMovement(t *testing.T) {
	ledger, store := newLedgerForTests(t, 5, domain.StockPolicyStrict)
	ctx := context.Background()

	movement, err := ledger.AdjustStock(ctx, "p-1", -3, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), movement.StockAfter)
	assert.Equal(t, domain.MovementManual, movement.Reason)
	assert.NotEmpty(t, movement.ID)

	product, err := store.Product(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), product.Stock)

	history, err := ledger.Movements(ctx, "p-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(-3), history[0].Delta)

	pending, err := store.Outbox().PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.EventStockAdjusted, pending[0].EventType)
	assert.Equal(t, domain.AggregateProduct, pending[0].AggregateType)
}

func TestAdjustStockStrictRejectsNegativeStock(t *testing.T) {
	ledger, store := newLedgerForTests(t, 2, domain.StockPolicyStrict)
	ctx := context.Background()

	_, err := ledger.AdjustStock(ctx, "p-1", -3, "")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var stockErr *domain.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(2), stockErr.Available)
	assert.Equal(t, int64(3), stockErr.Requested)

	product, err := store.Product(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), product.Stock, "stock must not change on rejection")

	history, err := ledger.Movements(ctx, "p-1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAdjustStockPermissiveAllowsNegativeStock(t *testing.T) {
	ledger, _ := newLedgerForTests(t, 1, domain.StockPolicyStrict)

	movement, err := ledger.AdjustStock(context.Background(), "p-1", -4, domain.StockPolicyPermissive)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), movement.StockAfter)
}

func TestAdjustStockValidation(t *testing.T) {
	ledger, _ := newLedgerForTests(t, 1, domain.StockPolicyStrict)
	ctx := context.Background()

	_, err := ledger.AdjustStock(ctx, "p-1", 0, "")
	assert.ErrorIs(t, err, domain.ErrStockDeltaZero)

	_, err = ledger.AdjustStock(ctx, "", 1, "")
	assert.ErrorIs(t, err, domain.ErrProductIDRequired)

	_, err = ledger.AdjustStock(ctx, "missing", 1, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = ledger.AdjustStock(ctx, "p-1", math.MaxInt64, domain.StockPolicyPermissive)
	assert.ErrorIs(t, err, domain.ErrStockDeltaTooLarge)

	_, err = ledger.AdjustStock(ctx, "p-1", -domain.MaxStockDelta-1, domain.StockPolicyPermissive)
	assert.ErrorIs(t, err, domain.ErrStockDeltaTooLarge)
}

func TestApplyRejectsStockOverflow(t *testing.T) {
	tests := []struct {
		name  string
		stock int64
		delta int64
	}{
		{name: "sale from negative stock", stock: -2, delta: math.MinInt64 + 1},
		{name: "restock near max", stock: math.MaxInt64 - 1, delta: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, store := newLedgerForTests(t, tt.stock, domain.StockPolicyPermissive)
			ctx := context.Background()

			err := store.Do(ctx, func(tx domain.Tx) error {
				_, err := ledger.Apply(ctx, tx, domain.StockMovement{ProductID: "p-1", Delta: tt.delta, Reason: domain.MovementSale}, domain.StockPolicyStrict)
				return err
			})
			require.ErrorIs(t, err, domain.ErrStockOutOfRange)

			product, err := store.Product(ctx, "p-1")
			require.NoError(t, err)
			assert.Equal(t, tt.stock, product.Stock)
		})
	}
}

func TestApplyInsideCallerTransaction(t *testing.T) {
	ledger, store := newLedgerForTests(t, 3, domain.StockPolicyStrict)
	ctx := context.Background()

	err := store.Do(ctx, func(tx domain.Tx) error {
		if _, err := ledger.Apply(ctx, tx, domain.StockMovement{ProductID: "p-1", Delta: -2, Reason: domain.MovementSale}, ""); err != nil {
			return err
		}
		_, err := ledger.Apply(ctx, tx, domain.StockMovement{ProductID: "p-1", Delta: -2, Reason: domain.MovementSale}, "")
		return err
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	product, err := store.Product(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), product.Stock, "failed unit of work must roll back the first movement")
}
