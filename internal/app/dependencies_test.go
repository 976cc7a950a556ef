package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/invoice"
)

func TestNewDependencies_MemoryWiring(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatalogFile = filepath.Join("..", "catalog", "testdata", "catalog.yaml")

	deps, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	require.NotNil(t, deps.Invoices)
	require.NotNil(t, deps.Ledger)
	require.NotNil(t, deps.Reports)
	require.NotNil(t, deps.Metrics)
	assert.Equal(t, domain.StockPolicyStrict, deps.Ledger.Policy())
	assert.Nil(t, deps.redis)

	ctx := context.Background()
	inv, err := deps.Invoices.Create(ctx, invoice.CreateRequest{
		CustomerID: "c-acme",
		Lines:      []domain.LineRequest{{ProductID: "p-keyboard", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("159.80")), inv.Total.String())

	top, err := deps.Reports.TopCustomers(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, top)
	assert.Equal(t, "c-acme", top[0].CustomerID)
}

func TestNewDependencies_MissingCatalogFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load catalog fixture")
}

func TestNewDependencies_InvalidCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - id: p-1\n    price: \"-1\"\n"), 0o600))

	cfg := DefaultConfig()
	cfg.CatalogFile = path

	_, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNewDependencies_RedisCacheIsLazy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	deps, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	require.NotNil(t, deps.redis)
	handler := newHealthHandler(deps)
	resp := handler.Evaluate(context.Background())
	assert.Contains(t, resp.Checks, "redis")
}

func TestNewDependencies_CacheDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReportCacheTTL = 0
	cfg.RedisAddr = "127.0.0.1:1"

	deps, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	assert.Nil(t, deps.redis)
}
