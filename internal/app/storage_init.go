package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
	"github.com/vladislavdragonenkov/ims/internal/storage/postgres"
)

// storageBundle собирает порты хранилища, выбранного драйвером.
type storageBundle struct {
	uow         domain.UnitOfWork
	invoices    domain.InvoiceReader
	movements   domain.MovementReader
	reports     domain.ReportReader
	catalog     domain.CatalogWriter
	outbox      domain.OutboxRepository
	timeline    domain.TimelineRepository
	idempotency domain.IdempotencyRepository
	// pg задан только для драйвера postgres.
	pg *postgres.Store
}

func (b *storageBundle) close(logger *log.Entry) {
	if b == nil || b.pg == nil {
		return
	}
	if err := b.pg.Close(); err != nil {
		logger.WithError(err).Warn("failed to close postgres store")
	}
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storageBundle, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return &storageBundle{
			uow:         store,
			invoices:    store,
			movements:   store,
			reports:     store,
			catalog:     store,
			outbox:      store.Outbox(),
			timeline:    store.Timeline(),
			idempotency: memory.NewIdempotencyRepository(),
		}, nil
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithMaxConns(cfg.PostgresMaxConns))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		metrics.RegisterDBStats(prometheus.DefaultRegisterer, store.DB(), "ims")
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		invoices := postgres.NewInvoiceRepository(store)
		logger.WithFields(log.Fields{
			"auto_migrate": cfg.PostgresAutoMigrate,
			"max_conns":    store.Pool().MaxOpenConns,
		}).Info("using postgres storage")
		return &storageBundle{
			uow:         store,
			invoices:    invoices,
			movements:   invoices,
			reports:     postgres.NewReportRepository(store),
			catalog:     postgres.NewCatalogRepository(store),
			outbox:      postgres.NewOutboxRepository(store),
			timeline:    postgres.NewTimelineRepository(store),
			idempotency: postgres.NewIdempotencyRepository(store),
			pg:          store,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
