package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/vladislavdragonenkov/ims/internal/cache"
	"github.com/vladislavdragonenkov/ims/internal/catalog"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/service/inventory"
	"github.com/vladislavdragonenkov/ims/internal/service/invoice"
	"github.com/vladislavdragonenkov/ims/internal/service/reporting"
)

const tracerName = "github.com/vladislavdragonenkov/ims"

// Dependencies содержит собранные сервисы приложения.
type Dependencies struct {
	Invoices *invoice.Service
	Ledger   *inventory.Ledger
	Reports  *reporting.Engine
	Metrics  *metrics.InvoiceMetrics
	Logger   *log.Entry

	storage *storageBundle
	redis   *cache.Redis
}

// NewDependencies открывает хранилище и кэш и собирает доменные сервисы.
// Close освобождает открытые подключения.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	storage, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Logger: logger, storage: storage}

	if cfg.CatalogFile != "" {
		if err := loadCatalog(ctx, cfg.CatalogFile, storage, logger); err != nil {
			deps.Close()
			return nil, err
		}
	}

	reportCache, err := deps.initReportCache(cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}

	tracer := otel.Tracer(tracerName)
	deps.Metrics = metrics.NewInvoiceMetrics()
	deps.Ledger = inventory.NewLedger(storage.uow, storage.movements, cfg.StockPolicy,
		inventory.WithLogger(logger.WithField("component", "inventory")),
		inventory.WithMetrics(deps.Metrics),
	)
	deps.Invoices = invoice.NewService(storage.uow, storage.invoices, deps.Ledger,
		invoice.WithLogger(logger.WithField("component", "invoice")),
		invoice.WithMetrics(deps.Metrics),
		invoice.WithTracer(tracer),
		invoice.WithTimeline(storage.timeline),
	)
	reportOpts := []reporting.Option{
		reporting.WithLogger(logger.WithField("component", "reporting")),
		reporting.WithTopCustomersLimit(cfg.TopCustomersLimit),
	}
	if reportCache != nil {
		reportOpts = append(reportOpts, reporting.WithCache(reportCache, cfg.ReportCacheTTL))
	}
	deps.Reports = reporting.NewEngine(storage.reports, reportOpts...)

	return deps, nil
}

// initReportCache выбирает Redis при заданном адресе, иначе in-memory кэш.
// Нулевой TTL отключает кэширование отчётов.
func (d *Dependencies) initReportCache(cfg Config) (cache.Store, error) {
	if cfg.ReportCacheTTL <= 0 {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), nil
	}

	redisCache, err := cache.NewRedis(cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis cache: %w", err)
	}
	d.redis = redisCache
	d.Logger.WithField("addr", cfg.RedisAddr).Info("report cache uses redis")
	return redisCache, nil
}

// Close закрывает хранилище и Redis.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	d.storage.close(d.Logger)
}

func loadCatalog(ctx context.Context, path string, storage *storageBundle, logger *log.Entry) error {
	fixture, err := catalog.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load catalog fixture: %w", err)
	}
	summary, err := fixture.Apply(ctx, storage.catalog)
	if err != nil {
		return fmt.Errorf("apply catalog fixture: %w", err)
	}
	logger.WithFields(log.Fields{
		"file":      path,
		"products":  summary.Products,
		"customers": summary.Customers,
		"employees": summary.Employees,
	}).Info("catalog fixture loaded")
	return nil
}
