package reporting

import (
	"cmp"
	"context"
	"encoding/json"
	"iter"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/cache"
	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// DefaultTopCustomers это размер рейтинга клиентов по умолчанию.
const DefaultTopCustomers = 5

// Options задаёт необязательные параметры Engine.
type Options struct {
	Logger       *log.Entry
	Cache        cache.Store
	CacheTTL     time.Duration
	TopCustomers int
}

// Option настраивает Engine.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithCache включает кэширование отчётов; данные могут отставать не более чем на ttl.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(opts *Options) {
		opts.Cache = store
		opts.CacheTTL = ttl
	}
}

// WithTopCustomersLimit меняет размер рейтинга клиентов по умолчанию.
func WithTopCustomersLimit(limit int) Option {
	return func(opts *Options) {
		opts.TopCustomers = limit
	}
}

// Engine строит отчёты только на чтение.
type Engine struct {
	reader     domain.ReportReader
	logger     *log.Entry
	cache      cache.Store
	ttl        time.Duration
	topDefault int
}

// NewEngine создаёт движок отчётов.
func NewEngine(reader domain.ReportReader, options ...Option) *Engine {
	opts := Options{TopCustomers: DefaultTopCustomers}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "reporting")
	}
	if opts.TopCustomers <= 0 {
		opts.TopCustomers = DefaultTopCustomers
	}

	return &Engine{
		reader:     reader,
		logger:     opts.Logger,
		cache:      opts.Cache,
		ttl:        opts.CacheTTL,
		topDefault: opts.TopCustomers,
	}
}

// TopCustomers возвращает клиентов с наибольшим числом счетов.
// Равные значения упорядочены по id; limit <= 0 означает размер по умолчанию.
func (e *Engine) TopCustomers(ctx context.Context, limit int) ([]domain.CustomerInvoiceCount, error) {
	if limit <= 0 {
		limit = e.topDefault
	}
	rows, err := cached(ctx, e, cache.Key("report", "customers"), e.reader.InvoiceCountsByCustomer)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(rows, func(a, b domain.CustomerInvoiceCount) int {
		return cmp.Or(cmp.Compare(b.InvoiceCount, a.InvoiceCount), cmp.Compare(a.CustomerID, b.CustomerID))
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// ProductRanking возвращает все проданные товары по сумме проданных единиц.
func (e *Engine) ProductRanking(ctx context.Context, direction domain.SortDirection) ([]domain.ProductSales, error) {
	if direction == "" {
		direction = domain.SortDesc
	}
	if direction != domain.SortAsc && direction != domain.SortDesc {
		return nil, domain.ErrSortDirectionInvalid
	}

	rows, err := cached(ctx, e, cache.Key("report", "product-sales"), e.reader.UnitsSoldByProduct)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(rows, func(a, b domain.ProductSales) int {
		byUnits := cmp.Compare(a.UnitsSold, b.UnitsSold)
		if direction == domain.SortDesc {
			byUnits = -byUnits
		}
		return cmp.Or(byUnits, cmp.Compare(a.ProductID, b.ProductID))
	})
	return rows, nil
}

// ProductRankingSeq это ленивый вариант ProductRanking. Каждый обход заново читает данные.
func (e *Engine) ProductRankingSeq(ctx context.Context, direction domain.SortDirection) iter.Seq2[domain.ProductSales, error] {
	return func(yield func(domain.ProductSales, error) bool) {
		rows, err := e.ProductRanking(ctx, direction)
		if err != nil {
			yield(domain.ProductSales{}, err)
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

// LowStock возвращает все товары по возрастанию остатка.
func (e *Engine) LowStock(ctx context.Context) ([]domain.ProductStock, error) {
	rows, err := cached(ctx, e, cache.Key("report", "low-stock"), e.reader.ProductStocks)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(rows, func(a, b domain.ProductStock) int {
		return cmp.Or(cmp.Compare(a.Stock, b.Stock), cmp.Compare(a.ProductID, b.ProductID))
	})
	return rows, nil
}

// SalespersonRanking возвращает продавцов по числу оформленных счетов.
// Счета без продавца не учитываются.
func (e *Engine) SalespersonRanking(ctx context.Context) ([]domain.EmployeeInvoiceCount, error) {
	rows, err := cached(ctx, e, cache.Key("report", "salespeople"), e.reader.InvoiceCountsByEmployee)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(rows, func(a, b domain.EmployeeInvoiceCount) int {
		return cmp.Or(cmp.Compare(b.InvoiceCount, a.InvoiceCount), cmp.Compare(a.EmployeeID, b.EmployeeID))
	})
	return rows, nil
}

// cached читает агрегат через кэш. Ошибки кэша не ломают отчёт.
func cached[T any](ctx context.Context, e *Engine, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if e.cache != nil {
		raw, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			e.logger.WithError(err).WithField("key", key).Warn("report cache read failed")
		case ok:
			var rows []T
			if err := json.Unmarshal(raw, &rows); err == nil {
				return rows, nil
			}
			e.logger.WithField("key", key).Warn("report cache entry is corrupted")
		}
	}

	rows, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}

	if e.cache != nil {
		raw, err := json.Marshal(rows)
		if err == nil {
			err = e.cache.Set(ctx, key, raw, e.ttl)
		}
		if err != nil {
			e.logger.WithError(err).WithField("key", key).Warn("report cache write failed")
		}
	}
	return rows, nil
}
