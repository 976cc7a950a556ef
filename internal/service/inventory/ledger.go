package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
)

const defaultMovementsLimit = 50

// Options задаёт зависимости Ledger.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.InvoiceMetrics
	Clock   func() time.Time
}

// Option настраивает Ledger.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics включает учёт движений в Prometheus.
func WithMetrics(m *metrics.InvoiceMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// Ledger это единственная точка изменения остатков товаров.
// Каждое изменение пишет запись в журнал движений в той же транзакции.
type Ledger struct {
	uow       domain.UnitOfWork
	movements domain.MovementReader
	policy    domain.StockPolicy
	logger    *log.Entry
	metrics   *metrics.InvoiceMetrics
	now       func() time.Time
}

// NewLedger создаёт журнал остатков с политикой по умолчанию.
func NewLedger(uow domain.UnitOfWork, movements domain.MovementReader, policy domain.StockPolicy, options ...Option) *Ledger {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "inventory-ledger")
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if policy == "" {
		policy = domain.StockPolicyStrict
	}

	return &Ledger{
		uow:       uow,
		movements: movements,
		policy:    policy,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Clock,
	}
}

// Policy возвращает политику по умолчанию.
func (l *Ledger) Policy() domain.StockPolicy {
	return l.policy
}

// Apply изменяет остаток товара внутри уже открытой транзакции.
// Пустая policy означает политику по умолчанию. Метрики не трогаются:
// после фиксации транзакции вызывающий передаёт движения в RecordCommitted.
func (l *Ledger) Apply(ctx context.Context, tx domain.Tx, movement domain.StockMovement, policy domain.StockPolicy) (domain.StockMovement, error) {
	if movement.Delta == 0 {
		return domain.StockMovement{}, domain.ErrStockDeltaZero
	}
	if policy == "" {
		policy = l.policy
	}

	product, err := tx.ProductForUpdate(ctx, movement.ProductID)
	if err != nil {
		return domain.StockMovement{}, err
	}

	after, err := domain.StockAfter(product.Stock, movement.Delta)
	if err != nil {
		return domain.StockMovement{}, fmt.Errorf("product %s: %w", product.ID, err)
	}
	if !policy.Allows(after) {
		return domain.StockMovement{}, &domain.StockError{
			ProductID: product.ID,
			Available: product.Stock,
			Requested: -movement.Delta,
		}
	}

	if err := tx.SetStock(ctx, product.ID, after); err != nil {
		return domain.StockMovement{}, fmt.Errorf("set stock for %s: %w", product.ID, err)
	}

	if movement.ID == "" {
		movement.ID = uuid.NewString()
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = l.now()
	}
	movement.StockAfter = after
	if err := tx.AppendMovement(ctx, movement); err != nil {
		return domain.StockMovement{}, fmt.Errorf("append stock movement: %w", err)
	}

	return movement, nil
}

// RecordCommitted учитывает в метриках движения зафиксированной транзакции.
func (l *Ledger) RecordCommitted(movements ...domain.StockMovement) {
	if l.metrics == nil {
		return
	}
	for _, movement := range movements {
		l.metrics.RecordStockAdjustment(string(movement.Reason))
	}
}

// AdjustStock вручную изменяет остаток в отдельной транзакции и публикует stock.adjusted.
func (l *Ledger) AdjustStock(ctx context.Context, productID string, delta int64, policy domain.StockPolicy) (domain.StockMovement, error) {
	if productID == "" {
		return domain.StockMovement{}, domain.ErrProductIDRequired
	}
	if err := domain.CheckStockDelta(delta); err != nil {
		return domain.StockMovement{}, err
	}

	var applied domain.StockMovement
	err := l.uow.Do(ctx, func(tx domain.Tx) error {
		var err error
		applied, err = l.Apply(ctx, tx, domain.StockMovement{
			ProductID: productID,
			Delta:     delta,
			Reason:    domain.MovementManual,
		}, policy)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(domain.StockEvent{
			MovementID: applied.ID,
			ProductID:  applied.ProductID,
			Delta:      applied.Delta,
			Reason:     applied.Reason,
			StockAfter: applied.StockAfter,
			Occurred:   applied.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal stock event: %w", err)
		}
		return tx.EnqueueOutbox(ctx, domain.OutboxMessage{
			AggregateType: domain.AggregateProduct,
			AggregateID:   productID,
			EventType:     domain.EventStockAdjusted,
			Payload:       payload,
		})
	})
	if err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"product_id": productID,
			"delta":      delta,
		}).Warn("stock adjustment rejected")
		return domain.StockMovement{}, err
	}

	l.RecordCommitted(applied)
	l.logger.WithFields(log.Fields{
		"product_id":  productID,
		"delta":       delta,
		"stock_after": applied.StockAfter,
	}).Info("stock adjusted")
	return applied, nil
}

// Movements возвращает журнал движений товара от новых к старым.
func (l *Ledger) Movements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	if productID == "" {
		return nil, domain.ErrProductIDRequired
	}
	if limit <= 0 {
		limit = defaultMovementsLimit
	}
	return l.movements.Movements(ctx, productID, limit)
}
