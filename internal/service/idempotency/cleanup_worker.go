package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	// staleAfterIntervals задаёт, сколько пропущенных интервалов терпит Ping.
	staleAfterIntervals = 3
)

// ErrCleanupStale возвращается Ping, когда очистка давно не завершалась успешно.
var ErrCleanupStale = errors.New("idempotency cleanup is stale")

// SweepResult описывает один проход очистки.
type SweepResult struct {
	Before  time.Time
	Deleted int
	Batches int
	// Truncated означает, что проход упёрся в лимит батчей и ключи ещё остались.
	Truncated bool
}

// CleanupOptions задает параметры воркера очистки ключей создания счетов.
type CleanupOptions struct {
	Logger     *log.Entry
	Interval   time.Duration
	BatchSize  int
	MaxBatches int
	Clock      func() time.Time
	Metrics    *metrics.CleanupMetrics
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupOptions)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между проходами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задает число ключей, удаляемых одним запросом.
func WithBatchSize(batchSize int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.BatchSize = batchSize
	}
}

// WithMaxBatches ограничивает число батчей за проход. Ноль снимает ограничение.
func WithMaxBatches(maxBatches int) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.MaxBatches = maxBatches
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Clock = clock
	}
}

// WithMetrics подключает prometheus-метрики очистки.
func WithMetrics(m *metrics.CleanupMetrics) CleanupOption {
	return func(opts *CleanupOptions) {
		opts.Metrics = m
	}
}

// CleanupWorker периодически удаляет просроченные ключи идемпотентности
// и сообщает о своей свежести через Ping.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
	maxBatches int
	now        func() time.Time
	metrics    *metrics.CleanupMetrics

	mu          sync.Mutex
	startedAt   time.Time
	lastSuccess time.Time
	lastErr     error
}

// NewCleanupWorker создает воркер очистки.
func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	opts := CleanupOptions{
		Interval:  defaultCleanupInterval,
		BatchSize: defaultCleanupBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "idempotency-cleanup")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.MaxBatches < 0 {
		opts.MaxBatches = 0
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &CleanupWorker{
		repo:       repo,
		logger:     logger,
		interval:   opts.Interval,
		batchSize:  opts.BatchSize,
		maxBatches: opts.MaxBatches,
		now:        func() time.Time { return clock().UTC() },
		metrics:    opts.Metrics,
	}
}

// Run выполняет проход сразу и затем раз в интервал до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup is disabled: no repository")
		return
	}

	w.mu.Lock()
	w.startedAt = w.now()
	w.mu.Unlock()

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context) {
	result, err := w.Sweep(ctx)
	if errors.Is(err, context.Canceled) {
		return
	}

	w.mu.Lock()
	w.lastErr = err
	if err == nil {
		w.lastSuccess = result.Before
	}
	w.mu.Unlock()

	if err != nil {
		w.metrics.RecordSweepError()
		w.logger.WithError(err).WithField("deleted", result.Deleted).Warn("idempotency sweep failed")
		return
	}

	w.metrics.RecordSweep(result.Deleted, result.Truncated, result.Before)
	entry := w.logger.WithFields(log.Fields{
		"deleted": result.Deleted,
		"batches": result.Batches,
	})
	switch {
	case result.Truncated:
		entry.Warn("idempotency sweep hit batch limit, backlog remains")
	case result.Deleted > 0:
		entry.Info("idempotency sweep completed")
	}
}

// Sweep удаляет ключи с истёкшим сроком на текущий момент.
// Частичный результат возвращается вместе с ошибкой.
func (w *CleanupWorker) Sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{Before: w.now()}
	for w.maxBatches == 0 || result.Batches < w.maxBatches {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		deleted, err := w.repo.DeleteExpired(ctx, result.Before, w.batchSize)
		if err != nil {
			return result, fmt.Errorf("delete expired idempotency keys: %w", err)
		}
		result.Batches++
		result.Deleted += deleted

		if deleted < w.batchSize {
			return result, nil
		}
	}
	result.Truncated = true
	return result, nil
}

// Ping сообщает об ошибке, если успешного прохода не было дольше
// нескольких интервалов. До первого запуска Run считается здоровым.
func (w *CleanupWorker) Ping(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.startedAt.IsZero() {
		return nil
	}
	reference := w.lastSuccess
	if reference.IsZero() {
		reference = w.startedAt
	}
	if age := w.now().Sub(reference); age > staleAfterIntervals*w.interval {
		if w.lastErr != nil {
			return fmt.Errorf("%w: last success %s ago: %v", ErrCleanupStale, age.Round(time.Second), w.lastErr)
		}
		return fmt.Errorf("%w: last success %s ago", ErrCleanupStale, age.Round(time.Second))
	}
	return nil
}
