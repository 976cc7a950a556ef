package outbox

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 30 * time.Second
)

// Исходы публикации для метрик.
const (
	resultSent         = "sent"
	resultRetry        = "retry"
	resultDeadLettered = "dead_lettered"
	resultDLQFailed    = "dlq_failed"
	resultDeferred     = "deferred"
)

// WorkerOptions задаёт параметры ретранслятора.
type WorkerOptions struct {
	Logger         *log.Entry
	DLQPublisher   domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	Clock          func() time.Time
	Metrics        *metrics.OutboxMetrics
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) { opts.Logger = logger }
}

// WithDLQPublisher задаёт получателя событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(opts *WorkerOptions) { opts.DLQPublisher = publisher }
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) { opts.PollInterval = interval }
}

// WithBatchSize задаёт число событий за цикл.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) { opts.BatchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) { opts.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт первую паузу экспоненциального backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WorkerOptions) { opts.RetryBaseDelay = delay }
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(opts *WorkerOptions) { opts.Clock = clock }
}

// WithMetrics подключает prometheus-метрики.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(opts *WorkerOptions) { opts.Metrics = m }
}

// BatchResult итог одного цикла ретрансляции.
type BatchResult struct {
	Pulled       int
	Sent         int
	DeadLettered int
	// Deferred события остались pending, потому что более раннее событие
	// того же счёта или товара не опубликовано в этом цикле.
	Deferred int
}

// Worker публикует события счетов и остатков из outbox в брокер.
// События одного агрегата уходят строго в порядке записи.
type Worker struct {
	repo           domain.OutboxRepository
	publisher      domain.OutboxPublisher
	dlqPublisher   domain.OutboxPublisher
	logger         *log.Entry
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	now            func() time.Time
	metrics        *metrics.OutboxMetrics
}

// NewWorker создаёт ретранслятор.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-worker")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Worker{
		repo:           repo,
		publisher:      publisher,
		dlqPublisher:   opts.DLQPublisher,
		logger:         logger,
		pollInterval:   opts.PollInterval,
		batchSize:      opts.BatchSize,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		now:            func() time.Time { return clock().UTC() },
		metrics:        opts.Metrics,
	}
}

// Run ретранслирует события до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один цикл: забирает pending-события и публикует их.
// Событие, исчерпавшее попытки, уходит в DLQ и помечается failed,
// а остальные события его агрегата откладываются до следующего цикла.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var result BatchResult
	if ctx.Err() != nil {
		return result
	}

	events, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return result
	}
	result.Pulled = len(events)

	blocked := make(map[string]bool)
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}

		aggregate := event.AggregateType + "/" + event.AggregateID
		if blocked[aggregate] {
			result.Deferred++
			w.metrics.RecordPublish(event.EventType, resultDeferred)
			continue
		}

		attempts, err := w.publishWithRetry(ctx, event)
		if err == nil {
			result.Sent++
			if markErr := w.repo.MarkSent(ctx, event.ID); markErr != nil {
				w.logger.WithError(markErr).WithField("outbox_id", event.ID).Warn("failed to mark outbox as sent")
			}
			continue
		}

		blocked[aggregate] = true
		if ctx.Err() != nil {
			// Остановка посреди retry не делает событие мёртвым.
			break
		}
		w.deadLetter(ctx, event, err, attempts)
		result.DeadLettered++
	}

	w.refreshBacklog(ctx)
	if result.DeadLettered > 0 || result.Deferred > 0 {
		w.logger.WithFields(log.Fields{
			"pulled":        result.Pulled,
			"sent":          result.Sent,
			"dead_lettered": result.DeadLettered,
			"deferred":      result.Deferred,
		}).Warn("outbox batch finished with undelivered events")
	}
	return result
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.publisher.Publish(ctx, event)
		if err == nil {
			w.metrics.RecordPublish(event.EventType, resultSent)
			return attempt, nil
		}
		lastErr = err
		w.metrics.RecordPublish(event.EventType, resultRetry)

		if attempt == w.maxAttempts {
			break
		}
		if delay := w.retryBackoff(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return w.maxAttempts, fmt.Errorf("publish %s %s after %d attempts: %w", event.EventType, event.AggregateID, w.maxAttempts, lastErr)
}

// retryBackoff удваивает базовую паузу с каждой попыткой, не выше maxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}
	delay := w.retryBaseDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func (w *Worker) deadLetter(ctx context.Context, event domain.OutboxMessage, publishErr error, attempts int) {
	entry := w.logger.WithError(publishErr).WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	})
	entry.Error("outbox event exhausted publish attempts")
	w.metrics.RecordPublish(event.EventType, resultDeadLettered)

	if w.dlqPublisher != nil {
		msg, err := NewDeadLetter(event, publishErr, attempts, w.now()).envelope()
		if err == nil {
			err = w.dlqPublisher.Publish(ctx, msg)
		}
		if err != nil {
			entry.WithField("dlq_error", err.Error()).Warn("failed to publish to DLQ")
			w.metrics.RecordPublish(event.EventType, resultDLQFailed)
		}
	}
	if err := w.repo.MarkFailed(ctx, event.ID); err != nil {
		entry.WithField("mark_error", err.Error()).Warn("failed to mark outbox as failed")
	}
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	var age time.Duration
	if !stats.OldestPendingAt.IsZero() {
		age = w.now().Sub(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}

// LogPublisher пишет события в лог, когда Kafka не настроена.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт publisher, который только логирует события.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":      event.ID,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"event_type":     event.EventType,
	}).Info("outbox event published")
	return nil
}

var _ domain.OutboxPublisher = (*LogPublisher)(nil)
