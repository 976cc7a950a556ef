package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/service/inventory"
)

const tracerName = "github.com/vladislavdragonenkov/ims/internal/service/invoice"

// Options задаёт необязательные зависимости Service.
type Options struct {
	Logger   *log.Entry
	Metrics  *metrics.InvoiceMetrics
	Tracer   trace.Tracer
	Timeline domain.TimelineRepository
	Clock    func() time.Time
	IDs      func() string
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics включает Prometheus-метрики.
func WithMetrics(m *metrics.InvoiceMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithTracer задаёт tracer; по умолчанию используется глобальный provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *Options) {
		opts.Tracer = tracer
	}
}

// WithTimeline подключает чтение истории счёта.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(opts *Options) {
		opts.Timeline = timeline
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// WithIDGenerator подменяет генератор идентификаторов счетов и позиций.
func WithIDGenerator(next func() string) Option {
	return func(opts *Options) {
		opts.IDs = next
	}
}

// Service собирает счета и выполняет их изменения.
// Все записи идут через единицу работы: счёт, позиции, движения остатков,
// outbox и timeline фиксируются вместе или не фиксируются вовсе.
type Service struct {
	uow      domain.UnitOfWork
	invoices domain.InvoiceReader
	ledger   *inventory.Ledger
	timeline domain.TimelineRepository

	logger  *log.Entry
	metrics *metrics.InvoiceMetrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// NewService создаёт сервис счетов.
func NewService(uow domain.UnitOfWork, invoices domain.InvoiceReader, ledger *inventory.Ledger, options ...Option) *Service {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "invoice-service")
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.IDs == nil {
		opts.IDs = uuid.NewString
	}

	return &Service{
		uow:      uow,
		invoices: invoices,
		ledger:   ledger,
		timeline: opts.Timeline,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		now:      opts.Clock,
		newID:    opts.IDs,
	}
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "invoice."+name)
}

// finish закрывает span и учитывает ошибку в метриках.
func (s *Service) finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.metrics != nil {
			s.metrics.RecordFailure(string(domain.KindOf(err)))
		}
	}
	span.End()
}

func (s *Service) enqueueInvoiceEvent(ctx context.Context, tx domain.Tx, eventType string, event domain.InvoiceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return tx.EnqueueOutbox(ctx, domain.OutboxMessage{
		ID:            s.newID(),
		AggregateType: domain.AggregateInvoice,
		AggregateID:   event.InvoiceID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     event.Occurred,
	})
}

func (s *Service) appendTimeline(ctx context.Context, tx domain.Tx, invoiceID, eventType, reason string, occurred time.Time) error {
	return tx.AppendTimeline(ctx, domain.TimelineEvent{
		InvoiceID: invoiceID,
		Type:      eventType,
		Reason:    reason,
		Occurred:  occurred,
	})
}

// Timeline возвращает историю счёта. История сохраняется и после аннулирования.
func (s *Service) Timeline(ctx context.Context, invoiceID string) ([]domain.TimelineEvent, error) {
	if invoiceID == "" {
		return nil, domain.ErrInvoiceIDRequired
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.timeline.List(ctx, invoiceID)
}

// AuditTrail отдаёт историю для чтения снаружи: у аннулированного счёта
// остаются только события, и они возвращаются. NotFound означает, что нет
// ни счёта, ни его истории.
func (s *Service) AuditTrail(ctx context.Context, invoiceID string) ([]domain.TimelineEvent, error) {
	events, err := s.Timeline(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if len(events) > 0 {
		return events, nil
	}
	if _, err := s.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	return events, nil
}
