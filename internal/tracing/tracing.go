// Package tracing настраивает OpenTelemetry для сервиса.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const exporterTimeout = 5 * time.Second

// Config описывает экспорт трейсов. Пустой Endpoint отключает экспорт.
type Config struct {
	Endpoint    string
	ServiceName string
	Version     string
	// SampleRatio в диапазоне (0, 1]; 0 означает 1.
	SampleRatio float64
}

// ShutdownFunc сбрасывает буферы и закрывает экспортёр.
type ShutdownFunc func(ctx context.Context) error

// Setup устанавливает глобальный TracerProvider и W3C propagator.
func Setup(ctx context.Context, cfg Config, logger *log.Entry) (ShutdownFunc, error) {
	if logger == nil {
		logger = log.WithField("component", "tracing")
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		logger.Debug("otlp endpoint is not set, tracing export disabled")
		return func(context.Context) error { return nil }, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, exporterTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(dialCtx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	tp := NewProvider(res, cfg.SampleRatio, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	logger.WithField("endpoint", cfg.Endpoint).Info("tracing initialized")
	return tp.Shutdown, nil
}

// NewProvider собирает TracerProvider с parent-based сэмплером.
func NewProvider(res *resource.Resource, ratio float64, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	opts = append(opts, sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))))
	if res != nil {
		opts = append(opts, sdktrace.WithResource(res))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// GinMiddleware открывает серверный span на каждый HTTP-запрос.
// Имя span берётся из шаблона маршрута, чтобы не плодить кардинальность.
func GinMiddleware(tracer trace.Tracer) gin.HandlerFunc {
	if tracer == nil {
		tracer = otel.Tracer("github.com/vladislavdragonenkov/ims/internal/tracing")
	}

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last().Err)
		}
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("http status %d", status))
		}
	}
}
