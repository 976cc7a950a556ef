// Package app собирает сервис счетов: хранилище, доменные сервисы, транспорты и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	invoicingv1 "github.com/vladislavdragonenkov/ims/api/invoicing/v1"
	healthcheck "github.com/vladislavdragonenkov/ims/internal/health"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/ims/internal/service/grpc"
	"github.com/vladislavdragonenkov/ims/internal/service/httpapi"
	"github.com/vladislavdragonenkov/ims/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ims/internal/service/outbox"
	"github.com/vladislavdragonenkov/ims/internal/tracing"
	"github.com/vladislavdragonenkov/ims/internal/version"
)

const serviceName = "ims"

// Run запускает сервис и блокируется до отмены ctx или ошибки gRPC-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	metrics.RegisterBuildInfo(prometheus.DefaultRegisterer, version.Current())

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Version:     version.GetVersion(),
		SampleRatio: cfg.TraceSampleRatio,
	}, logger.WithField("component", "tracing"))
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer shutdownWithTimeout(shutdownTracing, cfg.ShutdownTimeout, logger)

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Без Kafka outbox публикуется в лог.
	sink := openEventSink(cfg.KafkaBrokers, logger)
	defer sink.close(logger)

	cleanupWorker := newCleanupWorker(cfg, deps, logger)
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	workersDone := startWorkers(workerCtx, cfg, deps, sink, cleanupWorker, logger)
	defer shutdownWorkers(cancelWorkers, workersDone, logger)

	healthHandler := newHealthHandler(deps)
	healthHandler.Register("idempotency-cleanup", healthcheck.Optional(cleanupWorker))
	startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	if cfg.HTTPAddr != "" {
		api := httpapi.NewServer(deps.Invoices, deps.Ledger, deps.Reports,
			httpapi.WithLogger(logger.WithField("layer", "http")),
			httpapi.WithTracer(otel.Tracer(tracerName)),
			httpapi.WithIdempotency(deps.storage.idempotency, cfg.IdempotencyKeyTTL),
		)
		startHTTPServer(ctx, cfg.HTTPAddr, api.Handler(), logger.WithField("server", "api"))
	}

	grpcServer, healthServer := newGRPCServer(deps, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func newGRPCServer(deps *Dependencies, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	service := grpcsvc.NewInvoiceService(deps.Invoices, deps.Ledger, deps.Reports, deps.storage.idempotency, logger.WithField("layer", "grpc"))
	invoicingv1.RegisterInvoiceServiceServer(grpcServer, service)
	grpcMetrics.InitializeMetrics(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(invoicingv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return grpcServer, healthServer
}

// newHealthHandler регистрирует проверки подключённых внешних зависимостей.
func newHealthHandler(deps *Dependencies) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	if deps.storage.pg != nil {
		handler.Register("postgres", healthcheck.Critical(deps.storage.pg))
	}
	if deps.redis != nil {
		handler.Register("redis", healthcheck.Optional(deps.redis))
	}
	return handler
}

// startWorkers запускает outbox relay и очистку ключей идемпотентности.
// Канал закрывается после остановки обоих воркеров.
func startWorkers(ctx context.Context, cfg Config, deps *Dependencies, sink eventSink, cleanupWorker *idempotency.CleanupWorker, logger *log.Entry) <-chan struct{} {
	outboxOpts := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		outbox.WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)),
	}
	if sink.dlq != nil {
		outboxOpts = append(outboxOpts, outbox.WithDLQPublisher(sink.dlq))
	}
	outboxWorker := outbox.NewWorker(deps.storage.outbox, sink.publisher, outboxOpts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		finished := make(chan struct{}, 2)
		go func() { outboxWorker.Run(ctx); finished <- struct{}{} }()
		go func() { cleanupWorker.Run(ctx); finished <- struct{}{} }()
		<-finished
		<-finished
	}()
	return done
}

// newCleanupWorker собирает очистку ключей идемпотентности создания счетов.
func newCleanupWorker(cfg Config, deps *Dependencies, logger *log.Entry) *idempotency.CleanupWorker {
	return idempotency.NewCleanupWorker(deps.storage.idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithMaxBatches(cfg.IdempotencyCleanupMaxBatches),
		idempotency.WithMetrics(metrics.NewCleanupMetricsWithRegisterer(prometheus.DefaultRegisterer)),
	)
}

// shutdownWorkers отменяет воркеры и ждёт их завершения.
func shutdownWorkers(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("background workers did not stop in time")
	}
}

func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

func shutdownWithTimeout(fn tracing.ShutdownFunc, timeout time.Duration, logger *log.Entry) {
	if fn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.WithError(err).Warn("tracer provider shutdown with error")
	}
}
