package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/ims/internal/health"
)

const readHeaderTimeout = 5 * time.Second

// newOpsMux собирает служебные маршруты: метрики и проверки здоровья.
func newOpsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// startMetricsServer запускает служебный HTTP-сервер с /metrics и health-эндпоинтами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := startHTTPServer(ctx, addr, newOpsMux(healthHandler), logger.WithField("server", "ops"))
	logger.Infof("метрики доступны по адресу %s/metrics", addr)
	return srv
}

// startHTTPServer запускает сервер в фоне и останавливает его по отмене ctx.
func startHTTPServer(ctx context.Context, addr string, handler http.Handler, logger *log.Entry) *http.Server {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("HTTP сервер слушает %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
