package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/app"
	"github.com/vladislavdragonenkov/ims/internal/version"
)

const envLogLevel = "IMS_LOG_LEVEL"

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(parseLogLevel(level))
}

// parseLogLevel возвращает info для пустого или неизвестного значения.
func parseLogLevel(raw string) log.Level {
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func main() {
	setupLogger(os.Getenv(envLogLevel))

	cfg, err := app.LoadConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := version.Current()
	log.WithFields(log.Fields{
		"version":        build.Version,
		"commit":         build.Commit,
		"grpc_addr":      cfg.GRPCAddr,
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"stock_policy":   cfg.StockPolicy,
	}).Info("запускаем InvoiceService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("InvoiceService остановлен")
}
