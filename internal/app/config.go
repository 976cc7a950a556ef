package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	// PostgresMaxConns 0 оставляет размер пула по умолчанию.
	PostgresMaxConns int
	// CatalogFile это YAML-фикстура каталога, загружаемая при старте.
	CatalogFile string

	StockPolicy        domain.StockPolicy
	TopCustomersLimit  int
	ReportCacheTTL     time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	KafkaBrokers       []string
	OTLPEndpoint       string
	TraceSampleRatio   float64
	ShutdownTimeout    time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyKeyTTL           time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
	// IdempotencyCleanupMaxBatches ограничивает один проход очистки, 0 без ограничения.
	IdempotencyCleanupMaxBatches int
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		StockPolicy:                 domain.StockPolicyStrict,
		TopCustomersLimit:           5,
		ReportCacheTTL:              30 * time.Second,
		TraceSampleRatio:            1,
		ShutdownTimeout:             5 * time.Second,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            200 * time.Millisecond,
		IdempotencyKeyTTL:           24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfigFromEnv читает .env (если есть) и переменные окружения поверх DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	_ = godotenv.Load()
	return configFromLookup(os.LookupEnv)
}

func configFromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", key, err))
			return
		}
		*dst = n
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", key, err))
			return
		}
		*dst = d
	}

	str("IMS_GRPC_ADDR", &cfg.GRPCAddr)
	str("IMS_HTTP_ADDR", &cfg.HTTPAddr)
	str("IMS_METRICS_ADDR", &cfg.MetricsAddr)

	if v, ok := lookup("IMS_STORAGE_DRIVER"); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = StorageDriver(strings.ToLower(strings.TrimSpace(v)))
	}
	str("IMS_POSTGRES_DSN", &cfg.PostgresDSN)
	str("IMS_CATALOG_FILE", &cfg.CatalogFile)
	integer("IMS_POSTGRES_MAX_CONNS", &cfg.PostgresMaxConns)
	if v, ok := lookup("IMS_POSTGRES_AUTO_MIGRATE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("parse IMS_POSTGRES_AUTO_MIGRATE: %w", err))
		} else {
			cfg.PostgresAutoMigrate = b
		}
	}

	if v, ok := lookup("IMS_STOCK_POLICY"); ok {
		policy, err := domain.ParseStockPolicy(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse IMS_STOCK_POLICY: %w", err))
		} else if policy != "" {
			cfg.StockPolicy = policy
		}
	}
	integer("IMS_TOP_CUSTOMERS_LIMIT", &cfg.TopCustomersLimit)
	duration("IMS_REPORT_CACHE_TTL", &cfg.ReportCacheTTL)

	str("IMS_REDIS_ADDR", &cfg.RedisAddr)
	str("IMS_REDIS_PASSWORD", &cfg.RedisPassword)
	integer("IMS_REDIS_DB", &cfg.RedisDB)

	if v, ok := lookup("KAFKA_BROKERS"); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	str("IMS_OTLP_ENDPOINT", &cfg.OTLPEndpoint)
	if v, ok := lookup("IMS_TRACE_SAMPLE_RATIO"); ok && strings.TrimSpace(v) != "" {
		ratio, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse IMS_TRACE_SAMPLE_RATIO: %w", err))
		} else {
			cfg.TraceSampleRatio = ratio
		}
	}
	duration("IMS_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	duration("IMS_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	integer("IMS_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	integer("IMS_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	duration("IMS_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)

	duration("IMS_IDEMPOTENCY_KEY_TTL", &cfg.IdempotencyKeyTTL)
	duration("IMS_IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	integer("IMS_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)
	integer("IMS_IDEMPOTENCY_CLEANUP_MAX_BATCHES", &cfg.IdempotencyCleanupMaxBatches)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GRPCAddr) == "" {
		errs = append(errs, errors.New("grpc addr is required"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
		if c.PostgresMaxConns < 0 {
			errs = append(errs, errors.New("postgres max conns must be >= 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}
	if c.StockPolicy != domain.StockPolicyStrict && c.StockPolicy != domain.StockPolicyPermissive {
		errs = append(errs, fmt.Errorf("unknown stock policy %q", c.StockPolicy))
	}
	if c.TopCustomersLimit <= 0 {
		errs = append(errs, errors.New("top customers limit must be > 0"))
	}
	if c.ReportCacheTTL < 0 {
		errs = append(errs, errors.New("report cache ttl must be >= 0"))
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, errors.New("trace sample ratio must be within [0, 1]"))
	}
	if c.OutboxPollInterval <= 0 || c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox poll interval, batch size and max attempts must be > 0"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox retry delay must be >= 0"))
	}
	if c.IdempotencyKeyTTL <= 0 || c.IdempotencyCleanupInterval <= 0 || c.IdempotencyCleanupBatchSize <= 0 {
		errs = append(errs, errors.New("idempotency ttl, cleanup interval and batch size must be > 0"))
	}
	if c.IdempotencyCleanupMaxBatches < 0 {
		errs = append(errs, errors.New("idempotency cleanup max batches must be >= 0"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
