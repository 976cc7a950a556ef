package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// opTimeout ограничивает один запрос репозитория вне единицы работы.
const opTimeout = 5 * time.Second

// PoolConfig задаёт размер и время жизни пула соединений database/sql.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig подходит для одного инстанса сервиса.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// Option меняет PoolConfig перед открытием пула.
type Option func(*PoolConfig)

// WithMaxConns ограничивает число открытых соединений; idle-лимит не превышает его.
func WithMaxConns(n int) Option {
	return func(c *PoolConfig) {
		if n > 0 {
			c.MaxOpenConns = n
			c.MaxIdleConns = min(c.MaxIdleConns, n)
		}
	}
}

func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *PoolConfig) {
		if timeout > 0 {
			c.ConnectTimeout = timeout
		}
	}
}

// Store владеет пулом соединений к базе счетов.
type Store struct {
	db   *sql.DB
	pool PoolConfig
}

// Open открывает пул через драйвер pgx и проверяет доступность базы.
func Open(ctx context.Context, dsn string, options ...Option) (*Store, error) {
	pool := DefaultPoolConfig()
	for _, option := range options {
		option(&pool)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	store := &Store{db: db, pool: pool}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Pool возвращает настройки, с которыми открыт пул.
func (s *Store) Pool() PoolConfig {
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is not initialized")
	}
	timeout := s.pool.ConnectTimeout
	if timeout <= 0 {
		timeout = opTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// EnsureSchema применяет все ещё не применённые up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.MigrateUp(ctx, 0)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// querier покрывает *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pgFailure группирует SQLSTATE, на которые репозитории отвечают доменной ошибкой.
type pgFailure int

const (
	pgOther pgFailure = iota
	pgDuplicate
	pgMissingReference
	pgRetryable
)

func classifyPgError(err error) pgFailure {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return pgOther
	}
	switch pgErr.Code {
	case "23505":
		return pgDuplicate
	case "23503":
		return pgMissingReference
	case "40001", "40P01":
		return pgRetryable
	default:
		return pgOther
	}
}

func nullIfEmpty(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
