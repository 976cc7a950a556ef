package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// reclaimAttempts ограничивает повторы, когда чужая запись истекла или удалена
// между INSERT и чтением.
const reclaimAttempts = 3

const idempotencyColumns = `key, request_hash, response_body, response_status, status, ttl_at, created_at, updated_at`

// IdempotencyOption настраивает PostgreSQL-хранилище ключей.
type IdempotencyOption func(*idempotencyRepository)

// WithIdempotencyClock подменяет источник времени.
func WithIdempotencyClock(clock func() time.Time) IdempotencyOption {
	return func(r *idempotencyRepository) {
		if clock != nil {
			r.now = func() time.Time { return clock().UTC() }
		}
	}
}

type idempotencyRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewIdempotencyRepository создаёт PostgreSQL-реализацию IdempotencyRepository.
// Просроченные ключи невидимы и занимаются заново одним upsert.
func NewIdempotencyRepository(store *Store, options ...IdempotencyOption) domain.IdempotencyRepository {
	r := &idempotencyRepository{
		db:  store.DB(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *idempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	for attempt := 0; attempt < reclaimAttempts; attempt++ {
		now := r.now()
		record := domain.IdempotencyRecord{
			Key:         key,
			RequestHash: requestHash,
			Status:      domain.IdempotencyStatusProcessing,
			TTLAt:       ttlAt.UTC(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if ttlAt.IsZero() {
			record.TTLAt = now.Add(domain.DefaultIdempotencyTTL)
		}

		// Конфликт с просроченной записью перезаписывает её, с живой ничего не меняет.
		var inserted string
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO idempotency_keys (`+idempotencyColumns+`)
			VALUES ($1, $2, NULL, NULL, $3, $4, $5, $5)
			ON CONFLICT (key) DO UPDATE
			SET request_hash    = EXCLUDED.request_hash,
			    response_body   = NULL,
			    response_status = NULL,
			    status          = EXCLUDED.status,
			    ttl_at          = EXCLUDED.ttl_at,
			    created_at      = EXCLUDED.created_at,
			    updated_at      = EXCLUDED.updated_at
			WHERE idempotency_keys.ttl_at <= EXCLUDED.created_at
			RETURNING key
		`, key, requestHash, string(record.Status), record.TTLAt, now).Scan(&inserted)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
		}

		existing, getErr := r.Get(ctx, key)
		if errors.Is(getErr, domain.ErrIdempotencyKeyNotFound) {
			continue
		}
		if getErr != nil {
			return domain.IdempotencyRecord{}, getErr
		}
		if existing.RequestHash != requestHash {
			return existing, domain.ErrIdempotencyHashMismatch
		}
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}
	return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record %s: key keeps expiring concurrently", key)
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	record, err := scanIdempotencyRecord(r.db.QueryRowContext(ctx, `
		SELECT `+idempotencyColumns+`
		FROM idempotency_keys
		WHERE key = $1 AND ttl_at > $2
	`, key, r.now()))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record %s: %w", key, err)
	}
	return record, nil
}

func (r *idempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, responseStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusDone, responseBody, responseStatus)
}

func (r *idempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, responseStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusFailed, responseBody, responseStatus)
}

// DeleteExpired удаляет до limit просроченных записей, самые старые первыми.
func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `DELETE FROM idempotency_keys WHERE ttl_at <= $1`
	args := []any{before}
	if limit > 0 {
		query = `
			DELETE FROM idempotency_keys
			WHERE key IN (
				SELECT key FROM idempotency_keys
				WHERE ttl_at <= $1
				ORDER BY ttl_at
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			)`
		args = append(args, limit)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("idempotency rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *idempotencyRepository) finish(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, responseStatus int) error {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET response_body = $1, response_status = $2, status = $3, updated_at = $4
		WHERE key = $5 AND ttl_at > $4
	`, responseBody, responseStatus, string(status), now, key)
	if err != nil {
		return fmt.Errorf("mark idempotency key %s %s: %w", key, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("idempotency rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func scanIdempotencyRecord(row *sql.Row) (domain.IdempotencyRecord, error) {
	var (
		record         domain.IdempotencyRecord
		status         string
		responseStatus sql.NullInt64
	)
	if err := row.Scan(
		&record.Key,
		&record.RequestHash,
		&record.ResponseBody,
		&responseStatus,
		&status,
		&record.TTLAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return domain.IdempotencyRecord{}, err
	}

	record.Status = domain.IdempotencyStatus(status)
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q", status)
	}
	record.ResponseStatus = int(responseStatus.Int64)
	record.TTLAt = record.TTLAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
