package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

type outboxStatus string

const (
	outboxPending outboxStatus = "pending"
	outboxSent    outboxStatus = "sent"
	outboxFailed  outboxStatus = "failed"

	defaultOutboxBatch = 100
)

// Очередь читается по seq: это порядок фиксации Enqueue, created_at задаёт вызывающий.
const (
	insertOutboxSQL = `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)`

	pullOutboxSQL = `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox_messages
		WHERE status = $1
		ORDER BY seq
		LIMIT $2`

	outboxStatsSQL = `
		SELECT COUNT(*), MIN(created_at)
		FROM outbox_messages
		WHERE status = $1`

	markOutboxSQL = `
		UPDATE outbox_messages
		SET status = $2, attempt_count = attempt_count + 1, updated_at = $3
		WHERE id = $1`
)

// OutboxRepository хранит события счетов в таблице outbox_messages.
type OutboxRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{
		db:  store.DB(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// insertOutbox пишет событие через любой querier: пул или транзакцию единицы работы.
func insertOutbox(ctx context.Context, q querier, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if _, err := q.ExecContext(ctx, insertOutboxSQL,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload,
		string(outboxPending), msg.CreatedAt,
	); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message %s: %w", msg.EventType, err)
	}
	return msg, nil
}

func (r *OutboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return insertOutbox(ctx, r.db, msg)
}

// PullPending возвращает до limit неотправленных событий в порядке записи.
func (r *OutboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	rows, err := r.db.QueryContext(ctx, pullOutboxSQL, string(outboxPending), limit)
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}
	defer rows.Close()

	var result []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Payload, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return result, nil
}

func (r *OutboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, outboxStatsSQL, string(outboxPending)).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxSent)
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxFailed)
}

func (r *OutboxRepository) mark(ctx context.Context, id string, status outboxStatus) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, markOutboxSQL, id, string(status), r.now())
	if err != nil {
		return fmt.Errorf("mark outbox message %s as %s: %w", id, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox message %s as %s: %w", id, status, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOutboxMessageNotFound, id)
	}
	return nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
