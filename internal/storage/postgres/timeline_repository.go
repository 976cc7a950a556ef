package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// id в timeline_events это bigserial, он упорядочивает события одного момента.
const (
	insertTimelineSQL = `
		INSERT INTO timeline_events (invoice_id, type, reason, occurred)
		VALUES ($1, $2, $3, $4)`

	listTimelineSQL = `
		SELECT type, reason, occurred
		FROM timeline_events
		WHERE invoice_id = $1
		ORDER BY occurred, id`
)

// TimelineRepository читает и пишет историю счетов.
type TimelineRepository struct {
	db *sql.DB
}

func NewTimelineRepository(store *Store) *TimelineRepository {
	return &TimelineRepository{db: store.DB()}
}

func insertTimeline(ctx context.Context, q querier, event domain.TimelineEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	if _, err := q.ExecContext(ctx, insertTimelineSQL, event.InvoiceID, event.Type, event.Reason, event.Occurred); err != nil {
		return fmt.Errorf("append %s to timeline of %s: %w", event.Type, event.InvoiceID, err)
	}
	return nil
}

func (r *TimelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return insertTimeline(ctx, r.db, event)
}

// List возвращает историю счёта от старых событий к новым; неизвестный счёт даёт пустой список.
func (r *TimelineRepository) List(ctx context.Context, invoiceID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, listTimelineSQL, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list timeline of %s: %w", invoiceID, err)
	}
	defer rows.Close()

	history := []domain.TimelineEvent{}
	for rows.Next() {
		event := domain.TimelineEvent{InvoiceID: invoiceID}
		if err := rows.Scan(&event.Type, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Occurred = event.Occurred.UTC()
		history = append(history, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return history, nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
