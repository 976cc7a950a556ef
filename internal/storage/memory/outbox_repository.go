package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

type outboxState uint8

const (
	outboxPending outboxState = iota
	outboxSent
	outboxFailed
)

// OutboxOption настраивает in-memory outbox.
type OutboxOption func(*Outbox)

// WithOutboxClock подменяет источник времени.
func WithOutboxClock(clock func() time.Time) OutboxOption {
	return func(o *Outbox) {
		if clock != nil {
			o.now = func() time.Time { return clock().UTC() }
		}
	}
}

type outboxEntry struct {
	seq      uint64
	msg      domain.OutboxMessage
	state    outboxState
	attempts int
	changed  time.Time
}

// Outbox хранит события счетов в памяти процесса.
// Порядок выдачи совпадает с порядком Enqueue, как у колонки seq в postgres.
type Outbox struct {
	mu      sync.RWMutex
	entries map[string]*outboxEntry
	nextSeq uint64
	now     func() time.Time
}

// NewOutboxRepository создаёт in-memory реализацию OutboxRepository.
func NewOutboxRepository(options ...OutboxOption) *Outbox {
	o := &Outbox{
		entries: make(map[string]*outboxEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(o)
	}
	return o
}

// Enqueue добавляет событие в хвост очереди.
func (o *Outbox) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := o.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	o.nextSeq++
	o.entries[msg.ID] = &outboxEntry{seq: o.nextSeq, msg: msg, changed: now}
	return msg, nil
}

// PullPending возвращает до limit неотправленных событий в порядке записи.
func (o *Outbox) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	return o.pending(limit), nil
}

// Stats считает backlog. OldestPendingAt берётся по минимальному CreatedAt,
// а не по первому в очереди: время события задаёт вызывающий.
func (o *Outbox) Stats(_ context.Context) (domain.OutboxStats, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var stats domain.OutboxStats
	for _, entry := range o.entries {
		if entry.state != outboxPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || entry.msg.CreatedAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = entry.msg.CreatedAt
		}
	}
	return stats, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	return o.transition(id, outboxSent)
}

func (o *Outbox) MarkFailed(_ context.Context, id string) error {
	return o.transition(id, outboxFailed)
}

// AllPending возвращает все неотправленные события.
func (o *Outbox) AllPending() []domain.OutboxMessage {
	return o.pending(0)
}

// Attempts возвращает число смен статуса события (0 для неизвестного id).
func (o *Outbox) Attempts(id string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if entry, ok := o.entries[id]; ok {
		return entry.attempts
	}
	return 0
}

func (o *Outbox) transition(id string, state outboxState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.entries[id]
	if !ok {
		return domain.ErrOutboxMessageNotFound
	}
	entry.state = state
	entry.attempts++
	entry.changed = o.now()
	return nil
}

func (o *Outbox) pending(limit int) []domain.OutboxMessage {
	o.mu.RLock()
	queued := make([]*outboxEntry, 0, len(o.entries))
	for _, entry := range o.entries {
		if entry.state == outboxPending {
			queued = append(queued, entry)
		}
	}
	o.mu.RUnlock()

	sort.Slice(queued, func(i, j int) bool { return queued[i].seq < queued[j].seq })
	if limit > 0 && len(queued) > limit {
		queued = queued[:limit]
	}
	result := make([]domain.OutboxMessage, len(queued))
	for i, entry := range queued {
		result[i] = entry.msg
	}
	return result
}

var _ domain.OutboxRepository = (*Outbox)(nil)
