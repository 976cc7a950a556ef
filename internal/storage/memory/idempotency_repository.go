package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// IdempotencyOption настраивает in-memory хранилище ключей.
type IdempotencyOption func(*IdempotencyKeys)

// WithIdempotencyClock подменяет источник времени.
func WithIdempotencyClock(clock func() time.Time) IdempotencyOption {
	return func(k *IdempotencyKeys) {
		if clock != nil {
			k.now = func() time.Time { return clock().UTC() }
		}
	}
}

// IdempotencyKeys хранит ключи идемпотентности создания счетов в памяти процесса.
// Просроченный ключ невидим для Get и может быть занят заново до очистки.
type IdempotencyKeys struct {
	mu   sync.RWMutex
	keys map[string]domain.IdempotencyRecord
	now  func() time.Time
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository(options ...IdempotencyOption) *IdempotencyKeys {
	k := &IdempotencyKeys{
		keys: make(map[string]domain.IdempotencyRecord),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(k)
	}
	return k
}

// CreateProcessing резервирует ключ под запрос с хешем requestHash.
func (k *IdempotencyKeys) CreateProcessing(_ context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := k.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(domain.DefaultIdempotencyTTL)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if existing, ok := k.keys[key]; ok && !existing.Expired(now) {
		if existing.RequestHash != requestHash {
			return existing.Clone(), domain.ErrIdempotencyHashMismatch
		}
		return existing.Clone(), domain.ErrIdempotencyKeyAlreadyExists
	}

	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	k.keys[key] = record
	return record.Clone(), nil
}

// Get возвращает живую запись по ключу.
func (k *IdempotencyKeys) Get(_ context.Context, key string) (domain.IdempotencyRecord, error) {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	record, ok := k.keys[key]
	if !ok || record.Expired(k.now()) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return record.Clone(), nil
}

// MarkDone сохраняет успешный ответ.
func (k *IdempotencyKeys) MarkDone(_ context.Context, key string, responseBody []byte, responseStatus int) error {
	return k.finish(key, domain.IdempotencyStatusDone, responseBody, responseStatus)
}

// MarkFailed сохраняет ответ с ошибкой.
func (k *IdempotencyKeys) MarkFailed(_ context.Context, key string, responseBody []byte, responseStatus int) error {
	return k.finish(key, domain.IdempotencyStatusFailed, responseBody, responseStatus)
}

// DeleteExpired удаляет до limit записей с ttl <= before, начиная с самых старых.
func (k *IdempotencyKeys) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = k.now()
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	expired := make([]domain.IdempotencyRecord, 0)
	for _, record := range k.keys {
		if record.Expired(before) {
			expired = append(expired, record)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].TTLAt.Before(expired[j].TTLAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, record := range expired {
		delete(k.keys, record.Key)
	}
	return len(expired), nil
}

// Len возвращает число хранимых записей, включая ещё не удалённые просроченные.
func (k *IdempotencyKeys) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

func (k *IdempotencyKeys) finish(key string, status domain.IdempotencyStatus, responseBody []byte, responseStatus int) error {
	key, err := domain.NormalizeIdempotencyKey(key)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	record, ok := k.keys[key]
	if !ok || record.Expired(now) {
		return domain.ErrIdempotencyKeyNotFound
	}
	record.Status = status
	record.ResponseBody = append([]byte(nil), responseBody...)
	record.ResponseStatus = responseStatus
	record.UpdatedAt = now
	k.keys[key] = record
	return nil
}

var _ domain.IdempotencyRepository = (*IdempotencyKeys)(nil)
