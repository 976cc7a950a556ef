package cache

import (
	"context"
	"sync"
	"time"
)

// Cache это типизированный кэш с временем жизни записей.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache хранит записи в памяти; просроченные удаляются при чтении.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]ttlEntry[V]
	now     func() time.Time
}

// NewTTLCache создаёт пустой кэш.
func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{
		entries: make(map[K]ttlEntry[V]),
		now:     time.Now,
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

// Set сохраняет значение; ttl <= 0 означает бессрочную запись.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	entry := ttlEntry[V]{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Len возвращает число записей, включая ещё не вычищенные просроченные.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Memory это Store поверх TTLCache.
type Memory struct {
	items *TTLCache[string, []byte]
}

// NewMemory создаёт in-memory Store.
func NewMemory() *Memory {
	return &Memory{items: NewTTLCache[string, []byte]()}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := m.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

var (
	_ Cache[string, int] = (*TTLCache[string, int])(nil)
	_ Store              = (*Memory)(nil)
)
