// Package cache содержит кэши для отчётов: in-memory с TTL и Redis.
package cache

import (
	"context"
	"strings"
	"time"
)

// Store это кэш сериализованных значений.
// Отсутствие ключа не ошибка: Get возвращает ok=false.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key собирает ключ из частей, нормализуя регистр и пробелы.
func Key(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(part)))
	}
	return strings.Join(normalized, ":")
}
