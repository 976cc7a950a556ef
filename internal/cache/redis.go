package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "ims:"

// RedisOptions это параметры подключения к Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis это Store поверх Redis, общий для нескольких экземпляров сервиса.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis создаёт клиент Redis. Соединение устанавливается лениво, доступность проверяет Ping.
func NewRedis(opts RedisOptions) (*Redis, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(opts.Password),
		DB:       opts.DB,
	})
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping проверяет доступность Redis (используется health-checker'ом).
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединения.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Store = (*Redis)(nil)
