package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/allocation/internal/port"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
)

var _ port.IdempotencyStore = (*RedisAdapter)(nil)

// RedisAdapter stores request outcomes keyed by idempotency key.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) Lookup(ctx context.Context, key string) (string, bool, error) {
	result, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return result, true, nil
}

// Remember keeps the first result stored for key; later calls are no-ops.
func (r *RedisAdapter) Remember(ctx context.Context, key, result string) error {
	if err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, result, r.ttl).Err(); err != nil {
		return fmt.Errorf("remember idempotency key: %w", err)
	}
	return nil
}
