package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisAdapter_LookupMissingKey(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)
	client.Del(ctx, idempotencyKeyPrefix+"missing-key")

	_, ok, err := adapter.Lookup(ctx, "missing-key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisAdapter_RememberKeepsFirstResult(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)
	client.Del(ctx, idempotencyKeyPrefix+"test-idem-key")

	require.NoError(t, adapter.Remember(ctx, "test-idem-key", "batch-1"))
	require.NoError(t, adapter.Remember(ctx, "test-idem-key", "batch-2"))

	result, ok, err := adapter.Lookup(ctx, "test-idem-key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "batch-1", result)

	ttl, err := client.TTL(ctx, idempotencyKeyPrefix+"test-idem-key").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisAdapter_RememberConcurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)
	client.Del(ctx, idempotencyKeyPrefix+"concurrent-idem-key")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, adapter.Remember(ctx, "concurrent-idem-key", fmt.Sprintf("batch-%d", i)))
		}(i)
	}
	wg.Wait()

	first, ok, err := adapter.Lookup(ctx, "concurrent-idem-key")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, adapter.Remember(ctx, "concurrent-idem-key", "late"))
	again, _, err := adapter.Lookup(ctx, "concurrent-idem-key")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}
