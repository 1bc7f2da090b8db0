package implementation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping integration test: REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisConversationLock_ReleaseChecksOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewRedisConversationLockRepository(redisClient(t))
	key := "test:" + uuid.NewString()

	stale, ok, err := repo.Acquire(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = repo.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(100 * time.Millisecond)
	current, ok, err := repo.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Release(ctx, key, stale))
	_, ok, err = repo.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "an expired holder must not free the current lock")

	require.NoError(t, repo.Release(ctx, key, current))
	_, ok, err = repo.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
