package queue

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

// newTestRedisClient connects to a real Redis instance addressed by
// REDIS_URL and skips the test when it isn't set, matching the cache
// package's integration-test gating convention.
func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	rawURL := os.Getenv("REDIS_URL")
	if rawURL == "" {
		t.Skip("REDIS_URL not set, skipping queue integration test")
	}
	opts, err := redis.ParseURL(rawURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAutomationQueue_EnqueueDequeueOrdersByPriorityThenFIFO(t *testing.T) {
	client := newTestRedisClient(t)
	q := NewAutomationQueue(client)
	ctx := context.Background()
	defer func() { _ = client.Del(ctx, keyAutomationPending).Err() }()

	low := uuid.New()
	high := uuid.New()
	require.NoError(t, q.Enqueue(ctx, low, 1))
	require.NoError(t, q.Enqueue(ctx, high, 9))

	ids, err := q.Dequeue(ctx, 10)
	assert.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, high, ids[0], "higher priority job must be dequeued first")
}

func TestAutomationQueue_MoveToDLQThenReplay(t *testing.T) {
	client := newTestRedisClient(t)
	q := NewAutomationQueue(client)
	ctx := context.Background()
	defer func() {
		_ = client.Del(ctx, keyAutomationPending, keyAutomationDLQ).Err()
	}()

	id := uuid.New()
	require.NoError(t, q.Enqueue(ctx, id, 5))
	require.NoError(t, q.MoveToDLQ(ctx, id))

	stats, err := q.Stats(ctx)
	assert.NoError(t, err)
	assert.EqualValues(t, 0, stats.PendingCount)
	assert.EqualValues(t, 1, stats.DLQCount)

	require.NoError(t, q.ReplayFromDLQ(ctx, id))
	stats, err = q.Stats(ctx)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, stats.PendingCount)
	assert.EqualValues(t, 0, stats.DLQCount)
}

func TestAutomationQueue_LockIsExclusiveAndOwnerScoped(t *testing.T) {
	client := newTestRedisClient(t)
	q := NewAutomationQueue(client)
	ctx := context.Background()
	chunkKey := "chunk-0"
	defer func() { _ = client.Del(ctx, keyAutomationLock+chunkKey).Err() }()

	ok, err := q.AcquireLock(ctx, chunkKey, "worker-a", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.AcquireLock(ctx, chunkKey, "worker-b", time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok, "a second worker must not acquire a lock already held")

	require.NoError(t, q.ReleaseLock(ctx, chunkKey, "worker-b"))
	ok, err = q.AcquireLock(ctx, chunkKey, "worker-b", time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok, "releasing with the wrong owner must not free the lock")

	require.NoError(t, q.ReleaseLock(ctx, chunkKey, "worker-a"))
	ok, err = q.AcquireLock(ctx, chunkKey, "worker-b", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok, "releasing with the correct owner must free the lock")
}
