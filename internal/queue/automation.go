// Package queue provides the Redis-backed structures that sit alongside
// the repository's durable Postgres queue table: a sorted-set ordering
// index for the scheduled-email automation queue, and a per-user digest
// accumulator. Both are adapted from the reference notification package's
// RedisQueue (priority-via-score sorted sets, SET NX EX locks, Lua
// check-and-delete unlock).
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyAutomationPending = "notifications:automation:pending"
	keyAutomationDLQ     = "notifications:automation:dlq"
	keyAutomationLock    = "notifications:automation:lock:"
)

// AutomationStats mirrors the reference repo's QueueStats shape for the
// scheduled-email automation queue.
type AutomationStats struct {
	PendingCount int64 `json:"pendingCount"`
	DLQCount     int64 `json:"dlqCount"`
}

// AutomationQueue orders scheduled-email automation jobs (template-backed,
// drained by ProcessAutomationQueue) by priority then FIFO, the same score
// scheme as the reference queue: priority*1e19 - timestampNanos.
type AutomationQueue struct {
	client *redis.Client
}

func NewAutomationQueue(client *redis.Client) *AutomationQueue {
	return &AutomationQueue{client: client}
}

// Enqueue adds a job id to the pending set.
func (q *AutomationQueue) Enqueue(ctx context.Context, id uuid.UUID, priority int) error {
	score := float64(priority)*1e19 - float64(time.Now().UnixNano())
	if err := q.client.ZAdd(ctx, keyAutomationPending, redis.Z{Score: score, Member: id.String()}).Err(); err != nil {
		return fmt.Errorf("enqueue automation job: %w", err)
	}
	return nil
}

// Dequeue returns up to limit job ids, highest priority and oldest first,
// without removing them — callers remove via Remove once dispatched.
func (q *AutomationQueue) Dequeue(ctx context.Context, limit int) ([]uuid.UUID, error) {
	results, err := q.client.ZRevRange(ctx, keyAutomationPending, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("dequeue automation jobs: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(results))
	for _, r := range results {
		if id, err := uuid.Parse(r); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Remove drops a job id from the pending set once it has been dispatched
// (successfully or not — failures go through MoveToDLQ instead).
func (q *AutomationQueue) Remove(ctx context.Context, id uuid.UUID) error {
	if err := q.client.ZRem(ctx, keyAutomationPending, id.String()).Err(); err != nil {
		return fmt.Errorf("remove automation job: %w", err)
	}
	return nil
}

// MoveToDLQ removes a job from pending and records it as dead, for the
// DLQ-replay job and alert-threshold monitoring.
func (q *AutomationQueue) MoveToDLQ(ctx context.Context, id uuid.UUID) error {
	pipe := q.client.Pipeline()
	pipe.ZRem(ctx, keyAutomationPending, id.String())
	pipe.ZAdd(ctx, keyAutomationDLQ, redis.Z{Score: float64(time.Now().Unix()), Member: id.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("move automation job to dlq: %w", err)
	}
	return nil
}

// ReplayFromDLQ moves a dead job back onto the pending set.
func (q *AutomationQueue) ReplayFromDLQ(ctx context.Context, id uuid.UUID) error {
	pipe := q.client.Pipeline()
	pipe.ZRem(ctx, keyAutomationDLQ, id.String())
	pipe.ZAdd(ctx, keyAutomationPending, redis.Z{Score: float64(time.Now().UnixNano()), Member: id.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replay automation job from dlq: %w", err)
	}
	return nil
}

// AcquireLock claims exclusive ownership of one chunk of the automation
// queue for workerID for ttl, so two worker processes draining
// concurrently never dispatch the same chunk twice.
func (q *AutomationQueue) AcquireLock(ctx context.Context, chunkKey, workerID string, ttl time.Duration) (bool, error) {
	ok, err := q.client.SetNX(ctx, keyAutomationLock+chunkKey, workerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire automation lock: %w", err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// ReleaseLock releases a chunk lock, but only if it is still held by
// workerID — a worker that held the lock past its TTL must not clobber a
// lock another worker has since acquired.
func (q *AutomationQueue) ReleaseLock(ctx context.Context, chunkKey, workerID string) error {
	_, err := releaseScript.Run(ctx, q.client, []string{keyAutomationLock + chunkKey}, workerID).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release automation lock: %w", err)
	}
	return nil
}

// Stats reports queue depth for /stats and DLQ alert-threshold checks.
func (q *AutomationQueue) Stats(ctx context.Context) (AutomationStats, error) {
	pipe := q.client.Pipeline()
	pending := pipe.ZCard(ctx, keyAutomationPending)
	dlq := pipe.ZCard(ctx, keyAutomationDLQ)
	if _, err := pipe.Exec(ctx); err != nil {
		return AutomationStats{}, fmt.Errorf("automation queue stats: %w", err)
	}
	return AutomationStats{PendingCount: pending.Val(), DLQCount: dlq.Val()}, nil
}

// OldestDLQEntry returns the move-to-dlq timestamp of the longest-dead entry,
// so a health check can flag a backlog that is small but stale as well as
// one that is merely large. ok is false when the DLQ is empty.
func (q *AutomationQueue) OldestDLQEntry(ctx context.Context) (at time.Time, ok bool, err error) {
	results, err := q.client.ZRangeWithScores(ctx, keyAutomationDLQ, 0, 0).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("oldest dlq entry: %w", err)
	}
	if len(results) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(int64(results[0].Score), 0), true, nil
}
