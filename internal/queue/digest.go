package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/notihub/notihub/internal/domain"
)

func digestItemsKey(frequency domain.Frequency, userID uuid.UUID) string {
	return fmt.Sprintf("digest:items:%s:%s", frequency, userID)
}

func digestScheduleKey(frequency domain.Frequency) string {
	return fmt.Sprintf("digest:schedule:%s", frequency)
}

// DigestAccumulator batches deferred-channel notifications per user and
// frequency until their next-flush time, so ProcessDigest can render one
// summary notification per user instead of one per deferred item.
type DigestAccumulator struct {
	client *redis.Client
}

func NewDigestAccumulator(client *redis.Client) *DigestAccumulator {
	return &DigestAccumulator{client: client}
}

// Add appends an item to a user's pending batch for frequency. nextFlush
// is only recorded the first time a user accumulates an item in an empty
// window — later adds within the same window do not push the deadline out.
func (a *DigestAccumulator) Add(ctx context.Context, userID uuid.UUID, frequency domain.Frequency, item domain.DigestItem, nextFlush time.Time) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal digest item: %w", err)
	}

	pipe := a.client.Pipeline()
	pipe.RPush(ctx, digestItemsKey(frequency, userID), payload)
	pipe.ZAddNX(ctx, digestScheduleKey(frequency), redis.Z{
		Score:  float64(nextFlush.Unix()),
		Member: userID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add digest item: %w", err)
	}
	return nil
}

// Due returns up to limit batch entries for frequency whose next-flush
// time has passed, each populated with its accumulated items.
func (a *DigestAccumulator) Due(ctx context.Context, frequency domain.Frequency, now time.Time, limit int) ([]domain.DigestBatchEntry, error) {
	results, err := a.client.ZRangeByScoreWithScores(ctx, digestScheduleKey(frequency), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due digest batches: %w", err)
	}

	entries := make([]domain.DigestBatchEntry, 0, len(results))
	for _, z := range results {
		userIDStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			continue
		}

		raw, err := a.client.LRange(ctx, digestItemsKey(frequency, userID), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("load digest items for %s: %w", userID, err)
		}
		items := make([]domain.DigestItem, 0, len(raw))
		for _, r := range raw {
			var item domain.DigestItem
			if err := json.Unmarshal([]byte(r), &item); err != nil {
				continue
			}
			items = append(items, item)
		}

		entries = append(entries, domain.DigestBatchEntry{
			UserID:    userID,
			Frequency: frequency,
			Items:     items,
			NextFlush: time.Unix(int64(z.Score), 0),
		})
	}
	return entries, nil
}

// Flush clears a user's accumulated batch after ProcessDigest has rendered
// and delivered (or dry-run inspected) it.
func (a *DigestAccumulator) Flush(ctx context.Context, userID uuid.UUID, frequency domain.Frequency) error {
	pipe := a.client.Pipeline()
	pipe.Del(ctx, digestItemsKey(frequency, userID))
	pipe.ZRem(ctx, digestScheduleKey(frequency), userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flush digest batch: %w", err)
	}
	return nil
}
