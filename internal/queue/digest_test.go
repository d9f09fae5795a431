package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notihub/notihub/internal/domain"
)

func TestDigestAccumulator_AddThenDueReturnsBatch(t *testing.T) {
	client := newTestRedisClient(t)
	acc := NewDigestAccumulator(client)
	ctx := context.Background()
	userID := uuid.New()
	defer func() { _ = acc.Flush(ctx, userID, domain.FrequencyDaily) }()

	due := time.Now().Add(-time.Minute)
	item := domain.DigestItem{Type: domain.TypeNewMessage, Category: domain.CategoryChats, Title: "New message", Body: "Hi"}
	require.NoError(t, acc.Add(ctx, userID, domain.FrequencyDaily, item, due))

	batches, err := acc.Due(ctx, domain.FrequencyDaily, time.Now(), 50)
	assert.NoError(t, err)

	var found *domain.DigestBatchEntry
	for i := range batches {
		if batches[i].UserID == userID {
			found = &batches[i]
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "New message", found.Items[0].Title)
}

func TestDigestAccumulator_SecondAddDoesNotPushDeadlineOut(t *testing.T) {
	client := newTestRedisClient(t)
	acc := NewDigestAccumulator(client)
	ctx := context.Background()
	userID := uuid.New()
	defer func() { _ = acc.Flush(ctx, userID, domain.FrequencyHourly) }()

	first := time.Now().Add(time.Hour)
	second := first.Add(time.Hour)
	item := domain.DigestItem{Type: domain.TypeNewMessage, Category: domain.CategoryChats, Title: "a", Body: "b"}
	require.NoError(t, acc.Add(ctx, userID, domain.FrequencyHourly, item, first))
	require.NoError(t, acc.Add(ctx, userID, domain.FrequencyHourly, item, second))

	batches, err := acc.Due(ctx, domain.FrequencyHourly, first.Add(time.Minute), 50)
	assert.NoError(t, err)
	var found *domain.DigestBatchEntry
	for i := range batches {
		if batches[i].UserID == userID {
			found = &batches[i]
		}
	}
	require.NotNil(t, found, "the first next-flush time must still govern this batch")
	assert.Len(t, found.Items, 2)
}

func TestDigestAccumulator_FlushClearsBatch(t *testing.T) {
	client := newTestRedisClient(t)
	acc := NewDigestAccumulator(client)
	ctx := context.Background()
	userID := uuid.New()

	due := time.Now().Add(-time.Minute)
	item := domain.DigestItem{Type: domain.TypeNewMessage, Category: domain.CategoryChats, Title: "a", Body: "b"}
	require.NoError(t, acc.Add(ctx, userID, domain.FrequencyWeekly, item, due))
	require.NoError(t, acc.Flush(ctx, userID, domain.FrequencyWeekly))

	batches, err := acc.Due(ctx, domain.FrequencyWeekly, time.Now(), 50)
	assert.NoError(t, err)
	for _, b := range batches {
		assert.NotEqual(t, userID, b.UserID, "a flushed batch must not reappear as due")
	}
}
