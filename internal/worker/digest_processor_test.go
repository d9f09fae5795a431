package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notihub/notihub/internal/domain"
)

type fakeDigestQueue struct {
	due      []domain.DigestBatchEntry
	dueErr   error
	flushed  []uuid.UUID
	flushErr error
}

func (f *fakeDigestQueue) Due(ctx context.Context, frequency domain.Frequency, now time.Time, limit int) ([]domain.DigestBatchEntry, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	return f.due, nil
}

func (f *fakeDigestQueue) Flush(ctx context.Context, userID uuid.UUID, frequency domain.Frequency) error {
	f.flushed = append(f.flushed, userID)
	return f.flushErr
}

func TestProcessDigest_FlushesOnSuccessfulSend(t *testing.T) {
	userID := uuid.New()
	entry := domain.DigestBatchEntry{
		UserID:    userID,
		Frequency: domain.FrequencyDaily,
		Items: []domain.DigestItem{
			{Type: domain.TypeNewMessage, Category: domain.CategorySocial, Title: "New message", Body: "Hi", CreatedAt: time.Now()},
		},
	}
	digest := &fakeDigestQueue{due: []domain.DigestBatchEntry{entry}}
	sender := &fakeSender{result: domain.SendResult{Success: true}}
	w := newTestWorker(sender, nil, digest)

	flushed, failed, err := w.ProcessDigest(context.Background(), domain.FrequencyDaily, 100, false)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []uuid.UUID{userID}, digest.flushed)
}

func TestProcessDigest_SkipsEmptyEntries(t *testing.T) {
	entry := domain.DigestBatchEntry{UserID: uuid.New(), Frequency: domain.FrequencyDaily, Items: nil}
	digest := &fakeDigestQueue{due: []domain.DigestBatchEntry{entry}}
	sender := &fakeSender{result: domain.SendResult{Success: true}}
	w := newTestWorker(sender, nil, digest)

	flushed, failed, err := w.ProcessDigest(context.Background(), domain.FrequencyDaily, 100, false)
	require.NoError(t, err)
	assert.Equal(t, 0, flushed)
	assert.Equal(t, 0, failed)
	assert.Empty(t, digest.flushed)
}

func TestProcessDigest_SendFailureCountsAsFailedAndSkipsFlush(t *testing.T) {
	entry := domain.DigestBatchEntry{
		UserID:    uuid.New(),
		Frequency: domain.FrequencyDaily,
		Items:     []domain.DigestItem{{Title: "x", Body: "y", CreatedAt: time.Now()}},
	}
	digest := &fakeDigestQueue{due: []domain.DigestBatchEntry{entry}}
	sender := &fakeSender{err: errors.New("smtp down")}
	w := newTestWorker(sender, nil, digest)

	flushed, failed, err := w.ProcessDigest(context.Background(), domain.FrequencyDaily, 100, false)
	require.NoError(t, err)
	assert.Equal(t, 0, flushed)
	assert.Equal(t, 1, failed)
	assert.Empty(t, digest.flushed)
}

func TestProcessDigest_DryRunNeitherSendsNorFlushes(t *testing.T) {
	entry := domain.DigestBatchEntry{
		UserID:    uuid.New(),
		Frequency: domain.FrequencyDaily,
		Items:     []domain.DigestItem{{Title: "x", Body: "y", CreatedAt: time.Now()}},
	}
	digest := &fakeDigestQueue{due: []domain.DigestBatchEntry{entry}}
	sender := &fakeSender{}
	w := newTestWorker(sender, nil, digest)

	flushed, failed, err := w.ProcessDigest(context.Background(), domain.FrequencyDaily, 100, true)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)
	assert.Equal(t, 0, failed)
	assert.Empty(t, digest.flushed)
}

func TestProcessDigest_DueErrorPropagates(t *testing.T) {
	digest := &fakeDigestQueue{dueErr: errors.New("redis down")}
	w := newTestWorker(&fakeSender{}, nil, digest)

	_, _, err := w.ProcessDigest(context.Background(), domain.FrequencyDaily, 100, false)
	assert.Error(t, err)
}

func TestRenderDigestRequest_GroupsByCategoryWithOverflow(t *testing.T) {
	now := time.Now()
	items := make([]domain.DigestItem, 0, 7)
	for i := 0; i < 7; i++ {
		items = append(items, domain.DigestItem{
			Category:  domain.CategorySocial,
			Title:     "item",
			Body:      "body",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
	}
	entry := domain.DigestBatchEntry{UserID: uuid.New(), Frequency: domain.FrequencyWeekly, Items: items}

	req := renderDigestRequest(entry)
	assert.Equal(t, domain.TypeDigest, req.Type)
	assert.Equal(t, []domain.Channel{domain.ChannelEmail}, req.Channels)
	assert.Contains(t, req.Body, "and 2 more")
}
