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

type fakeQueueRepo struct {
	claimed     []domain.QueueItem
	claimErr    error
	marked      []domain.QueueItemStatus
	markErr     error
	resetCount  int64
	resetErr    error
}

func (f *fakeQueueRepo) QueueClaim(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.claimed, nil
}

func (f *fakeQueueRepo) QueueMarkStatus(ctx context.Context, id uuid.UUID, status domain.QueueItemStatus, attempts int, lastError string) error {
	f.marked = append(f.marked, status)
	return f.markErr
}

func (f *fakeQueueRepo) QueueResetStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	return f.resetCount, f.resetErr
}

type fakeSender struct {
	result domain.SendResult
	err    error
}

func (f *fakeSender) Send(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	return f.result, f.err
}

func newTestWorker(sender Sender, repo QueueRepository, digest DigestQueue) *Worker {
	w := New(sender, repo, digest, DefaultConfig())
	w.nowFn = func() time.Time { return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestProcessQueue_CompletesOnSuccess(t *testing.T) {
	item := domain.QueueItem{ID: uuid.New(), Payload: domain.Notification{Type: domain.TypeNewMessage}, Attempts: 0}
	repo := &fakeQueueRepo{claimed: []domain.QueueItem{item}}
	sender := &fakeSender{result: domain.SendResult{Success: true}}
	w := newTestWorker(sender, repo, nil)

	completed, failed, err := w.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)
	require.Len(t, repo.marked, 1)
	assert.Equal(t, domain.QueueItemCompleted, repo.marked[0])
}

func TestProcessQueue_RetriesRetryableFailureUnderMaxAttempts(t *testing.T) {
	item := domain.QueueItem{ID: uuid.New(), Payload: domain.Notification{Type: domain.TypeNewMessage}, Attempts: 0}
	repo := &fakeQueueRepo{claimed: []domain.QueueItem{item}}
	sender := &fakeSender{result: domain.SendResult{
		Success:  false,
		Channels: []domain.DeliveryOutcome{{Status: domain.DeliveryStatusFailed, Retryable: true, ErrorCode: "PROVIDER_TIMEOUT"}},
	}}
	w := newTestWorker(sender, repo, nil)

	completed, failed, err := w.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 0, failed)
	require.Len(t, repo.marked, 1)
	assert.Equal(t, domain.QueueItemPending, repo.marked[0])
}

func TestProcessQueue_FailsAfterMaxAttempts(t *testing.T) {
	item := domain.QueueItem{ID: uuid.New(), Payload: domain.Notification{Type: domain.TypeNewMessage}, Attempts: 2}
	repo := &fakeQueueRepo{claimed: []domain.QueueItem{item}}
	sender := &fakeSender{result: domain.SendResult{
		Success:  false,
		Channels: []domain.DeliveryOutcome{{Status: domain.DeliveryStatusFailed, Retryable: true, ErrorCode: "PROVIDER_TIMEOUT"}},
	}}
	w := newTestWorker(sender, repo, nil)

	completed, failed, err := w.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, domain.QueueItemFailed, repo.marked[0])
}

func TestProcessQueue_NonRetryableFailsImmediately(t *testing.T) {
	item := domain.QueueItem{ID: uuid.New(), Payload: domain.Notification{Type: domain.TypeNewMessage}, Attempts: 0}
	repo := &fakeQueueRepo{claimed: []domain.QueueItem{item}}
	sender := &fakeSender{result: domain.SendResult{
		Success:  false,
		Channels: []domain.DeliveryOutcome{{Status: domain.DeliveryStatusFailed, Retryable: false, ErrorCode: "INVALID_TOKEN"}},
	}}
	w := newTestWorker(sender, repo, nil)

	_, failed, err := w.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

func TestProcessQueue_SendErrorFailsItem(t *testing.T) {
	item := domain.QueueItem{ID: uuid.New(), Payload: domain.Notification{Type: domain.TypeNewMessage}, Attempts: 0}
	repo := &fakeQueueRepo{claimed: []domain.QueueItem{item}}
	sender := &fakeSender{err: errors.New("boom")}
	w := newTestWorker(sender, repo, nil)

	_, failed, err := w.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, domain.QueueItemFailed, repo.marked[0])
}

func TestProcessQueue_ClaimErrorPropagates(t *testing.T) {
	repo := &fakeQueueRepo{claimErr: errors.New("db down")}
	w := newTestWorker(&fakeSender{}, repo, nil)

	_, _, err := w.ProcessQueue(context.Background(), 10)
	assert.Error(t, err)
}

func TestProcessQueue_ResetStuckErrorDoesNotAbortPass(t *testing.T) {
	item := domain.QueueItem{ID: uuid.New(), Payload: domain.Notification{Type: domain.TypeNewMessage}}
	repo := &fakeQueueRepo{claimed: []domain.QueueItem{item}, resetErr: errors.New("redis down")}
	sender := &fakeSender{result: domain.SendResult{Success: true}}
	w := newTestWorker(sender, repo, nil)

	completed, _, err := w.ProcessQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}
