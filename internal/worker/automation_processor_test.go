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

type fakeOrdering struct {
	pending    []uuid.UUID
	removed    []uuid.UUID
	dlq        []uuid.UUID
	lockResult bool
	lockErr    error
	dequeueErr error
}

func (f *fakeOrdering) Dequeue(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if f.dequeueErr != nil {
		return nil, f.dequeueErr
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	batch := f.pending[:limit]
	f.pending = f.pending[limit:]
	return batch, nil
}

func (f *fakeOrdering) Remove(ctx context.Context, id uuid.UUID) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeOrdering) MoveToDLQ(ctx context.Context, id uuid.UUID) error {
	f.dlq = append(f.dlq, id)
	return nil
}

func (f *fakeOrdering) AcquireLock(ctx context.Context, chunkKey, workerID string, ttl time.Duration) (bool, error) {
	return f.lockResult, f.lockErr
}

func (f *fakeOrdering) ReleaseLock(ctx context.Context, chunkKey, workerID string) error {
	return nil
}

type fakeJobStore struct {
	jobs   map[uuid.UUID]domain.AutomationJob
	getErr error
}

func (f *fakeJobStore) GetAutomationJob(ctx context.Context, id uuid.UUID) (domain.AutomationJob, error) {
	if f.getErr != nil {
		return domain.AutomationJob{}, f.getErr
	}
	job, ok := f.jobs[id]
	if !ok {
		return domain.AutomationJob{}, errors.New("not found")
	}
	return job, nil
}

type fakeTemplateSender struct {
	result domain.SendResult
	err    error
}

func (f *fakeTemplateSender) Send(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	return domain.SendResult{}, errors.New("unused")
}

func (f *fakeTemplateSender) SendTemplate(ctx context.Context, userID uuid.UUID, templateID, locale string, vars map[string]string) (domain.SendResult, error) {
	return f.result, f.err
}

func TestProcessAutomationQueue_DispatchesAndRemoves(t *testing.T) {
	id := uuid.New()
	ordering := &fakeOrdering{pending: []uuid.UUID{id}, lockResult: true}
	store := &fakeJobStore{jobs: map[uuid.UUID]domain.AutomationJob{id: {ID: id, UserID: uuid.New(), TemplateID: "welcome"}}}
	sender := &fakeTemplateSender{result: domain.SendResult{Success: true}}
	w := newTestWorker(sender, nil, nil)

	dispatched, failed, err := w.ProcessAutomationQueue(context.Background(), ordering, store, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []uuid.UUID{id}, ordering.removed)
	assert.Empty(t, ordering.dlq)
}

func TestProcessAutomationQueue_MovesFailedJobToDLQ(t *testing.T) {
	id := uuid.New()
	ordering := &fakeOrdering{pending: []uuid.UUID{id}, lockResult: true}
	store := &fakeJobStore{jobs: map[uuid.UUID]domain.AutomationJob{id: {ID: id, UserID: uuid.New(), TemplateID: "welcome"}}}
	sender := &fakeTemplateSender{err: errors.New("smtp down")}
	w := newTestWorker(sender, nil, nil)

	dispatched, failed, err := w.ProcessAutomationQueue(context.Background(), ordering, store, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, dispatched)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []uuid.UUID{id}, ordering.dlq)
	assert.Empty(t, ordering.removed)
}

func TestProcessAutomationQueue_UnknownJobMovesToDLQ(t *testing.T) {
	id := uuid.New()
	ordering := &fakeOrdering{pending: []uuid.UUID{id}, lockResult: true}
	store := &fakeJobStore{jobs: map[uuid.UUID]domain.AutomationJob{}}
	w := newTestWorker(&fakeTemplateSender{}, nil, nil)

	_, failed, err := w.ProcessAutomationQueue(context.Background(), ordering, store, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []uuid.UUID{id}, ordering.dlq)
}

func TestProcessAutomationQueue_StopsWhenLockNotAcquired(t *testing.T) {
	id := uuid.New()
	ordering := &fakeOrdering{pending: []uuid.UUID{id}, lockResult: false}
	store := &fakeJobStore{jobs: map[uuid.UUID]domain.AutomationJob{id: {ID: id}}}
	w := newTestWorker(&fakeTemplateSender{}, nil, nil)

	dispatched, failed, err := w.ProcessAutomationQueue(context.Background(), ordering, store, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, dispatched)
	assert.Equal(t, 0, failed)
}

func TestProcessAutomationQueue_EmptyQueueReturnsImmediately(t *testing.T) {
	ordering := &fakeOrdering{lockResult: true}
	store := &fakeJobStore{jobs: map[uuid.UUID]domain.AutomationJob{}}
	w := newTestWorker(&fakeTemplateSender{}, nil, nil)

	dispatched, failed, err := w.ProcessAutomationQueue(context.Background(), ordering, store, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, dispatched)
	assert.Equal(t, 0, failed)
}

func TestProcessAutomationQueue_DequeueErrorPropagates(t *testing.T) {
	ordering := &fakeOrdering{dequeueErr: errors.New("redis down")}
	store := &fakeJobStore{}
	w := newTestWorker(&fakeTemplateSender{}, nil, nil)

	_, _, err := w.ProcessAutomationQueue(context.Background(), ordering, store, 10, 5)
	assert.Error(t, err)
}
