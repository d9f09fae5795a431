package inapp

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

type fakeRecorder struct {
	recorded []domain.Notification
	err      error
}

func (f *fakeRecorder) RecordInApp(ctx context.Context, n domain.Notification) error {
	f.recorded = append(f.recorded, n)
	return f.err
}

type fakePublisher struct {
	channel string
	message interface{}
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	f.channel = channel
	f.message = message
	return f.err
}

func TestAdapter_SendRecordsAndPublishes(t *testing.T) {
	recorder := &fakeRecorder{}
	publisher := &fakePublisher{}
	adapter := NewAdapter(publisher, recorder)

	userID := uuid.New()
	n := domain.Notification{ID: uuid.New(), UserID: userID, Type: domain.TypeNewMessage, Title: "hi", CreatedAt: time.Now()}

	outcome, err := adapter.Send(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusDelivered, outcome.Status)
	assert.Len(t, recorder.recorded, 1)
	assert.Equal(t, "notifications:"+userID.String(), publisher.channel)
}

func TestAdapter_SendFailsWhenRecordFails(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("db down")}
	publisher := &fakePublisher{}
	adapter := NewAdapter(publisher, recorder)

	outcome, err := adapter.Send(context.Background(), domain.Notification{ID: uuid.New(), UserID: uuid.New()})
	assert.Error(t, err)
	assert.Equal(t, domain.DeliveryStatusFailed, outcome.Status)
	assert.True(t, outcome.Retryable)
}

func TestAdapter_SendToleratesPublishFailure(t *testing.T) {
	recorder := &fakeRecorder{}
	publisher := &fakePublisher{err: errors.New("redis down")}
	adapter := NewAdapter(publisher, recorder)

	outcome, err := adapter.Send(context.Background(), domain.Notification{ID: uuid.New(), UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusDelivered, outcome.Status)
}

func TestAdapter_Name(t *testing.T) {
	adapter := NewAdapter(&fakePublisher{}, &fakeRecorder{})
	assert.Equal(t, "in_app", adapter.Name())
}
