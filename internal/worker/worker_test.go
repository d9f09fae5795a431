package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notihub/notihub/internal/domain"
)

func TestWorker_StartProcessesQueueUntilStopped(t *testing.T) {
	var calls int32
	repo := &fakeQueueRepo{}
	sender := &fakeSenderFunc{fn: func(domain.SendRequest) (domain.SendResult, error) {
		atomic.AddInt32(&calls, 1)
		return domain.SendResult{Success: true}, nil
	}}
	cfg := DefaultConfig()
	cfg.QueueBatchSize = 5
	w := New(sender, repo, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return w.IsRunning() }, time.Second, 5*time.Millisecond)
	w.Stop()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.False(t, w.IsRunning())
}

func TestWorker_StartTwiceReturnsError(t *testing.T) {
	w := New(&fakeSender{}, &fakeQueueRepo{}, nil, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx)
	require.Eventually(t, func() bool { return w.IsRunning() }, time.Second, 5*time.Millisecond)

	err := w.Start(ctx)
	assert.Error(t, err)
	w.Stop()
}

func TestWorker_AdaptPollIntervalSpeedsUpWhenBusyAndSlowsWhenIdle(t *testing.T) {
	w := New(&fakeSender{}, &fakeQueueRepo{}, nil, DefaultConfig())
	w.pollInterval = maxPollInterval

	w.adaptPollInterval(true)
	assert.Equal(t, minPollInterval, w.pollInterval)

	w.adaptPollInterval(false)
	assert.Greater(t, w.pollInterval, minPollInterval)
}

type fakeSenderFunc struct {
	fn func(domain.SendRequest) (domain.SendResult, error)
}

func (f *fakeSenderFunc) Send(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	return f.fn(req)
}
