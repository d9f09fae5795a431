// Package worker drains the durable queues that back deferred, digested,
// and scheduled notification delivery: the retryable per-item queue, the
// per-user digest accumulator, and the automation/drip-campaign queue.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

// Worker polls the durable queue and hands claimed items back to the
// orchestrator. One Worker drives ProcessQueue continuously via Start/Stop;
// ProcessDigest and ProcessAutomationQueue are invoked on their own cron/task
// schedules by the caller (see cmd/worker) but share this struct's
// dependencies and error reporting.
type Worker struct {
	engine Sender
	repo   QueueRepository
	digest DigestQueue

	translationQueue TranslationQueueRepository
	translator       TranslationEngine

	config   Config
	workerID string

	stopCh       chan struct{}
	wg           sync.WaitGroup
	isRunning    bool
	mu           sync.Mutex
	pollInterval time.Duration

	nowFn func() time.Time
}

// New builds a Worker. nowFn defaults to time.Now; tests substitute a fixed
// clock so digest due-checks are deterministic.
func New(engine Sender, repo QueueRepository, digest DigestQueue, config Config) *Worker {
	return &Worker{
		engine:       engine,
		repo:         repo,
		digest:       digest,
		config:       config,
		workerID:     fmt.Sprintf("%s-%s", config.WorkerPrefix, uuid.New().String()[:8]),
		stopCh:       make(chan struct{}),
		pollInterval: minPollInterval,
		nowFn:        time.Now,
	}
}

func (w *Worker) now() time.Time {
	if w.nowFn != nil {
		return w.nowFn()
	}
	return time.Now()
}

// Start runs the adaptive-polling ProcessQueue loop until the context is
// canceled or Stop is called. Blocking; run it in a goroutine.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("worker already running")
	}
	w.isRunning = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	log.Printf("[%s] starting queue worker", w.workerID)

	w.wg.Add(1)
	defer w.wg.Done()

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.isRunning = false
			w.mu.Unlock()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-timer.C:
			completed, failed, err := w.ProcessQueue(ctx, w.config.QueueBatchSize)
			if err != nil {
				log.Printf("[%s] error processing queue: %v", w.workerID, err)
				w.captureError(err, "process_queue")
				w.adaptPollInterval(false)
				timer.Reset(w.pollInterval)
				continue
			}

			w.adaptPollInterval(completed+failed > 0)
			timer.Reset(w.pollInterval)
		}
	}
}

// adaptPollInterval speeds polling up to minPollInterval when there was work
// to do, or backs it off exponentially toward maxPollInterval when idle.
func (w *Worker) adaptPollInterval(hasWork bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if hasWork {
		w.pollInterval = minPollInterval
		return
	}
	next := time.Duration(float64(w.pollInterval) * pollBackoffRate)
	if next > maxPollInterval {
		next = maxPollInterval
	}
	w.pollInterval = next
}

// Stop signals the polling loop to exit and waits for it to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.isRunning = false
	w.mu.Unlock()

	w.wg.Wait()
	log.Printf("[%s] queue worker stopped", w.workerID)
}

// IsRunning reports whether the polling loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

// captureError reports a processing failure to Sentry tagged with the
// worker and the stage it happened in.
func (w *Worker) captureError(err error, stage string) {
	if err == nil {
		return
	}

	hub := sentry.CurrentHub().Clone()
	scope := hub.Scope()
	scope.SetTag("service", "notification_worker")
	scope.SetTag("worker_id", w.workerID)
	scope.SetTag("stage", stage)
	hub.CaptureException(err)
}
