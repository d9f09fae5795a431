package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/notihub/notihub/internal/domain"
)

// AutomationOrderingQueue is the Redis-ZSET priority/FIFO layer that decides
// WHICH scheduled jobs are due and locks a chunk of them against concurrent
// drainers; it does not itself execute or retry a send. ProcessAutomationQueue
// sends each job through the engine, and cmd/worker runs that drain as an
// asynq task.
type AutomationOrderingQueue interface {
	Dequeue(ctx context.Context, limit int) ([]uuid.UUID, error)
	Remove(ctx context.Context, id uuid.UUID) error
	MoveToDLQ(ctx context.Context, id uuid.UUID) error
	AcquireLock(ctx context.Context, chunkKey, workerID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, chunkKey, workerID string) error
}

// AutomationJobStore resolves a queued id to the template-backed job it
// names.
type AutomationJobStore interface {
	GetAutomationJob(ctx context.Context, id uuid.UUID) (domain.AutomationJob, error)
}

// ProcessAutomationQueue drains up to batchSize due jobs in chunks of
// concurrency, each chunk guarded by a short-lived lock so two worker
// processes never double-send the same chunk. A job whose template lookup
// or send fails is moved to the dead-letter set rather than retried inline;
// it returns to the pending set only through ReplayDLQ. When another worker
// holds the current chunk's lock, the drain stops. asynq retries the whole
// drain task only when this returns an error (see cmd/worker).
func (w *Worker) ProcessAutomationQueue(ctx context.Context, ordering AutomationOrderingQueue, jobs AutomationJobStore, batchSize, concurrency int) (dispatched, failed int, err error) {
	drained := 0
	for drained < batchSize {
		remaining := batchSize - drained
		chunkSize := concurrency
		if remaining < chunkSize {
			chunkSize = remaining
		}

		ids, dequeueErr := ordering.Dequeue(ctx, chunkSize)
		if dequeueErr != nil {
			return dispatched, failed, dequeueErr
		}
		if len(ids) == 0 {
			break
		}

		chunkKey := fmt.Sprintf("automation-chunk-%d", drained/concurrency)
		locked, lockErr := ordering.AcquireLock(ctx, chunkKey, w.workerID, w.config.AutomationLockTTL)
		if lockErr != nil {
			w.captureError(lockErr, "automation_acquire_lock")
			continue
		}
		if !locked {
			break
		}

		for _, id := range ids {
			if err := w.dispatchAutomationJob(ctx, jobs, id); err != nil {
				log.Printf("[%s] automation job %s failed: %v", w.workerID, id, err)
				w.captureError(err, "process_automation_job")
				if dlqErr := ordering.MoveToDLQ(ctx, id); dlqErr != nil {
					w.captureError(dlqErr, "automation_move_to_dlq")
				}
				failed++
				continue
			}
			if rmErr := ordering.Remove(ctx, id); rmErr != nil {
				w.captureError(rmErr, "automation_remove")
			}
			dispatched++
		}

		if relErr := ordering.ReleaseLock(ctx, chunkKey, w.workerID); relErr != nil {
			w.captureError(relErr, "automation_release_lock")
		}

		drained += len(ids)
	}

	return dispatched, failed, nil
}

// dispatchAutomationJob resolves a queued id to its template binding and
// re-enters the orchestrator as a template-rendered send.
func (w *Worker) dispatchAutomationJob(ctx context.Context, jobs AutomationJobStore, id uuid.UUID) error {
	job, err := jobs.GetAutomationJob(ctx, id)
	if err != nil {
		return err
	}

	templated, ok := w.engine.(TemplateSender)
	if !ok {
		return fmt.Errorf("engine does not support template sends")
	}

	result, err := templated.SendTemplate(ctx, job.UserID, job.TemplateID, job.Locale, job.Vars)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("automation job %s delivered to no channel", job.ID)
	}
	return nil
}

// TemplateSender is the subset of the orchestrator's entry points
// ProcessAutomationQueue needs beyond the plain Sender interface.
type TemplateSender interface {
	SendTemplate(ctx context.Context, userID uuid.UUID, templateID, locale string, vars map[string]string) (domain.SendResult, error)
}
