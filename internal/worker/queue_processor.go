package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/notihub/notihub/internal/domain"
)

// QueueRepository is the subset of the data-access layer ProcessQueue needs.
type QueueRepository interface {
	QueueClaim(ctx context.Context, limit int) ([]domain.QueueItem, error)
	QueueMarkStatus(ctx context.Context, id uuid.UUID, status domain.QueueItemStatus, attempts int, lastError string) error
	QueueResetStuck(ctx context.Context, timeout time.Duration) (int64, error)
}

// Sender is the orchestrator entry point every processor re-enters a
// notification through.
type Sender interface {
	Send(ctx context.Context, req domain.SendRequest) (domain.SendResult, error)
}

// notificationToRequest rebuilds the SendRequest a durable-queue item's
// stored Notification was originally created from. Channels stays pinned to
// the subset deferred into this item — a queue item must never widen its
// resolved channel set on retry.
func notificationToRequest(n domain.Notification) domain.SendRequest {
	return domain.SendRequest{
		UserID: n.UserID, Type: n.Type, Title: n.Title, Body: n.Body, Data: n.Data,
		ImageURL: n.ImageURL, Sound: n.Sound, Badge: n.Badge, CollapseKey: n.CollapseKey,
		TTLSeconds: n.TTLSeconds, CategoryID: n.CategoryID, ThreadID: n.ThreadID,
		Priority: n.Priority, Channels: n.Channels,
	}
}

// ProcessQueue implements the generic scheduled/retryable-item worker pass:
// reclaim anything stuck, claim up to limit due items, deliver each through
// the orchestrator, and update its status per the outcome.
func (w *Worker) ProcessQueue(ctx context.Context, limit int) (completed, failed int, err error) {
	if _, resetErr := w.repo.QueueResetStuck(ctx, w.config.StuckItemTimeout); resetErr != nil {
		w.captureError(resetErr, "reset_stuck_queue_items")
	}

	items, err := w.repo.QueueClaim(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, item := range items {
		result, sendErr := w.engine.Send(ctx, notificationToRequest(item.Payload))
		status, lastError := w.queueOutcome(item, result, sendErr)
		if status == domain.QueueItemCompleted {
			completed++
		} else if status == domain.QueueItemFailed {
			failed++
		}
		if markErr := w.repo.QueueMarkStatus(ctx, item.ID, status, item.Attempts+1, lastError); markErr != nil {
			w.captureError(markErr, "mark_queue_item_status")
		}
	}
	return completed, failed, nil
}

// queueOutcome maps a Send outcome to the item's next status per the
// claim-then-update retry policy: success completes it, a retryable failure
// goes back to pending until MAX_ATTEMPTS is reached, anything else fails it
// outright.
func (w *Worker) queueOutcome(item domain.QueueItem, result domain.SendResult, sendErr error) (domain.QueueItemStatus, string) {
	if sendErr != nil {
		return domain.QueueItemFailed, sendErr.Error()
	}
	if result.Success {
		return domain.QueueItemCompleted, ""
	}

	retryable, lastError := false, ""
	for _, o := range result.Channels {
		if o.Status == domain.DeliveryStatusFailed {
			lastError = o.ErrorCode
			if o.Retryable {
				retryable = true
			}
		}
	}
	if retryable && item.Attempts+1 < w.config.MaxAttempts {
		return domain.QueueItemPending, lastError
	}
	return domain.QueueItemFailed, lastError
}
