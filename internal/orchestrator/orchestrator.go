// Package orchestrator implements the per-request decisioning pipeline:
// validate, resolve channels, gate on preferences/quiet-hours/DND, deliver
// or defer each resolved channel, and assemble the aggregate result. It is
// the direct generalization of the reference notification service's
// Enqueue/Process split to a multi-channel, multi-provider request instead
// of a single Telegram send.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/repository"
)

// Repository is the subset of the data-access layer the orchestrator calls
// directly (translation/queue-worker-only methods live behind their own
// narrower interfaces elsewhere).
type Repository interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (domain.NotificationPreferences, error)
	ListActiveDeviceTokens(ctx context.Context, userID uuid.UUID) ([]domain.DeviceToken, error)
	DeactivateToken(ctx context.Context, token string) error
	InsertDeliveryLog(ctx context.Context, rec domain.DeliveryRecord) error
	QueueInsert(ctx context.Context, item domain.QueueItem) error
	GetTemplate(ctx context.Context, templateID, locale string) (repository.Template, error)
}

// DigestQueue is the subset of the Redis digest accumulator the orchestrator
// needs to defer a channel delivery into a future batch instead of sending
// it now.
type DigestQueue interface {
	Add(ctx context.Context, userID uuid.UUID, frequency domain.Frequency, item domain.DigestItem, nextFlush time.Time) error
}

// Clock exists so tests can pin "now" instead of racing time.Now.
type Clock func() time.Time

const (
	defaultChannelDeadline  = 15 * time.Second
	criticalChannelDeadline = 30 * time.Second
	maxBatchSize            = 1000
)

// channelDeadline returns the per-channel invocation deadline: 30s for
// critical-priority sends, 15s otherwise, per the delivery pipeline's
// instant-path step.
func channelDeadline(now time.Time, priority domain.Priority) time.Time {
	if priority == domain.PriorityCritical {
		return now.Add(criticalChannelDeadline)
	}
	return now.Add(defaultChannelDeadline)
}
