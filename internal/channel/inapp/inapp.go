// Package inapp delivers the in-app channel: a row written to the in-app
// notifications store plus a Redis pub/sub event so a connected client can render the
// notification without polling.
package inapp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
)

// Publisher is the subset of the Redis client the in-app channel needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Recorder persists the in-app notification so a client that connects later
// can still fetch its backlog (the delivery log itself, via the
// repository's InsertDeliveryLog, is orthogonal to this).
type Recorder interface {
	RecordInApp(ctx context.Context, n domain.Notification) error
}

type Adapter struct {
	publisher Publisher
	recorder  Recorder
}

func NewAdapter(publisher Publisher, recorder Recorder) *Adapter {
	return &Adapter{publisher: publisher, recorder: recorder}
}

func (a *Adapter) Name() string { return "in_app" }

type event struct {
	NotificationID string            `json:"notificationId"`
	Type           domain.Type       `json:"type"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Data           map[string]string `json:"data,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func (a *Adapter) Send(ctx context.Context, n domain.Notification) (domain.DeliveryOutcome, error) {
	if err := a.recorder.RecordInApp(ctx, n); err != nil {
		return domain.DeliveryOutcome{Channel: domain.ChannelInApp, Provider: "in_app", Status: domain.DeliveryStatusFailed, Retryable: true}, err
	}

	payload, _ := json.Marshal(event{
		NotificationID: n.ID.String(),
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		Data:           n.Data,
		CreatedAt:      n.CreatedAt,
	})
	channel := "notifications:" + n.UserID.String()
	_ = a.publisher.Publish(ctx, channel, payload) // best-effort: a missed live push is recovered by the client's next fetch

	return domain.DeliveryOutcome{Channel: domain.ChannelInApp, Provider: "in_app", Status: domain.DeliveryStatusDelivered}, nil
}

func (a *Adapter) Health(ctx context.Context) monitoring.ProviderHealth {
	return monitoring.ProviderHealth{Status: monitoring.HealthStatusHealthy}
}
