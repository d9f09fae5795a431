package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/channel/email"
	"github.com/notihub/notihub/internal/channel/inapp"
	"github.com/notihub/notihub/internal/channel/push"
	"github.com/notihub/notihub/internal/channel/sms"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/repository"
)

// MetricsRecorder is the subset of monitoring.MetricsCollector the engine
// needs to report per-channel delivery outcomes. Nil-safe: a nil recorder
// disables metrics recording entirely.
type MetricsRecorder interface {
	RecordNotificationSent(channel, status string, duration time.Duration)
}

// Engine is the assembled orchestrator: one pipeline shared by the HTTP
// send endpoints and the queue/digest workers, the same split the
// reference Service/Worker pair used for a single channel generalized here
// across push, email, SMS, and in-app.
type Engine struct {
	repo          Repository
	pushRouter    *push.Router
	emailSelector *email.Selector
	suppression   email.SuppressionChecker
	sms           *sms.Adapter
	inapp         *inapp.Adapter
	digest        DigestQueue
	clock         Clock
	metrics       MetricsRecorder
}

// Deps bundles Engine's collaborators so New's signature stays readable as
// the channel set grows.
type Deps struct {
	Repo          Repository
	PushRouter    *push.Router
	EmailSelector *email.Selector
	Suppression   email.SuppressionChecker
	SMS           *sms.Adapter
	InApp         *inapp.Adapter
	Digest        DigestQueue
	Clock         Clock
	Metrics       MetricsRecorder
}

func New(d Deps) *Engine {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &Engine{
		repo: d.Repo, pushRouter: d.PushRouter, emailSelector: d.EmailSelector,
		suppression: d.Suppression, sms: d.SMS, inapp: d.InApp, digest: d.Digest, clock: d.Clock,
		metrics: d.Metrics,
	}
}

// NewWithRepository is a convenience constructor that wraps a concrete
// *repository.Repository in the suppression-checker adapter so callers
// wiring the binary don't need to know about the naming mismatch between
// the two packages.
func NewWithRepository(repo *repository.Repository, deps Deps) *Engine {
	deps.Repo = repo
	deps.Suppression = newSuppressionAdapter(repo)
	return New(deps)
}

func buildNotification(req domain.SendRequest, now time.Time) domain.Notification {
	priority := req.Priority
	if priority == "" {
		priority = domain.DefaultPriorityForType(req.Type)
	}
	return domain.Notification{
		ID: uuid.New(), UserID: req.UserID, Type: req.Type, Category: domain.CategoryForType(req.Type),
		Title: req.Title, Body: req.Body, Data: req.Data, ImageURL: req.ImageURL, Sound: req.Sound,
		Badge: req.Badge, CollapseKey: req.CollapseKey, TTLSeconds: req.TTLSeconds,
		CategoryID: req.CategoryID, ThreadID: req.ThreadID, Priority: priority,
		ScheduledFor: req.ScheduledFor, Channels: req.Channels, CreatedAt: now,
	}
}

// Send runs the full seven-step pipeline for one request.
func (e *Engine) Send(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	now := e.clock()
	if err := domain.ValidateSendRequest(req, now); err != nil {
		return domain.SendResult{}, err
	}

	n := buildNotification(req, now)
	prefs, err := e.repo.GetPreferences(ctx, req.UserID)
	if err != nil {
		return domain.SendResult{}, err
	}

	resolved := resolveChannels(n, prefs)
	if len(resolved) == 0 {
		return domain.SendResult{NotificationID: n.ID, Success: false, Timestamp: now,
			Channels: []domain.DeliveryOutcome{{Status: domain.DeliveryStatusFailed, ErrorCode: apperrors.CodeNoTargets}}}, nil
	}

	var deliverNow, deferred []domain.Channel
	scheduleFor := time.Time{}
	outcomes := make([]domain.DeliveryOutcome, 0, len(resolved))

	for _, ch := range resolved {
		decision := evaluateChannel(ch, n, prefs, now)
		switch decision.action {
		case actionDeliverNow:
			deliverNow = append(deliverNow, ch)
		case actionDeferDigest:
			e.enqueueDigest(ctx, n, prefs, decision.frequency, now)
			outcomes = append(outcomes, domain.DeliveryOutcome{Channel: ch, Status: domain.DeliveryStatusDeferred})
		case actionDeferScheduled:
			deferred = append(deferred, ch)
			if decision.scheduledFor.After(scheduleFor) {
				scheduleFor = decision.scheduledFor
			}
		case actionBlocked:
			outcomes = append(outcomes, domain.DeliveryOutcome{Channel: ch, Status: domain.DeliveryStatusBlocked, ErrorCode: apperrors.CodeBlockedByPrefs})
		}
	}

	if len(deferred) > 0 {
		scheduled := n
		scheduled.Channels = deferred
		_ = e.repo.QueueInsert(ctx, domain.QueueItem{
			UserID: n.UserID, Payload: scheduled, ScheduledFor: scheduleFor,
			Priority: priorityRank(n.Priority), CreatedAt: now, UpdatedAt: now,
		})
		for _, ch := range deferred {
			exit := scheduleFor
			outcomes = append(outcomes, domain.DeliveryOutcome{Channel: ch, Status: domain.DeliveryStatusScheduled, ScheduledFor: &exit})
		}
	}

	if len(deliverNow) > 0 {
		instant := e.deliverParallel(ctx, n, prefs, deliverNow, now)
		outcomes = append(outcomes, instant...)

		if fb, ok := e.fallback(ctx, n, prefs, deliverNow, instant, now); ok {
			outcomes = append(outcomes, fb)
		}
	}

	for _, o := range outcomes {
		if o.Status == domain.DeliveryStatusDelivered || o.Status == domain.DeliveryStatusFailed {
			_ = e.repo.InsertDeliveryLog(ctx, domain.DeliveryRecord{
				NotificationID: n.ID, UserID: n.UserID, Channel: o.Channel, Provider: o.Provider,
				Status: o.Status, ErrorCode: o.ErrorCode, LatencyMS: o.LatencyMS,
			})
			e.recordDeliveryMetric(o)
		}
	}

	return domain.SendResult{NotificationID: n.ID, Success: allSucceeded(outcomes), Channels: outcomes, Timestamp: now}, nil
}

// recordDeliveryMetric reports a completed delivery attempt to the
// configured MetricsRecorder, a no-op when none was wired.
func (e *Engine) recordDeliveryMetric(o domain.DeliveryOutcome) {
	if e.metrics == nil {
		return
	}
	status := "delivered"
	if o.Status == domain.DeliveryStatusFailed {
		status = "failed"
	}
	e.metrics.RecordNotificationSent(string(o.Channel), status, time.Duration(o.LatencyMS)*time.Millisecond)
}

func allSucceeded(outcomes []domain.DeliveryOutcome) bool {
	for _, o := range outcomes {
		if o.Status == domain.DeliveryStatusFailed {
			return false
		}
	}
	return true
}

func priorityRank(p domain.Priority) int {
	switch p {
	case domain.PriorityCritical:
		return 10
	case domain.PriorityHigh:
		return 7
	case domain.PriorityLow:
		return 2
	default:
		return 5
	}
}

// deliverParallel invokes the instant-path dispatch for every channel
// concurrently, each under its own deadline.
func (e *Engine) deliverParallel(ctx context.Context, n domain.Notification, prefs domain.NotificationPreferences, channels []domain.Channel, now time.Time) []domain.DeliveryOutcome {
	outcomes := make([]domain.DeliveryOutcome, len(channels))
	var g errgroup.Group
	var mu sync.Mutex
	for i, ch := range channels {
		i, ch := i, ch
		g.Go(func() error {
			deadline := channelDeadline(now, n.Priority)
			outcome := e.dispatchChannel(ctx, ch, n, prefs, deadline)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Engine) dispatchChannel(ctx context.Context, ch domain.Channel, n domain.Notification, prefs domain.NotificationPreferences, deadline time.Time) domain.DeliveryOutcome {
	switch ch {
	case domain.ChannelPush:
		return e.dispatchPush(ctx, n, deadline)
	case domain.ChannelEmail:
		return e.dispatchEmail(ctx, n, prefs, deadline)
	case domain.ChannelSMS:
		return e.dispatchSMS(ctx, n, prefs, deadline)
	default:
		return e.dispatchInApp(ctx, n)
	}
}

func (e *Engine) enqueueDigest(ctx context.Context, n domain.Notification, prefs domain.NotificationPreferences, frequency domain.Frequency, now time.Time) {
	item := domain.DigestItem{Type: n.Type, Category: n.Category, Title: n.Title, Body: n.Body, Data: n.Data, CreatedAt: now}
	nextFlush := nextDigestFlush(frequency, prefs.Digest, prefs.QuietHours.Timezone, now)
	_ = e.digest.Add(ctx, n.UserID, frequency, item, nextFlush)
}
