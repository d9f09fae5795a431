package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/channel/email"
	"github.com/notihub/notihub/internal/channel/inapp"
	"github.com/notihub/notihub/internal/channel/push"
	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/repository"
)

// --- fakes ---------------------------------------------------------------

type fakeRepo struct {
	prefs         domain.NotificationPreferences
	tokens        []domain.DeviceToken
	deactivated   []string
	deliveryLogs  []domain.DeliveryRecord
	queued        []domain.QueueItem
	template      repository.Template
	templateErr   error
	prefsErr      error
	tokensErr     error
}

func (f *fakeRepo) GetPreferences(ctx context.Context, userID uuid.UUID) (domain.NotificationPreferences, error) {
	if f.prefsErr != nil {
		return domain.NotificationPreferences{}, f.prefsErr
	}
	return f.prefs, nil
}

func (f *fakeRepo) ListActiveDeviceTokens(ctx context.Context, userID uuid.UUID) ([]domain.DeviceToken, error) {
	if f.tokensErr != nil {
		return nil, f.tokensErr
	}
	return f.tokens, nil
}

func (f *fakeRepo) DeactivateToken(ctx context.Context, token string) error {
	f.deactivated = append(f.deactivated, token)
	return nil
}

func (f *fakeRepo) InsertDeliveryLog(ctx context.Context, rec domain.DeliveryRecord) error {
	f.deliveryLogs = append(f.deliveryLogs, rec)
	return nil
}

func (f *fakeRepo) QueueInsert(ctx context.Context, item domain.QueueItem) error {
	f.queued = append(f.queued, item)
	return nil
}

func (f *fakeRepo) GetTemplate(ctx context.Context, templateID, locale string) (repository.Template, error) {
	if f.templateErr != nil {
		return repository.Template{}, f.templateErr
	}
	return f.template, nil
}

type fakeDigest struct {
	added []domain.DigestItem
}

func (f *fakeDigest) Add(ctx context.Context, userID uuid.UUID, frequency domain.Frequency, item domain.DigestItem, nextFlush time.Time) error {
	f.added = append(f.added, item)
	return nil
}

type fakePushAdapter struct {
	name    string
	outcome domain.DeliveryOutcome
	err     error
}

func (a *fakePushAdapter) Name() string { return a.name }
func (a *fakePushAdapter) Send(ctx context.Context, deadline time.Time, payload push.Payload) (domain.DeliveryOutcome, error) {
	return a.outcome, a.err
}
func (a *fakePushAdapter) Health(ctx context.Context) monitoring.ProviderHealth {
	return monitoring.ProviderHealth{Status: monitoring.HealthStatusHealthy}
}

type fakeEmailAdapter struct {
	name    string
	outcome domain.DeliveryOutcome
	err     error
}

func (a *fakeEmailAdapter) Name() string { return a.name }
func (a *fakeEmailAdapter) Send(ctx context.Context, deadline time.Time, payload email.Payload) (domain.DeliveryOutcome, error) {
	return a.outcome, a.err
}
func (a *fakeEmailAdapter) Health(ctx context.Context) monitoring.ProviderHealth {
	return monitoring.ProviderHealth{Status: monitoring.HealthStatusHealthy}
}

type fakeSuppression struct {
	suppressed map[string]bool
}

func (f *fakeSuppression) IsSuppressed(ctx context.Context, address string) (bool, error) {
	return f.suppressed[address], nil
}

type fakePublisher struct{}

func (fakePublisher) Publish(ctx context.Context, channel string, message interface{}) error { return nil }

type fakeRecorder struct {
	recorded []domain.Notification
}

func (f *fakeRecorder) RecordInApp(ctx context.Context, n domain.Notification) error {
	f.recorded = append(f.recorded, n)
	return nil
}

// --- test setup ------------------------------------------------------------

func newTestEngine(t *testing.T, prefs domain.NotificationPreferences, pushOutcome, emailOutcome domain.DeliveryOutcome) (*Engine, *fakeRepo, *fakeDigest) {
	t.Helper()
	repo := &fakeRepo{prefs: prefs}
	digest := &fakeDigest{}

	pushAdapter := &fakePushAdapter{name: "fcm", outcome: pushOutcome}
	emailAdapter := &fakeEmailAdapter{name: "ses", outcome: emailOutcome}
	recorder := &fakeRecorder{}

	e := New(Deps{
		Repo:          repo,
		PushRouter:    push.NewRouter(pushAdapter, pushAdapter, pushAdapter),
		EmailSelector: email.NewSelector(circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), nil), emailAdapter),
		Suppression:   &fakeSuppression{suppressed: map[string]bool{}},
		InApp:         inapp.NewAdapter(fakePublisher{}, recorder),
		Digest:        digest,
		Clock:         func() time.Time { return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC) },
	})
	return e, repo, digest
}

func verifiedPrefs() domain.NotificationPreferences {
	prefs := domain.DefaultPreferences(uuid.New())
	prefs.EmailAddress = "user@example.com"
	prefs.EmailVerified = true
	prefs.PhoneNumber = "+15550001111"
	prefs.PhoneVerified = true
	return prefs
}

func TestSend_ValidationFailureShortCircuits(t *testing.T) {
	e, _, _ := newTestEngine(t, verifiedPrefs(), domain.DeliveryOutcome{}, domain.DeliveryOutcome{})
	_, err := e.Send(context.Background(), domain.SendRequest{UserID: uuid.New(), Title: "", Body: "body"})
	assert.Error(t, err)
}

func TestSend_DeliversPushInstantly(t *testing.T) {
	prefs := verifiedPrefs()
	prefs.EmailEnabled = false // resolved via explicit Channels instead
	e, repo, _ := newTestEngine(t, prefs,
		domain.DeliveryOutcome{Channel: domain.ChannelPush, Status: domain.DeliveryStatusDelivered},
		domain.DeliveryOutcome{Channel: domain.ChannelEmail, Status: domain.DeliveryStatusDelivered},
	)
	repo.tokens = []domain.DeviceToken{{UserID: prefs.UserID, Token: "tok-1", Platform: domain.PlatformAndroid, IsActive: true}}

	result, err := e.Send(context.Background(), domain.SendRequest{
		UserID: prefs.UserID, Type: domain.TypeNewMessage, Title: "hi", Body: "there",
		Channels: []domain.Channel{domain.ChannelPush},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Channels, 1)
	assert.Equal(t, domain.DeliveryStatusDelivered, result.Channels[0].Status)
	assert.Len(t, repo.deliveryLogs, 1)
}

func TestSend_NoResolvedChannelsReturnsNoTargets(t *testing.T) {
	prefs := verifiedPrefs()
	prefs.PushEnabled, prefs.EmailEnabled, prefs.SMSEnabled = false, false, false
	e, _, _ := newTestEngine(t, prefs, domain.DeliveryOutcome{}, domain.DeliveryOutcome{})

	result, err := e.Send(context.Background(), domain.SendRequest{
		UserID: prefs.UserID, Type: domain.TypeListingFavorited, Title: "hi", Body: "there",
		Channels: []domain.Channel{domain.ChannelPush, domain.ChannelEmail, domain.ChannelSMS},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Channels, 1)
	assert.Equal(t, apperrors.CodeNoTargets, result.Channels[0].ErrorCode)
}

func TestSend_BlockedByPreferencesWhenChannelDisabled(t *testing.T) {
	prefs := verifiedPrefs()
	e, _, _ := newTestEngine(t, prefs, domain.DeliveryOutcome{}, domain.DeliveryOutcome{})
	catPref := prefs.CategoryPreferences[domain.CategoryChats]
	catPref.SMS.Enabled = false
	prefs.CategoryPreferences[domain.CategoryChats] = catPref

	result, err := e.Send(context.Background(), domain.SendRequest{
		UserID: prefs.UserID, Type: domain.TypeNewMessage, Title: "hi", Body: "there",
		Channels: []domain.Channel{domain.ChannelSMS},
	})
	require.NoError(t, err)
	require.Len(t, result.Channels, 1)
	assert.Equal(t, domain.DeliveryStatusBlocked, result.Channels[0].Status)
}

func TestSend_DeferredDigestEnqueuesAndSkipsDelivery(t *testing.T) {
	prefs := verifiedPrefs()
	catPref := prefs.CategoryPreferences[domain.CategoryChats]
	catPref.Push.Frequency = domain.FrequencyDaily
	prefs.CategoryPreferences[domain.CategoryChats] = catPref
	e, _, digest := newTestEngine(t, prefs, domain.DeliveryOutcome{}, domain.DeliveryOutcome{})

	result, err := e.Send(context.Background(), domain.SendRequest{
		UserID: prefs.UserID, Type: domain.TypeNewMessage, Title: "hi", Body: "there",
		Priority: domain.PriorityNormal, Channels: []domain.Channel{domain.ChannelPush},
	})
	require.NoError(t, err)
	require.Len(t, result.Channels, 1)
	assert.Equal(t, domain.DeliveryStatusDeferred, result.Channels[0].Status)
	assert.Len(t, digest.added, 1)
}

func TestSend_QuietHoursDefersToScheduledQueue(t *testing.T) {
	prefs := verifiedPrefs()
	prefs.QuietHours = domain.QuietHours{Enabled: true, Start: "00:00", End: "23:59", Timezone: "UTC"}
	e, repo, _ := newTestEngine(t, prefs, domain.DeliveryOutcome{}, domain.DeliveryOutcome{})

	result, err := e.Send(context.Background(), domain.SendRequest{
		UserID: prefs.UserID, Type: domain.TypeNewMessage, Title: "hi", Body: "there",
		Priority: domain.PriorityNormal, Channels: []domain.Channel{domain.ChannelPush},
	})
	require.NoError(t, err)
	require.Len(t, result.Channels, 1)
	assert.Equal(t, domain.DeliveryStatusScheduled, result.Channels[0].Status)
	require.Len(t, repo.queued, 1)
	assert.Equal(t, []domain.Channel{domain.ChannelPush}, repo.queued[0].Payload.Channels)
}

func TestSend_FallbackToEmailWhenPushDeliversToNoDevice(t *testing.T) {
	prefs := verifiedPrefs()
	e, repo, _ := newTestEngine(t, prefs,
		domain.DeliveryOutcome{Channel: domain.ChannelPush, Status: domain.DeliveryStatusFailed},
		domain.DeliveryOutcome{Channel: domain.ChannelEmail, Status: domain.DeliveryStatusDelivered},
	)
	repo.tokens = []domain.DeviceToken{{UserID: prefs.UserID, Token: "tok-1", Platform: domain.PlatformAndroid, IsActive: true}}

	result, err := e.Send(context.Background(), domain.SendRequest{
		UserID: prefs.UserID, Type: domain.TypeAccountSecurity, Title: "verify", Body: "code",
		Priority: domain.PriorityCritical, Channels: []domain.Channel{domain.ChannelPush},
	})
	require.NoError(t, err)

	var sawEmail bool
	for _, o := range result.Channels {
		if o.Channel == domain.ChannelEmail {
			sawEmail = true
			assert.Equal(t, domain.DeliveryStatusDelivered, o.Status)
		}
	}
	assert.True(t, sawEmail, "fallback to email must be attempted when push delivers to zero devices")
}

func TestSendBatch_ParallelCollectsAllResults(t *testing.T) {
	prefs := verifiedPrefs()
	e, _, _ := newTestEngine(t, prefs,
		domain.DeliveryOutcome{Channel: domain.ChannelPush, Status: domain.DeliveryStatusDelivered},
		domain.DeliveryOutcome{Channel: domain.ChannelEmail, Status: domain.DeliveryStatusDelivered},
	)

	reqs := []domain.SendRequest{
		{UserID: prefs.UserID, Type: domain.TypeNewMessage, Title: "a", Body: "b", Channels: []domain.Channel{domain.ChannelInApp}},
		{UserID: prefs.UserID, Type: domain.TypeNewMessage, Title: "c", Body: "d", Channels: []domain.Channel{domain.ChannelInApp}},
	}
	results, err := e.SendBatch(context.Background(), reqs, domain.BatchSendOptions{Parallel: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Success)
	}
}

func TestSendBatch_SequentialStopsOnError(t *testing.T) {
	prefs := verifiedPrefs()
	e, _, _ := newTestEngine(t, prefs, domain.DeliveryOutcome{}, domain.DeliveryOutcome{})

	reqs := []domain.SendRequest{
		{UserID: prefs.UserID, Type: domain.TypeNewMessage, Title: "", Body: "bad"},
		{UserID: prefs.UserID, Type: domain.TypeNewMessage, Title: "ok", Body: "body", Channels: []domain.Channel{domain.ChannelInApp}},
	}
	results, err := e.SendBatch(context.Background(), reqs, domain.BatchSendOptions{StopOnError: true})
	assert.Error(t, err)
	assert.Len(t, results, 1)
}

func TestSendBatch_ExceedsMaxBatchSize(t *testing.T) {
	prefs := verifiedPrefs()
	e, _, _ := newTestEngine(t, prefs, domain.DeliveryOutcome{}, domain.DeliveryOutcome{})

	reqs := make([]domain.SendRequest, maxBatchSize+1)
	_, err := e.SendBatch(context.Background(), reqs, domain.BatchSendOptions{})
	assert.Error(t, err)
}

func TestSendTemplate_RendersTokensAndSends(t *testing.T) {
	prefs := verifiedPrefs()
	e, repo, _ := newTestEngine(t, prefs, domain.DeliveryOutcome{}, domain.DeliveryOutcome{})
	repo.template = repository.Template{
		ID: "welcome", Locale: "en", Subject: "Hi {{name}}", BodyText: "Welcome, {{name}}!",
		Type: domain.TypeNewMessage, Priority: domain.PriorityNormal, Channels: []domain.Channel{domain.ChannelInApp},
	}

	result, err := e.SendTemplate(context.Background(), prefs.UserID, "welcome", "en", map[string]string{"name": "Ada"})
	require.NoError(t, err)
	assert.True(t, result.Success)
}
