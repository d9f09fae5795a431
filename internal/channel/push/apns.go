package push

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/quota"
	"github.com/notihub/notihub/internal/retrybudget"
)

// jwtRefreshWindow is how long an ES256 provider JWT is reused before it is
// regenerated, just inside Apple's one hour expiry.
const jwtRefreshWindow = 50 * time.Minute

// APNsConfig configures the Apple Push Notification service adapter.
type APNsConfig struct {
	AuthKey     []byte
	KeyID       string
	TeamID      string
	Topic       string
	Production  bool
	TokenSource *token.Token // optional, for tests that inject a pre-built token
}

// APNsAdapter sends pushes to iOS devices over HTTP/2, caching its signed
// provider JWT for jwtRefreshWindow rather than minting one per request.
type APNsAdapter struct {
	client  *apns2.Client
	topic   string
	breaker *circuitbreaker.Breaker
	budget  *retrybudget.Budget
	quota   *quota.Tracker

	mu          sync.Mutex
	tok         *token.Token
	authKey     *ecdsa.PrivateKey
	keyID       string
	teamID      string
	tokenIssued time.Time
}

func NewAPNsAdapter(cfg APNsConfig, breakers *circuitbreaker.Registry, budget *retrybudget.Budget, qt *quota.Tracker) (*APNsAdapter, error) {
	a := &APNsAdapter{
		topic:   cfg.Topic,
		breaker: breakers.Get("apns"),
		budget:  budget,
		quota:   qt,
		keyID:   cfg.KeyID,
		teamID:  cfg.TeamID,
	}

	if cfg.TokenSource != nil {
		a.tok = cfg.TokenSource
		a.tokenIssued = time.Now()
	} else {
		key, err := token.AuthKeyFromBytes(cfg.AuthKey)
		if err != nil {
			return nil, fmt.Errorf("parse apns auth key: %w", err)
		}
		a.authKey = key
		a.tok = &token.Token{AuthKey: key, KeyID: cfg.KeyID, TeamID: cfg.TeamID}
		a.tokenIssued = time.Now()
	}

	client := apns2.NewTokenClient(a.tok)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	a.client = client
	return a, nil
}

func (a *APNsAdapter) Name() string { return "apns" }

// refreshTokenIfStale regenerates the signed JWT once jwtRefreshWindow has
// elapsed. apns2's token.Token caches the bearer string internally; this
// just bounds how long the adapter trusts that cache before forcing a
// fresh signature, matching the provider's own expiry.
func (a *APNsAdapter) refreshTokenIfStale() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.tokenIssued) < jwtRefreshWindow {
		return
	}
	if a.authKey != nil {
		a.tok.GenerateIfExpired()
		a.tokenIssued = time.Now()
	}
}

func (a *APNsAdapter) Send(ctx context.Context, deadline time.Time, p Payload) (domain.DeliveryOutcome, error) {
	allowed, err := a.quota.Reserve("apns")
	if err != nil || !allowed {
		return domain.DeliveryOutcome{Channel: domain.ChannelPush, Provider: "apns", Status: domain.DeliveryStatusFailed, Retryable: false}, err
	}

	a.refreshTokenIfStale()

	start := time.Now()
	var outcome domain.DeliveryOutcome
	execErr := a.breaker.Execute(ctx, func(ctx context.Context) error {
		aps := payload.NewPayload().AlertTitle(p.Title).AlertBody(p.Body)
		if p.Sound != "" {
			aps.Sound(p.Sound)
		}
		if p.Badge != nil {
			aps.Badge(*p.Badge)
		}
		for k, v := range p.Data {
			aps.Custom(k, v)
		}

		n := &apns2.Notification{
			DeviceToken: p.Token,
			Topic:       a.topic,
			Payload:     aps,
		}
		if p.CollapseKey != "" {
			n.CollapseID = p.CollapseKey
		}
		if p.TTLSeconds > 0 {
			n.Expiration = time.Now().Add(time.Duration(p.TTLSeconds) * time.Second)
		}

		res, sendErr := a.client.PushWithContext(ctx, n)
		if sendErr != nil {
			outcome = domain.DeliveryOutcome{Channel: domain.ChannelPush, Provider: "apns", Status: domain.DeliveryStatusFailed, Retryable: true}
			return apperrors.NewServiceUnavailableError("apns", sendErr)
		}
		if res.Sent() {
			outcome = domain.DeliveryOutcome{
				Channel: domain.ChannelPush, Provider: "apns", Status: domain.DeliveryStatusDelivered,
				MessageID: res.ApnsID, LatencyMS: time.Since(start).Milliseconds(),
			}
			return nil
		}
		return a.classifyFailure(res)
	})

	if execErr != nil {
		appErr, _ := apperrors.AsAppError(execErr)
		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelPush, Provider: "apns", Status: domain.DeliveryStatusFailed,
			ErrorCode: appErr.Code, Retryable: appErr.Retryable, LatencyMS: time.Since(start).Milliseconds(),
		}
		return outcome, execErr
	}
	return outcome, nil
}

// classifyFailure maps an APNs rejection reason to the shared error
// taxonomy, distinguishing token-invalidation cases (which must trigger a
// device token deactivation upstream) from transient provider failures.
func (a *APNsAdapter) classifyFailure(res *apns2.Response) error {
	switch res.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return apperrors.NewTokenInvalidError("device token is no longer valid")
	case apns2.ReasonTooManyRequests:
		return apperrors.NewRateLimitedError(time.Second)
	case apns2.ReasonInternalServerError, apns2.ReasonServiceUnavailable, apns2.ReasonShutdown:
		return apperrors.NewServiceUnavailableError("apns", fmt.Errorf("%s", res.Reason))
	default:
		return apperrors.New("validation", "APNS_REJECTED", res.Reason, false)
	}
}

func (a *APNsAdapter) Health(ctx context.Context) monitoring.ProviderHealth {
	status := monitoring.HealthStatusHealthy
	switch a.breaker.State() {
	case circuitbreaker.StateOpen:
		status = monitoring.HealthStatusUnhealthy
	case circuitbreaker.StateHalfOpen:
		status = monitoring.HealthStatusDegraded
	}
	remaining, _ := a.quota.Remaining("apns")
	return monitoring.ProviderHealth{
		Status:  status,
		Message: fmt.Sprintf("circuit=%s quota_remaining=%d", a.breaker.State(), remaining),
	}
}
