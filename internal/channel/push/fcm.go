package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/quota"
	"github.com/notihub/notihub/internal/retrybudget"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// FCMConfig configures the Firebase Cloud Messaging v1 adapter.
type FCMConfig struct {
	ProjectID         string
	ServiceAccountKey []byte // JSON key, passed to google.JWTConfigFromJSON
	BaseURL           string // overridable for tests
}

// FCMAdapter sends Android pushes through the FCM HTTP v1 API, caching the
// OAuth2 access token for its reported lifetime minus a 60 second safety
// margin rather than fetching a new one per send.
type FCMAdapter struct {
	projectID  string
	tokenSrc   oauth2.TokenSource
	httpClient *http.Client
	baseURL    string
	breaker    *circuitbreaker.Breaker
	budget     *retrybudget.Budget
	quota      *quota.Tracker

	mu          sync.Mutex
	cachedToken *oauth2.Token
}

func NewFCMAdapter(ctx context.Context, cfg FCMConfig, breakers *circuitbreaker.Registry, budget *retrybudget.Budget, qt *quota.Tracker) (*FCMAdapter, error) {
	jwtCfg, err := google.JWTConfigFromJSON(cfg.ServiceAccountKey, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("parse fcm service account key: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://fcm.googleapis.com/v1/projects"
	}

	return &FCMAdapter{
		projectID:  cfg.ProjectID,
		tokenSrc:   jwtCfg.TokenSource(ctx),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		breaker:    breakers.Get("fcm"),
		budget:     budget,
		quota:      qt,
	}, nil
}

func (a *FCMAdapter) Name() string { return "fcm" }

// accessToken returns a cached bearer token, refreshing it once its expiry
// minus a 60 second margin has passed.
func (a *FCMAdapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cachedToken != nil && time.Until(a.cachedToken.Expiry) > 60*time.Second {
		return a.cachedToken.AccessToken, nil
	}
	tok, err := a.tokenSrc.Token()
	if err != nil {
		return "", fmt.Errorf("fetch fcm oauth token: %w", err)
	}
	a.cachedToken = tok
	return tok.AccessToken, nil
}

type fcmMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification fcmNotification   `json:"notification,omitempty"`
		Data         map[string]string `json:"data,omitempty"`
		Android      *fcmAndroidConfig `json:"android,omitempty"`
	} `json:"message"`
}

type fcmNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Image string `json:"image,omitempty"`
}

type fcmAndroidConfig struct {
	CollapseKey string `json:"collapse_key,omitempty"`
	TTL         string `json:"ttl,omitempty"`
}

type fcmResponse struct {
	Name  string `json:"name"`
	Error *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *FCMAdapter) Send(ctx context.Context, deadline time.Time, p Payload) (domain.DeliveryOutcome, error) {
	allowed, err := a.quota.Reserve("fcm")
	if err != nil || !allowed {
		return domain.DeliveryOutcome{Channel: domain.ChannelPush, Provider: "fcm", Status: domain.DeliveryStatusFailed}, err
	}

	start := time.Now()
	var outcome domain.DeliveryOutcome
	execErr := a.breaker.Execute(ctx, func(ctx context.Context) error {
		token, tokErr := a.accessToken(ctx)
		if tokErr != nil {
			return apperrors.NewServiceUnavailableError("fcm", tokErr)
		}

		msg := fcmMessage{}
		msg.Message.Token = p.Token
		msg.Message.Notification = fcmNotification{Title: p.Title, Body: p.Body, Image: p.ImageURL}
		msg.Message.Data = p.Data
		if p.CollapseKey != "" || p.TTLSeconds > 0 {
			msg.Message.Android = &fcmAndroidConfig{}
			if p.CollapseKey != "" {
				msg.Message.Android.CollapseKey = p.CollapseKey
			}
			if p.TTLSeconds > 0 {
				msg.Message.Android.TTL = fmt.Sprintf("%ds", p.TTLSeconds)
			}
		}

		body, marshalErr := json.Marshal(msg)
		if marshalErr != nil {
			return apperrors.New("validation", "INVALID_PAYLOAD", marshalErr.Error(), false)
		}

		url := fmt.Sprintf("%s/%s/messages:send", a.baseURL, a.projectID)
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if reqErr != nil {
			return apperrors.NewServiceUnavailableError("fcm", reqErr)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := a.httpClient.Do(req)
		if doErr != nil {
			return apperrors.NewServiceUnavailableError("fcm", doErr)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return apperrors.NewServiceUnavailableError("fcm", readErr)
		}

		var fcmResp fcmResponse
		_ = json.Unmarshal(respBody, &fcmResp)

		if resp.StatusCode == http.StatusOK {
			outcome = domain.DeliveryOutcome{
				Channel: domain.ChannelPush, Provider: "fcm", Status: domain.DeliveryStatusDelivered,
				MessageID: fcmResp.Name, LatencyMS: time.Since(start).Milliseconds(),
			}
			return nil
		}
		return a.classifyStatus(resp.StatusCode, fcmResp)
	})

	if execErr != nil {
		appErr, _ := apperrors.AsAppError(execErr)
		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelPush, Provider: "fcm", Status: domain.DeliveryStatusFailed,
			ErrorCode: appErr.Code, Retryable: appErr.Retryable, LatencyMS: time.Since(start).Milliseconds(),
		}
		return outcome, execErr
	}
	return outcome, nil
}

func (a *FCMAdapter) classifyStatus(status int, resp fcmResponse) error {
	errStatus := ""
	if resp.Error != nil {
		errStatus = resp.Error.Status
	}
	switch {
	case status == http.StatusNotFound, errStatus == "UNREGISTERED", errStatus == "INVALID_ARGUMENT":
		return apperrors.NewTokenInvalidError("device token is no longer valid")
	case status == http.StatusTooManyRequests:
		return apperrors.NewRateLimitedError(time.Second)
	case status >= 500:
		return apperrors.NewServiceUnavailableError("fcm", fmt.Errorf("fcm status %d", status))
	default:
		return apperrors.New("validation", "FCM_REJECTED", fmt.Sprintf("fcm status %d: %s", status, errStatus), false)
	}
}

func (a *FCMAdapter) Health(ctx context.Context) monitoring.ProviderHealth {
	status := monitoring.HealthStatusHealthy
	switch a.breaker.State() {
	case circuitbreaker.StateOpen:
		status = monitoring.HealthStatusUnhealthy
	case circuitbreaker.StateHalfOpen:
		status = monitoring.HealthStatusDegraded
	}
	remaining, _ := a.quota.Remaining("fcm")
	return monitoring.ProviderHealth{Status: status, Message: fmt.Sprintf("circuit=%s quota_remaining=%d", a.breaker.State(), remaining)}
}
