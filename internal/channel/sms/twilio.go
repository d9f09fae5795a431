// Package sms implements the SMS channel via Twilio. Per the notification
// platform's scope, SMS ships disabled by default (Enabled must be set
// explicitly) — it exists in the adapter layer and the orchestrator's
// channel-resolution step, but no default deployment sends a text message.
package sms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/quota"
	"github.com/notihub/notihub/internal/retrybudget"
)

// Payload is everything the Twilio adapter needs to send one text message.
type Payload struct {
	To   string
	Body string
}

// Config configures the Twilio adapter. Enabled defaults to false; while it
// is false, Send returns a no-targets failure without calling Twilio.
type Config struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	FromNumber string
}

type Adapter struct {
	cfg     Config
	client  *twilio.RestClient
	breaker *circuitbreaker.Breaker
	budget  *retrybudget.Budget
	quota   *quota.Tracker
}

func NewAdapter(cfg Config, breakers *circuitbreaker.Registry, budget *retrybudget.Budget, qt *quota.Tracker) *Adapter {
	var client *twilio.RestClient
	if cfg.Enabled {
		client = twilio.NewRestClientWithParams(twilio.ClientParams{Username: cfg.AccountSID, Password: cfg.AuthToken})
	}
	return &Adapter{cfg: cfg, client: client, breaker: breakers.Get("twilio"), budget: budget, quota: qt}
}

func (a *Adapter) Name() string { return "twilio" }

func (a *Adapter) Send(ctx context.Context, deadline time.Time, p Payload) (domain.DeliveryOutcome, error) {
	if !a.cfg.Enabled {
		return domain.DeliveryOutcome{Channel: domain.ChannelSMS, Provider: "twilio", Status: domain.DeliveryStatusFailed, ErrorCode: apperrors.CodeNoTargets},
			apperrors.NewNoTargetsError("sms")
	}

	allowed, err := a.quota.Reserve("twilio")
	if err != nil || !allowed {
		return domain.DeliveryOutcome{Channel: domain.ChannelSMS, Provider: "twilio", Status: domain.DeliveryStatusFailed}, err
	}

	start := time.Now()
	var outcome domain.DeliveryOutcome
	execErr := a.breaker.Execute(ctx, func(ctx context.Context) error {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(p.To)
		params.SetFrom(a.cfg.FromNumber)
		params.SetBody(p.Body)

		resp, sendErr := a.client.Api.CreateMessage(params)
		if sendErr != nil {
			return classifyTwilioError(sendErr)
		}
		messageID := ""
		if resp.Sid != nil {
			messageID = *resp.Sid
		}
		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelSMS, Provider: "twilio", Status: domain.DeliveryStatusDelivered,
			MessageID: messageID, LatencyMS: time.Since(start).Milliseconds(),
		}
		return nil
	})

	if execErr != nil {
		appErr, _ := apperrors.AsAppError(execErr)
		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelSMS, Provider: "twilio", Status: domain.DeliveryStatusFailed,
			ErrorCode: appErr.Code, Retryable: appErr.Retryable, LatencyMS: time.Since(start).Milliseconds(),
		}
		return outcome, execErr
	}
	return outcome, nil
}

func classifyTwilioError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "21211"), strings.Contains(msg, "21614"), strings.Contains(msg, "invalid"):
		return apperrors.New("validation", "TWILIO_INVALID_NUMBER", msg, false)
	case strings.Contains(msg, "20429"), strings.Contains(msg, "too many requests"):
		return apperrors.NewRateLimitedError(time.Second)
	default:
		return apperrors.NewServiceUnavailableError("twilio", err)
	}
}

func (a *Adapter) Health(ctx context.Context) monitoring.ProviderHealth {
	if !a.cfg.Enabled {
		return monitoring.ProviderHealth{Status: monitoring.HealthStatusDegraded, Message: "sms channel disabled"}
	}
	status := monitoring.HealthStatusHealthy
	switch a.breaker.State() {
	case circuitbreaker.StateOpen:
		status = monitoring.HealthStatusUnhealthy
	case circuitbreaker.StateHalfOpen:
		status = monitoring.HealthStatusDegraded
	}
	remaining, _ := a.quota.Remaining("twilio")
	return monitoring.ProviderHealth{Status: status, Message: fmt.Sprintf("circuit=%s quota_remaining=%d", a.breaker.State(), remaining)}
}
