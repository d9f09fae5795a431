package email

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/quota"
	"github.com/notihub/notihub/internal/retrybudget"
)

// SendGridAdapter sends email through the SendGrid Web API v3.
type SendGridAdapter struct {
	client  *sendgrid.Client
	from    *mail.Email
	breaker *circuitbreaker.Breaker
	budget  *retrybudget.Budget
	quota   *quota.Tracker
}

func NewSendGridAdapter(apiKey, fromAddress, fromName string, breakers *circuitbreaker.Registry, budget *retrybudget.Budget, qt *quota.Tracker) *SendGridAdapter {
	return &SendGridAdapter{
		client:  sendgrid.NewSendClient(apiKey),
		from:    mail.NewEmail(fromName, fromAddress),
		breaker: breakers.Get("sendgrid"),
		budget:  budget,
		quota:   qt,
	}
}

func (a *SendGridAdapter) Name() string { return "sendgrid" }

func (a *SendGridAdapter) Send(ctx context.Context, deadline time.Time, p Payload) (domain.DeliveryOutcome, error) {
	allowed, err := a.quota.Reserve("sendgrid")
	if err != nil || !allowed {
		return domain.DeliveryOutcome{Channel: domain.ChannelEmail, Provider: "sendgrid", Status: domain.DeliveryStatusFailed}, err
	}

	start := time.Now()
	var outcome domain.DeliveryOutcome
	execErr := a.breaker.Execute(ctx, func(ctx context.Context) error {
		to := mail.NewEmail("", p.To)
		msg := mail.NewSingleEmail(a.from, p.Subject, to, p.TextBody, p.HTMLBody)
		resp, sendErr := a.client.Send(msg)
		if sendErr != nil {
			return apperrors.NewServiceUnavailableError("sendgrid", sendErr)
		}
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			messageID := ""
			for _, v := range resp.Headers["X-Message-Id"] {
				messageID = v
			}
			outcome = domain.DeliveryOutcome{
				Channel: domain.ChannelEmail, Provider: "sendgrid", Status: domain.DeliveryStatusDelivered,
				MessageID: messageID, LatencyMS: time.Since(start).Milliseconds(),
			}
			return nil
		case resp.StatusCode == 429:
			return apperrors.NewRateLimitedError(time.Second)
		case resp.StatusCode >= 500:
			return apperrors.NewServiceUnavailableError("sendgrid", fmt.Errorf("status %d: %s", resp.StatusCode, resp.Body))
		default:
			return apperrors.New("validation", "SENDGRID_REJECTED", fmt.Sprintf("status %d: %s", resp.StatusCode, resp.Body), false)
		}
	})

	if execErr != nil {
		appErr, _ := apperrors.AsAppError(execErr)
		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelEmail, Provider: "sendgrid", Status: domain.DeliveryStatusFailed,
			ErrorCode: appErr.Code, Retryable: appErr.Retryable, LatencyMS: time.Since(start).Milliseconds(),
		}
		return outcome, execErr
	}
	return outcome, nil
}

func (a *SendGridAdapter) Health(ctx context.Context) monitoring.ProviderHealth {
	status := monitoring.HealthStatusHealthy
	switch a.breaker.State() {
	case circuitbreaker.StateOpen:
		status = monitoring.HealthStatusUnhealthy
	case circuitbreaker.StateHalfOpen:
		status = monitoring.HealthStatusDegraded
	}
	remaining, _ := a.quota.Remaining("sendgrid")
	return monitoring.ProviderHealth{Status: status, Message: fmt.Sprintf("circuit=%s quota_remaining=%d", a.breaker.State(), remaining)}
}
