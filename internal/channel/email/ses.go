package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/quota"
	"github.com/notihub/notihub/internal/retrybudget"
)

// SESAdapter sends email through Amazon SES v2, authenticated via the
// standard AWS SigV4 credential chain (config.LoadDefaultConfig).
type SESAdapter struct {
	client  *sesv2.Client
	from    string
	breaker *circuitbreaker.Breaker
	budget  *retrybudget.Budget
	quota   *quota.Tracker
}

func NewSESAdapter(client *sesv2.Client, from string, breakers *circuitbreaker.Registry, budget *retrybudget.Budget, qt *quota.Tracker) *SESAdapter {
	return &SESAdapter{client: client, from: from, breaker: breakers.Get("ses"), budget: budget, quota: qt}
}

func (a *SESAdapter) Name() string { return "ses" }

func (a *SESAdapter) Send(ctx context.Context, deadline time.Time, p Payload) (domain.DeliveryOutcome, error) {
	allowed, err := a.quota.Reserve("ses")
	if err != nil || !allowed {
		return domain.DeliveryOutcome{Channel: domain.ChannelEmail, Provider: "ses", Status: domain.DeliveryStatusFailed}, err
	}

	start := time.Now()
	var outcome domain.DeliveryOutcome
	execErr := a.breaker.Execute(ctx, func(ctx context.Context) error {
		input := &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(a.from),
			Destination:      &types.Destination{ToAddresses: []string{p.To}},
			Content: &types.EmailContent{
				Simple: &types.Message{
					Subject: &types.Content{Data: aws.String(p.Subject)},
					Body: &types.Body{
						Html: &types.Content{Data: aws.String(p.HTMLBody)},
						Text: &types.Content{Data: aws.String(p.TextBody)},
					},
				},
			},
		}
		out, sendErr := a.client.SendEmail(ctx, input)
		if sendErr != nil {
			return classifySESError(sendErr)
		}
		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelEmail, Provider: "ses", Status: domain.DeliveryStatusDelivered,
			MessageID: aws.ToString(out.MessageId), LatencyMS: time.Since(start).Milliseconds(),
		}
		return nil
	})

	if execErr != nil {
		appErr, _ := apperrors.AsAppError(execErr)
		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelEmail, Provider: "ses", Status: domain.DeliveryStatusFailed,
			ErrorCode: appErr.Code, Retryable: appErr.Retryable, LatencyMS: time.Since(start).Milliseconds(),
		}
		return outcome, execErr
	}
	return outcome, nil
}

// classifySESError maps SES failures to the shared taxonomy. SES wraps its
// throttling and account-suspension errors as smithy API errors; only the
// error message is inspected since this stays provider-agnostic rather than
// importing every SES exception type.
func classifySESError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Throttling"), strings.Contains(msg, "TooManyRequests"):
		return apperrors.NewRateLimitedError(time.Second)
	case strings.Contains(msg, "MessageRejected"), strings.Contains(msg, "MailFromDomainNotVerified"):
		return apperrors.New("validation", "SES_REJECTED", msg, false)
	case strings.Contains(msg, "AccountSuspended"), strings.Contains(msg, "SendingPausedException"):
		return apperrors.NewServiceUnavailableError("ses", err)
	default:
		return apperrors.NewServiceUnavailableError("ses", err)
	}
}

func (a *SESAdapter) Health(ctx context.Context) monitoring.ProviderHealth {
	status := monitoring.HealthStatusHealthy
	switch a.breaker.State() {
	case circuitbreaker.StateOpen:
		status = monitoring.HealthStatusUnhealthy
	case circuitbreaker.StateHalfOpen:
		status = monitoring.HealthStatusDegraded
	}
	remaining, _ := a.quota.Remaining("ses")
	return monitoring.ProviderHealth{Status: status, Message: fmt.Sprintf("circuit=%s quota_remaining=%d", a.breaker.State(), remaining)}
}
