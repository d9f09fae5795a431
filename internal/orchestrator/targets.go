package orchestrator

import (
	"context"
	"time"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/channel/email"
	"github.com/notihub/notihub/internal/channel/push"
	"github.com/notihub/notihub/internal/channel/sms"
	"github.com/notihub/notihub/internal/domain"
)

// dispatchPush fans a notification out to every active device token the
// user has registered and aggregates the per-device outcomes into a single
// channel-level result: delivered if at least one device accepted it,
// otherwise the last device's failure. A token an adapter reports invalid
// is deactivated immediately so it is never retried.
func (e *Engine) dispatchPush(ctx context.Context, n domain.Notification, deadline time.Time) domain.DeliveryOutcome {
	tokens, err := e.repo.ListActiveDeviceTokens(ctx, n.UserID)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			return domain.DeliveryOutcome{Channel: domain.ChannelPush, Status: domain.DeliveryStatusFailed, ErrorCode: appErr.Code, Retryable: appErr.Retryable}
		}
		return domain.DeliveryOutcome{Channel: domain.ChannelPush, Status: domain.DeliveryStatusFailed, ErrorCode: apperrors.CodeInternal}
	}
	if len(tokens) == 0 {
		return domain.DeliveryOutcome{Channel: domain.ChannelPush, Status: domain.DeliveryStatusFailed, ErrorCode: apperrors.CodeNoTargets}
	}

	var best domain.DeliveryOutcome
	haveOutcome := false
	for _, tok := range tokens {
		adapter := e.pushRouter.For(tok.Platform)
		if adapter == nil {
			continue
		}
		payload := push.Payload{
			Token: tok.Token, Title: n.Title, Body: n.Body, ImageURL: n.ImageURL,
			Sound: n.Sound, Badge: n.Badge, CollapseKey: n.CollapseKey, TTLSeconds: n.TTLSeconds,
		}
		if tok.Platform == domain.PlatformWeb {
			payload.Data = mergeWebPushKeys(n.Data, tok.P256dh, tok.Auth)
		} else {
			payload.Data = n.Data
		}

		outcome, sendErr := adapter.Send(ctx, deadline, payload)
		if sendErr != nil {
			if appErr, ok := apperrors.AsAppError(sendErr); ok && appErr.Code == apperrors.CodeTokenInvalid {
				_ = e.repo.DeactivateToken(ctx, tok.Token)
			}
		}
		haveOutcome = true
		best = outcome
		if outcome.Status == domain.DeliveryStatusDelivered {
			break
		}
	}
	if !haveOutcome {
		return domain.DeliveryOutcome{Channel: domain.ChannelPush, Status: domain.DeliveryStatusFailed, ErrorCode: apperrors.CodeNoTargets}
	}
	return best
}

func mergeWebPushKeys(data map[string]string, p256dh, auth string) map[string]string {
	merged := make(map[string]string, len(data)+2)
	for k, v := range data {
		merged[k] = v
	}
	merged["__p256dh"] = p256dh
	merged["__auth"] = auth
	return merged
}

// dispatchEmail resolves the user's verified address, checks the
// suppression list, and tries each configured provider in order.
func (e *Engine) dispatchEmail(ctx context.Context, n domain.Notification, prefs domain.NotificationPreferences, deadline time.Time) domain.DeliveryOutcome {
	if prefs.EmailAddress == "" || !prefs.EmailVerified {
		return domain.DeliveryOutcome{Channel: domain.ChannelEmail, Status: domain.DeliveryStatusFailed, ErrorCode: apperrors.CodeNoTargets}
	}

	suppressed, err := e.suppression.IsSuppressed(ctx, prefs.EmailAddress)
	if err == nil && suppressed {
		return domain.DeliveryOutcome{Channel: domain.ChannelEmail, Status: domain.DeliveryStatusBlocked, ErrorCode: apperrors.CodeSuppressedAddress}
	}

	payload := email.Payload{To: prefs.EmailAddress, Subject: n.Title, HTMLBody: n.Body, TextBody: n.Body}
	providers := e.emailSelector.Select()
	if len(providers) == 0 {
		return domain.DeliveryOutcome{Channel: domain.ChannelEmail, Status: domain.DeliveryStatusFailed, ErrorCode: apperrors.CodeNoTargets}
	}
	for _, adapter := range providers {
		outcome, sendErr := adapter.Send(ctx, deadline, payload)
		if sendErr == nil {
			return outcome
		}
	}
	return domain.DeliveryOutcome{Channel: domain.ChannelEmail, Status: domain.DeliveryStatusFailed, ErrorCode: apperrors.CodeAllServicesFailed}
}

// dispatchSMS sends to the user's verified phone number, when the SMS
// adapter is enabled (it ships disabled by default).
func (e *Engine) dispatchSMS(ctx context.Context, n domain.Notification, prefs domain.NotificationPreferences, deadline time.Time) domain.DeliveryOutcome {
	if prefs.PhoneNumber == "" || !prefs.PhoneVerified {
		return domain.DeliveryOutcome{Channel: domain.ChannelSMS, Status: domain.DeliveryStatusFailed, ErrorCode: apperrors.CodeNoTargets}
	}
	outcome, _ := e.sms.Send(ctx, deadline, sms.Payload{To: prefs.PhoneNumber, Body: n.Title + ": " + n.Body})
	return outcome
}

// dispatchInApp has no external target lookup: the user id is the target.
func (e *Engine) dispatchInApp(ctx context.Context, n domain.Notification) domain.DeliveryOutcome {
	outcome, _ := e.inapp.Send(ctx, n)
	return outcome
}
