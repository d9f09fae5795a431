package orchestrator

import (
	"context"
	"time"

	"github.com/notihub/notihub/internal/domain"
)

// fallback implements pipeline step 6: when push was attempted instantly
// and delivered to zero devices, and the notification is critical-security
// or high-priority-or-above, try email once as a substitute. It never
// widens beyond email, and never fires twice for the same send.
func (e *Engine) fallback(ctx context.Context, n domain.Notification, prefs domain.NotificationPreferences, attempted []domain.Channel, outcomes []domain.DeliveryOutcome, now time.Time) (domain.DeliveryOutcome, bool) {
	if !containsChannel(attempted, domain.ChannelPush) || containsChannel(attempted, domain.ChannelEmail) {
		return domain.DeliveryOutcome{}, false
	}
	if !domain.CriticalSecurityTypes[n.Type] && n.Priority != domain.PriorityHigh && n.Priority != domain.PriorityCritical {
		return domain.DeliveryOutcome{}, false
	}

	pushSucceeded := false
	for _, o := range outcomes {
		if o.Channel == domain.ChannelPush && o.Status == domain.DeliveryStatusDelivered {
			pushSucceeded = true
		}
	}
	if pushSucceeded {
		return domain.DeliveryOutcome{}, false
	}

	deadline := channelDeadline(now, n.Priority)
	return e.dispatchEmail(ctx, n, prefs, deadline), true
}
