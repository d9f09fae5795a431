package orchestrator

import (
	"time"

	"github.com/notihub/notihub/internal/domain"
)

var allChannels = []domain.Channel{domain.ChannelPush, domain.ChannelEmail, domain.ChannelSMS, domain.ChannelInApp}

// resolveChannels implements pipeline step 2: when the caller named no
// explicit channels, derive the candidate set from the notification's type
// and the user's enabled channels/categories. Critical-security types
// always pull in email; digest notifications only ever use email.
func resolveChannels(n domain.Notification, prefs domain.NotificationPreferences) []domain.Channel {
	if n.Type == domain.TypeDigest {
		return []domain.Channel{domain.ChannelEmail}
	}

	var channels []domain.Channel
	if len(n.Channels) > 0 {
		channels = append(channels, n.Channels...)
	} else {
		catPref := categoryPreference(n.Category, prefs)
		for _, ch := range allChannels {
			globalEnabled, chPref := channelPreference(ch, prefs, catPref)
			if globalEnabled && chPref.Enabled {
				channels = append(channels, ch)
			}
		}
	}

	if domain.CriticalSecurityTypes[n.Type] && !containsChannel(channels, domain.ChannelEmail) {
		channels = append(channels, domain.ChannelEmail)
	}
	return channels
}

func containsChannel(channels []domain.Channel, target domain.Channel) bool {
	for _, c := range channels {
		if c == target {
			return true
		}
	}
	return false
}

func categoryPreference(category domain.Category, prefs domain.NotificationPreferences) domain.CategoryPreference {
	if pref, ok := prefs.CategoryPreferences[category]; ok {
		return pref
	}
	return domain.DefaultCategoryPreference()
}

// channelPreference reports a channel's global enable flag and its
// per-category preference. In-app has no user-facing toggle in the data
// model — it is always enabled, delivered instantly, the same exemption
// the reference service gave its single built-in channel.
func channelPreference(ch domain.Channel, prefs domain.NotificationPreferences, catPref domain.CategoryPreference) (bool, domain.ChannelPreference) {
	switch ch {
	case domain.ChannelPush:
		return prefs.PushEnabled, catPref.Push
	case domain.ChannelEmail:
		return prefs.EmailEnabled, catPref.Email
	case domain.ChannelSMS:
		return prefs.SMSEnabled, catPref.SMS
	default:
		return true, domain.ChannelPreference{Enabled: true, Frequency: domain.FrequencyInstant}
	}
}

// gateAction is the outcome of evaluating one resolved channel against
// preferences, quiet hours, and DND.
type gateAction int

const (
	actionDeliverNow gateAction = iota
	actionDeferDigest
	actionDeferScheduled
	actionBlocked
)

type gateDecision struct {
	channel      domain.Channel
	action       gateAction
	frequency    domain.Frequency
	scheduledFor time.Time
}

// evaluateChannel implements pipeline step 3 for a single resolved channel.
// Critical priority bypasses every preference, quiet-hours, and DND gate;
// it does not bypass the hard suppression list, which dispatchEmail checks
// through the engine's SuppressionChecker before any email provider is called.
func evaluateChannel(ch domain.Channel, n domain.Notification, prefs domain.NotificationPreferences, now time.Time) gateDecision {
	if n.Priority == domain.PriorityCritical {
		return gateDecision{channel: ch, action: actionDeliverNow}
	}

	catPref := categoryPreference(n.Category, prefs)
	globalEnabled, chPref := channelPreference(ch, prefs, catPref)
	if !globalEnabled || !chPref.Enabled || chPref.Frequency == domain.FrequencyNever {
		return gateDecision{channel: ch, action: actionBlocked}
	}
	if chPref.Frequency != domain.FrequencyInstant {
		return gateDecision{channel: ch, action: actionDeferDigest, frequency: chPref.Frequency}
	}

	if inQuietWindow(prefs, now) {
		if n.Priority == domain.PriorityHigh {
			return gateDecision{channel: ch, action: actionDeliverNow}
		}
		return gateDecision{channel: ch, action: actionDeferScheduled, scheduledFor: nextWindowExit(prefs, now)}
	}
	return gateDecision{channel: ch, action: actionDeliverNow}
}

func inQuietWindow(prefs domain.NotificationPreferences, now time.Time) bool {
	return domain.InQuietHours(prefs.QuietHours, now) || domain.InDnd(prefs.Dnd, now)
}

// nextWindowExit returns the later of the two windows' exit times when both
// are active, since the channel must stay deferred until neither gate
// would block it.
func nextWindowExit(prefs domain.NotificationPreferences, now time.Time) time.Time {
	exit := now
	if domain.InQuietHours(prefs.QuietHours, now) {
		exit = domain.NextQuietHoursExit(prefs.QuietHours, now)
	}
	if domain.InDnd(prefs.Dnd, now) && prefs.Dnd.Until != nil && prefs.Dnd.Until.After(exit) {
		exit = *prefs.Dnd.Until
	}
	return exit
}
