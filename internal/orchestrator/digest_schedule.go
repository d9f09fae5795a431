package orchestrator

import (
	"time"

	"github.com/notihub/notihub/internal/domain"
)

// nextDigestFlush computes the next-flush instant for a deferred channel,
// used only the first time a user's batch window opens (see
// queue.DigestAccumulator.Add). Hourly rounds up to the top of the next
// hour; daily targets the user's configured local time, falling back to 24
// hours later when the settings don't name a time; weekly targets that time
// on the configured weekday, at 00:00 when no time is named.
func nextDigestFlush(frequency domain.Frequency, settings domain.DigestSettings, timezone string, now time.Time) time.Time {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	switch frequency {
	case domain.FrequencyHourly:
		next := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc).Add(time.Hour)
		return next.In(now.Location())
	case domain.FrequencyDaily:
		hour, minute, ok := parseDigestTime(settings.DailyTime)
		if !ok {
			return now.Add(24 * time.Hour)
		}
		candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate.In(now.Location())
	case domain.FrequencyWeekly:
		hour, minute, ok := parseDigestTime(settings.DailyTime)
		if !ok {
			hour, minute = 0, 0
		}
		daysAhead := (int(settings.WeeklyDay) - int(local.Weekday()) + 7) % 7
		candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc).AddDate(0, 0, daysAhead)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		return candidate.In(now.Location())
	default:
		return now
	}
}

func parseDigestTime(hhmm string) (hour, minute int, ok bool) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, 0, false
	}
	h := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	m := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
