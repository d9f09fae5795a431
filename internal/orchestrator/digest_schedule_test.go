package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/notihub/notihub/internal/domain"
)

func TestNextDigestFlush_HourlyRoundsToTopOfNextHour(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 25, 0, 0, time.UTC)
	next := nextDigestFlush(domain.FrequencyHourly, domain.DigestSettings{}, "UTC", now)
	assert.Equal(t, time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC), next)
}

func TestNextDigestFlush_DailyTargetsConfiguredTime(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 25, 0, 0, time.UTC)
	settings := domain.DigestSettings{DailyEnabled: true, DailyTime: "09:00"}

	next := nextDigestFlush(domain.FrequencyDaily, settings, "UTC", now)
	assert.Equal(t, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC), next, "09:00 already passed today, rolls to tomorrow")
}

func TestNextDigestFlush_DailyLaterTodayIfTimeNotYetPassed(t *testing.T) {
	now := time.Date(2026, 7, 31, 6, 0, 0, 0, time.UTC)
	settings := domain.DigestSettings{DailyEnabled: true, DailyTime: "09:00"}

	next := nextDigestFlush(domain.FrequencyDaily, settings, "UTC", now)
	assert.Equal(t, time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC), next)
}

func TestNextDigestFlush_DailyFallsBackWhenUnparseable(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 25, 0, 0, time.UTC)
	next := nextDigestFlush(domain.FrequencyDaily, domain.DigestSettings{}, "UTC", now)
	assert.Equal(t, now.Add(24*time.Hour), next)
}

func TestNextDigestFlush_WeeklyTargetsConfiguredDay(t *testing.T) {
	// 2026-07-31 is a Friday (weekday 5); target Sunday (weekday 0).
	now := time.Date(2026, 7, 31, 14, 25, 0, 0, time.UTC)
	settings := domain.DigestSettings{WeeklyEnabled: true, WeeklyDay: 0, DailyTime: "09:00"}

	next := nextDigestFlush(domain.FrequencyWeekly, settings, "UTC", now)
	assert.Equal(t, time.Sunday, next.Weekday())
	assert.True(t, next.After(now))
}

func TestNextDigestFlush_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 25, 0, 0, time.UTC)
	next := nextDigestFlush(domain.FrequencyHourly, domain.DigestSettings{}, "not/a/real/zone", now)
	assert.Equal(t, time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC), next)
}

func TestParseDigestTime(t *testing.T) {
	h, m, ok := parseDigestTime("09:30")
	assert.True(t, ok)
	assert.Equal(t, 9, h)
	assert.Equal(t, 30, m)

	_, _, ok = parseDigestTime("bad")
	assert.False(t, ok)

	_, _, ok = parseDigestTime("25:00")
	assert.False(t, ok)
}
