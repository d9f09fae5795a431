package domain

import (
	"time"
)

// InQuietHours reports whether now (converted to the window's IANA timezone)
// falls inside [start, end), handling windows that wrap past midnight
// (e.g. start=22:00, end=08:00).
func InQuietHours(qh QuietHours, now time.Time) bool {
	if !qh.Enabled {
		return false
	}
	loc, err := time.LoadLocation(qh.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	start, okStart := parseHHMM(qh.Start)
	end, okEnd := parseHHMM(qh.End)
	if !okStart || !okEnd {
		return false
	}

	minutesNow := local.Hour()*60 + local.Minute()

	if start == end {
		return false
	}
	if start < end {
		return minutesNow >= start && minutesNow < end
	}
	// Wraps past midnight: e.g. 22:00-08:00 includes 23:00 and 02:00, excludes 09:00.
	return minutesNow >= start || minutesNow < end
}

// NextQuietHoursExit returns the next instant (in now's original location)
// the quiet-hours window will no longer contain "now".
func NextQuietHoursExit(qh QuietHours, now time.Time) time.Time {
	loc, err := time.LoadLocation(qh.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	_, okEnd := parseHHMM(qh.End)
	if !okEnd {
		return now
	}
	endHour, endMin := splitHHMM(qh.End)

	candidate := time.Date(local.Year(), local.Month(), local.Day(), endHour, endMin, 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate.In(now.Location())
}

// InDnd reports whether now is before the DND window's until timestamp.
func InDnd(d DndSettings, now time.Time) bool {
	if !d.Enabled || d.Until == nil {
		return false
	}
	return now.Before(*d.Until)
}

func parseHHMM(s string) (minutes int, ok bool) {
	h, m := splitHHMM(s)
	if h < 0 {
		return 0, false
	}
	return h*60 + m, true
}

func splitHHMM(s string) (hour, minute int) {
	if len(s) != 5 || s[2] != ':' {
		return -1, 0
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return -1, 0
	}
	return h, m
}
