package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInQuietHours_WrapsPastMidnight(t *testing.T) {
	qh := QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "Europe/Prague"}
	loc, _ := time.LoadLocation("Europe/Prague")

	tests := []struct {
		name string
		hour int
		min  int
		want bool
	}{
		{"23:00 inside window", 23, 0, true},
		{"02:00 inside window", 2, 0, true},
		{"09:00 outside window", 9, 0, false},
		{"22:00 boundary inside", 22, 0, true},
		{"08:00 boundary excluded", 8, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2026, 7, 31, tt.hour, tt.min, 0, 0, loc)
			assert.Equal(t, tt.want, InQuietHours(qh, now))
		})
	}
}

func TestInQuietHours_Disabled(t *testing.T) {
	qh := QuietHours{Enabled: false, Start: "22:00", End: "08:00", Timezone: "UTC"}
	assert.False(t, InQuietHours(qh, time.Now()))
}

func TestInQuietHours_NonWrapping(t *testing.T) {
	qh := QuietHours{Enabled: true, Start: "09:00", End: "17:00", Timezone: "UTC"}
	assert.True(t, InQuietHours(qh, time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)))
	assert.False(t, InQuietHours(qh, time.Date(2026, 7, 31, 18, 0, 0, 0, time.UTC)))
}

func TestInDnd(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	assert.True(t, InDnd(DndSettings{Enabled: true, Until: &future}, time.Now()))
	assert.False(t, InDnd(DndSettings{Enabled: true, Until: &past}, time.Now()))
	assert.False(t, InDnd(DndSettings{Enabled: false, Until: &future}, time.Now()))
}

func TestNextQuietHoursExit(t *testing.T) {
	qh := QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "UTC"}
	now := time.Date(2026, 7, 31, 23, 30, 0, 0, time.UTC)

	exit := NextQuietHoursExit(qh, now)
	assert.Equal(t, 8, exit.Hour())
	assert.Equal(t, 0, exit.Minute())
	assert.Equal(t, 1, exit.Day()) // rolls to Aug 1
}
