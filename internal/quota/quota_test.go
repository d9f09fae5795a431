package quota

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	counts   map[string]int64
	failNext bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{counts: make(map[string]int64)}
}

func (f *fakeStore) Increment(key string, delta int64) (int64, error) {
	if f.failNext {
		return 0, errors.New("redis unavailable")
	}
	f.counts[key] += delta
	return f.counts[key], nil
}

func (f *fakeStore) Expire(key string, ttl time.Duration) error { return nil }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTracker_UnlimitedProviderAlwaysAllowed(t *testing.T) {
	tr := NewTracker(newFakeStore(), Limits{}, nil)
	ok, err := tr.Reserve("in_app")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestTracker_ReserveUnderLimit(t *testing.T) {
	tr := NewTracker(newFakeStore(), Limits{"fcm": 5}, fixedClock(time.Now()))
	for i := 0; i < 5; i++ {
		ok, err := tr.Reserve("fcm")
		assert.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestTracker_ReserveOverLimitRejects(t *testing.T) {
	now := time.Now()
	tr := NewTracker(newFakeStore(), Limits{"fcm": 2}, fixedClock(now))
	tr.Reserve("fcm")
	tr.Reserve("fcm")
	ok, err := tr.Reserve("fcm")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestTracker_StoreErrorFailsOpen(t *testing.T) {
	store := newFakeStore()
	store.failNext = true
	tr := NewTracker(store, Limits{"fcm": 1}, nil)

	ok, err := tr.Reserve("fcm")
	assert.NoError(t, err, "a store failure must not surface as a quota error")
	assert.True(t, ok, "a store failure must allow the send through")
}

func TestTracker_MonthlyBucketsAreIndependent(t *testing.T) {
	store := newFakeStore()
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	trJan := NewTracker(store, Limits{"fcm": 1}, fixedClock(jan))
	trFeb := NewTracker(store, Limits{"fcm": 1}, fixedClock(feb))

	ok, err := trJan.Reserve("fcm")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = trFeb.Reserve("fcm")
	assert.NoError(t, err, "a new month must start with a fresh counter")
	assert.True(t, ok)
}

func TestTracker_RemainingReflectsUsage(t *testing.T) {
	tr := NewTracker(newFakeStore(), Limits{"fcm": 10}, nil)
	tr.Reserve("fcm")
	tr.Reserve("fcm")
	remaining, err := tr.Remaining("fcm")
	assert.NoError(t, err)
	assert.Equal(t, int64(8), remaining)
}

func TestTracker_RemainingUnlimitedProvider(t *testing.T) {
	tr := NewTracker(newFakeStore(), Limits{}, nil)
	remaining, err := tr.Remaining("in_app")
	assert.NoError(t, err)
	assert.Equal(t, int64(-1), remaining)
}
