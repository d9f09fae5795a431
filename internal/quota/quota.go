// Package quota tracks each provider's monthly send quota as a Redis
// counter, independent of the circuit breaker: a provider can be perfectly
// healthy and still be out of quota, and a provider can be unhealthy with
// quota to spare.
package quota

import (
	"fmt"
	"time"

	"github.com/notihub/notihub/internal/apperrors"
)

// Store is the subset of the cache service quota tracking needs. Increment
// must be atomic (Redis INCRBY semantics): concurrent callers racing to
// record usage must never under-count.
type Store interface {
	Increment(key string, delta int64) (int64, error)
	Expire(key string, ttl time.Duration) error
}

// Limits maps provider name to its monthly send allowance. A provider with
// no entry is treated as unlimited.
type Limits map[string]int64

// Tracker enforces Limits against counters kept in Store.
//
// Reads fail open: if the counter lookup itself errors (a Redis outage),
// Allow reports true rather than blocking every send in the cluster behind
// a quota system that cannot currently answer. A provider that is
// genuinely over quota is still caught on the next healthy read, and
// circuit breakers / provider health checks catch a truly broken Redis
// independently.
type Tracker struct {
	store  Store
	limits Limits
	clock  func() time.Time
}

// NewTracker builds a Tracker. clock defaults to time.Now when nil; tests
// may override it to pin the counter's monthly bucket.
func NewTracker(store Store, limits Limits, clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{store: store, limits: limits, clock: clock}
}

func (t *Tracker) bucketKey(provider string) string {
	return fmt.Sprintf("quota:%s:%s", provider, t.clock().UTC().Format("2006-01"))
}

// Reserve atomically increments the provider's monthly counter and reports
// whether the send that prompted the increment should proceed. The counter
// is always incremented (usage is recorded even on a rejection, since the
// attempt still consumed a slot worth accounting for), matching a fail-open
// read policy: a Store error allows the send through.
func (t *Tracker) Reserve(provider string) (bool, error) {
	limit, limited := t.limits[provider]
	if !limited {
		return true, nil
	}

	key := t.bucketKey(provider)
	count, err := t.store.Increment(key, 1)
	if err != nil {
		return true, nil // fail open: an unreadable counter must not halt delivery
	}
	if count == 1 {
		// First write of the month; let the key expire on its own rather
		// than accumulating unbounded monthly keys.
		_ = t.store.Expire(key, 35*24*time.Hour)
	}

	if count > limit {
		return false, apperrors.NewQuotaExhaustedError(provider)
	}
	return true, nil
}

// Remaining returns the provider's configured limit minus its current
// month-to-date usage (never below 0), without incrementing anything. A
// provider with no limit entry is unlimited and Remaining returns -1 for it.
func (t *Tracker) Remaining(provider string) (int64, error) {
	limit, limited := t.limits[provider]
	if !limited {
		return -1, nil
	}
	key := t.bucketKey(provider)
	// Increment-by-zero reads the current value atomically without
	// mutating it and without a separate GET/parse path.
	used, err := t.store.Increment(key, 0)
	if err != nil {
		return limit, nil
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Providers lists the provider names carrying a configured limit, for
// callers that need to report per-provider usage without holding their own
// copy of the limits map.
func (t *Tracker) Providers() []string {
	providers := make([]string, 0, len(t.limits))
	for provider := range t.limits {
		providers = append(providers, provider)
	}
	return providers
}
