// Package retrybudget caps the total number of adapter retries the process
// will spend across all providers in a rolling window, so a widespread
// outage cannot turn every failed send into a retry storm.
package retrybudget

import (
	"sync"
	"time"
)

// Budget is a token bucket identical in algorithm to the per-caller rate
// limiter used for inbound HTTP traffic, repurposed here as a single
// process-wide bucket shared by every provider adapter's retry attempts.
type Budget struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	lastRefill time.Time
	refillRate time.Duration
}

// New creates a Budget with maxTokens capacity, refilling one token every
// refillRate/maxTokens of elapsed time (i.e. a full refill every refillRate).
func New(maxTokens int, refillRate time.Duration) *Budget {
	return &Budget{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		lastRefill: time.Now(),
		refillRate: refillRate,
	}
}

// Default returns the shared-retry-budget policy: 20 retries per 60 second
// window, refilled continuously rather than reset in a single burst.
func Default() *Budget {
	return New(20, 60*time.Second)
}

// TryAcquire reports whether a retry may be spent right now, consuming one
// token if so. Callers that get false must not retry and should surface the
// failure as-is rather than queueing a background retry.
func (b *Budget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	perToken := b.refillRate / time.Duration(b.maxTokens)
	if elapsed >= perToken {
		tokensToAdd := int(elapsed / perToken)
		if tokensToAdd > 0 {
			b.tokens = minInt(b.maxTokens, b.tokens+tokensToAdd)
			b.lastRefill = now
		}
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Remaining reports the current token count, for /stats reporting.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
