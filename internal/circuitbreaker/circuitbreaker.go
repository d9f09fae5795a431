// Package circuitbreaker gives every provider adapter (push, email, SMS,
// translation tier) its own failure-isolated breaker so one unhealthy
// downstream cannot starve the retry budget available to the others.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/notihub/notihub/internal/apperrors"
)

// State mirrors the three-value circuit state named by the adapter contract:
// closed (normal), open (failing fast), half_open (probing recovery).
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config controls trip/recovery thresholds. One Config is shared by every
// breaker a Registry creates; providers differ in failure rate, not policy.
type Config struct {
	// FailureThreshold is the number of consecutive retryable failures that
	// trips a closed breaker to open.
	FailureThreshold uint32
	// SuccessThreshold is the number of consecutive successes a half-open
	// breaker needs before it closes again.
	SuccessThreshold uint32
	// OpenTimeout is how long a breaker stays open before allowing a
	// half-open probe.
	OpenTimeout time.Duration
}

// DefaultConfig matches the thresholds named for provider adapters: five
// consecutive failures opens the circuit, three consecutive probe successes
// closes it, and a 30 second cooldown before the first probe.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker wraps a single provider's gobreaker.CircuitBreaker. Non-retryable
// failures (bad request payloads, suppressed recipients, and the like) are
// never counted toward a trip — only failures that indicate the provider
// itself is unhealthy move the circuit.
type Breaker struct {
	provider string
	cb       *gobreaker.CircuitBreaker
}

func newBreaker(provider string, cfg Config, onStateChange func(name string, from, to State)) *Breaker {
	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: cfg.SuccessThreshold,
		Interval:    0, // never reset closed-state counts on a timer; only consecutive counts matter
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if appErr, ok := apperrors.AsAppError(err); ok {
				// A non-retryable failure is a business-logic outcome
				// (validation, suppression, quota), not a sign the provider
				// is unhealthy, so it must not count toward a trip.
				return !appErr.Retryable
			}
			return false
		},
	}
	if onStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			onStateChange(name, mapState(from), mapState(to))
		}
	}
	return &Breaker{provider: provider, cb: gobreaker.NewCircuitBreaker(settings)}
}

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// State reports the breaker's current state.
func (b *Breaker) State() State {
	return mapState(b.cb.State())
}

// Execute runs fn through the breaker. If the circuit is open, fn is never
// called and a CIRCUIT_OPEN AppError is returned immediately so the
// orchestrator can move on to the next provider in the fallback chain.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperrors.NewCircuitOpenError(b.provider)
	}
	return err
}

// Registry hands out one Breaker per provider name, creating it lazily on
// first use so new providers never need explicit registration.
type Registry struct {
	mu            sync.RWMutex
	breakers      map[string]*Breaker
	cfg           Config
	onStateChange func(name string, from, to State)
}

// NewRegistry builds a Registry. onStateChange, if non-nil, is invoked (from
// inside gobreaker's lock) whenever any provider's breaker transitions state —
// wire it to structured logging or metrics.
func NewRegistry(cfg Config, onStateChange func(name string, from, to State)) *Registry {
	return &Registry{
		breakers:      make(map[string]*Breaker),
		cfg:           cfg,
		onStateChange: onStateChange,
	}
}

// Get returns the breaker for provider, creating it on first access.
func (r *Registry) Get(provider string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[provider]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[provider]; ok {
		return b
	}
	b = newBreaker(provider, r.cfg, r.onStateChange)
	r.breakers[provider] = b
	return b
}

// Snapshot returns the current state of every provider breaker created so
// far, for /stats and /health reporting.
func (r *Registry) Snapshot() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}
