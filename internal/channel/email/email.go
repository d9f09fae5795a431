// Package email implements the email provider adapters (Amazon SES,
// SendGrid, and a plain SMTP relay) behind a shared Adapter contract, plus
// the selection logic that picks among them by health, quota headroom, and
// the recipient suppression list.
package email

import (
	"context"
	"time"

	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
)

// Payload is everything an adapter needs to send one email.
type Payload struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Adapter is implemented by each email provider's sender.
type Adapter interface {
	Name() string
	Send(ctx context.Context, deadline time.Time, payload Payload) (domain.DeliveryOutcome, error)
	Health(ctx context.Context) monitoring.ProviderHealth
}

// SuppressionChecker looks up the bounce/complaint suppression list.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, address string) (bool, error)
}

// Selector keeps candidate providers in the order they were registered,
// which callers set to their preferred priority (primary first), and skips
// any provider whose circuit is open. No other health signal is consulted.
type Selector struct {
	providers []Adapter
	breakers  *circuitbreaker.Registry
}

func NewSelector(breakers *circuitbreaker.Registry, providers ...Adapter) *Selector {
	return &Selector{providers: providers, breakers: breakers}
}

// Select returns the providers to try in order, skipping any whose circuit
// breaker is currently open. If every provider's circuit is open, all are
// returned anyway so the caller can surface the real provider error rather
// than a bare "no provider available".
func (s *Selector) Select() []Adapter {
	usable := make([]Adapter, 0, len(s.providers))
	for _, p := range s.providers {
		if s.breakers.Get(p.Name()).State() != circuitbreaker.StateOpen {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return s.providers
	}
	return usable
}
