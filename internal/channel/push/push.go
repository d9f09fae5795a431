// Package push implements the push-notification provider adapters (APNs,
// FCM v1, WebPush) behind one shared Payload/Adapter contract, the same
// shape the reference bot sender used for its single Telegram channel,
// generalized here to three competing providers selected by device platform.
package push

import (
	"context"
	"time"

	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
)

// Payload is everything an adapter needs to deliver one push to one device.
type Payload struct {
	Token       string
	Title       string
	Body        string
	Data        map[string]string
	ImageURL    string
	Sound       string
	Badge       *int
	CollapseKey string
	TTLSeconds  int
}

// Adapter is implemented by each provider-specific sender.
type Adapter interface {
	Name() string
	Send(ctx context.Context, deadline time.Time, payload Payload) (domain.DeliveryOutcome, error)
	Health(ctx context.Context) monitoring.ProviderHealth
}

// Router picks the adapter for a device token's platform.
type Router struct {
	apns    Adapter
	fcm     Adapter
	webpush Adapter
}

func NewRouter(apns, fcm, webpush Adapter) *Router {
	return &Router{apns: apns, fcm: fcm, webpush: webpush}
}

// For returns the adapter responsible for platform, or nil if none is wired.
func (r *Router) For(platform domain.Platform) Adapter {
	switch platform {
	case domain.PlatformIOS:
		return r.apns
	case domain.PlatformAndroid:
		return r.fcm
	case domain.PlatformWeb:
		return r.webpush
	default:
		return nil
	}
}

// All returns every wired adapter, for health aggregation.
func (r *Router) All() []Adapter {
	out := make([]Adapter, 0, 3)
	for _, a := range []Adapter{r.apns, r.fcm, r.webpush} {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}
