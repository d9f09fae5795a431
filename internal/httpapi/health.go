package httpapi

import (
	"time"

	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/monitoring"
)

// registerHealthChecks adds the provider circuit-breaker and quota trackers
// as custom components on the health checker, so a degraded or exhausted
// provider shows up in GET /health rather than only surfacing on the next
// failed send.
func (s *Server) registerHealthChecks() {
	if s.health == nil {
		return
	}
	if s.breakers != nil {
		s.health.RegisterCustomCheck("circuit_breakers", s.checkCircuitBreakers)
	}
	if s.quota != nil {
		s.health.RegisterCustomCheck("provider_quota", s.checkQuota)
	}
}

func (s *Server) checkCircuitBreakers() monitoring.ComponentHealth {
	snapshot := s.breakers.Snapshot()
	status := monitoring.HealthStatusHealthy
	for _, state := range snapshot {
		if state == circuitbreaker.StateOpen {
			status = monitoring.HealthStatusDegraded
		}
	}
	return monitoring.ComponentHealth{
		Status:      status,
		LastChecked: time.Now(),
		Details:     snapshot,
	}
}

func (s *Server) checkQuota() monitoring.ComponentHealth {
	remaining := make(map[string]int64, len(s.quota.Providers()))
	status := monitoring.HealthStatusHealthy
	for _, provider := range s.quota.Providers() {
		left, err := s.quota.Remaining(provider)
		if err != nil {
			status = monitoring.HealthStatusDegraded
			continue
		}
		remaining[provider] = left
		if left == 0 {
			status = monitoring.HealthStatusDegraded
		}
	}
	return monitoring.ComponentHealth{
		Status:      status,
		LastChecked: time.Now(),
		Details:     remaining,
	}
}
