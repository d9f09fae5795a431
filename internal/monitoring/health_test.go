package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0", "2024-01-01", "abc123")
	assert.NotNil(t, hc)

	health := hc.GetHealth()
	assert.Equal(t, "test-service", health.Service)
	assert.Equal(t, HealthStatusHealthy, health.Status)
}

func TestHealthChecker_RegisterCustomCheck_Healthy(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0", "", "")
	hc.RegisterCustomCheck("queue", func() ComponentHealth {
		return ComponentHealth{Status: HealthStatusHealthy, LastChecked: time.Now()}
	})

	health := hc.GetHealth()
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Contains(t, health.Components, "queue")
}

func TestHealthChecker_RegisterCustomCheck_UnhealthyDegradesOverall(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0", "", "")
	hc.RegisterCustomCheck("db", func() ComponentHealth {
		return ComponentHealth{Status: HealthStatusHealthy, LastChecked: time.Now()}
	})
	hc.RegisterCustomCheck("translation-deepl", func() ComponentHealth {
		return ComponentHealth{Status: HealthStatusUnhealthy, Message: "connection refused", LastChecked: time.Now()}
	})

	health := hc.GetHealth()
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
}

func TestHealthChecker_RegisterProviderCheck(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0", "", "")
	hc.RegisterProviderCheck("fcm", func(ctx context.Context) ProviderHealth {
		return ProviderHealth{Status: HealthStatusDegraded, LatencyMS: 42, Message: "circuit half-open"}
	})

	health := hc.GetHealth()
	component, ok := health.Components["fcm"]
	assert.True(t, ok)
	assert.Equal(t, HealthStatusDegraded, component.Status)
	assert.Equal(t, "circuit half-open", component.Message)
	assert.NotNil(t, component.Latency)
	assert.Equal(t, int64(42), *component.Latency)
}

func TestHealthChecker_GetHealth_NoChecksIsHealthy(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0", "", "")
	health := hc.GetHealth()
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Empty(t, health.Components)
}

func TestHealthChecker_LivenessHandlerAlwaysOK(t *testing.T) {
	hc := NewHealthChecker("test-service", "1.0.0", "", "")
	assert.NotNil(t, hc.LivenessHandler())
}
