package monitoring

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// newTestGinContext builds a bare gin.Context for unit tests that exercise a
// single handler function directly, without routing through a full engine.
func newTestGinContext(w *httptest.ResponseRecorder) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/test", nil)
	return c
}

func TestDefaultMiddlewareConfig(t *testing.T) {
	config := DefaultMiddlewareConfig()

	assert.Equal(t, "/metrics", config.MetricsPath)
	assert.Equal(t, "/health", config.HealthPath)
	assert.Equal(t, "/alerts", config.AlertsPath)
	assert.Contains(t, config.SkipPaths, "/favicon.ico")
	assert.Contains(t, config.SkipPaths, "/robots.txt")
	assert.True(t, config.EnableMetrics)
	assert.True(t, config.EnableAlerting)
	assert.True(t, config.EnableHealthChecks)
}

func TestNewMonitoringMiddleware(t *testing.T) {
	health := NewHealthChecker("notihub-api", "1.0.0", "", "")
	mm := NewMonitoringMiddleware(DefaultMiddlewareConfig(), health)

	assert.NotNil(t, mm)
	assert.NotNil(t, mm.GetMetrics())
	assert.NotNil(t, mm.GetAlerts())
	assert.Equal(t, health, mm.GetHealth())
}

func TestNewMonitoringMiddleware_DisabledComponents(t *testing.T) {
	config := &MiddlewareConfig{
		EnableMetrics:      false,
		EnableAlerting:     false,
		EnableHealthChecks: false,
	}
	mm := NewMonitoringMiddleware(config, nil)

	assert.Nil(t, mm.GetMetrics())
	assert.Nil(t, mm.GetAlerts())
	assert.Nil(t, mm.GetHealth())
}

func TestMonitoringMiddleware_ShouldSkipPath(t *testing.T) {
	config := DefaultMiddlewareConfig()
	config.SkipPaths = []string{"/favicon.ico", "/robots.txt", "/metrics"}
	mm := NewMonitoringMiddleware(config, nil)

	assert.True(t, mm.shouldSkipPath("/favicon.ico"))
	assert.True(t, mm.shouldSkipPath("/robots.txt"))
	assert.False(t, mm.shouldSkipPath("/api/users"))
}

func TestMonitoringMiddleware_GinMiddleware_RecordsMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mm := NewMonitoringMiddleware(DefaultMiddlewareConfig(), nil)

	router := gin.New()
	router.Use(mm.GinMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	count := mm.GetMetrics().getCounterValue("http_requests_total", map[string]string{
		"method": "GET", "path": "/test", "status": "200",
	})
	assert.Equal(t, float64(1), count)
}

func TestMonitoringMiddleware_GinMiddleware_SkipsConfiguredPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := DefaultMiddlewareConfig()
	config.SkipPaths = []string{"/favicon.ico"}
	mm := NewMonitoringMiddleware(config, nil)

	router := gin.New()
	router.Use(mm.GinMiddleware())
	router.GET("/favicon.ico", func(c *gin.Context) { c.Status(200) })

	req := httptest.NewRequest("GET", "/favicon.ico", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	count := mm.GetMetrics().getCounterValue("http_requests_total", map[string]string{
		"method": "GET", "path": "/favicon.ico", "status": "200",
	})
	assert.Equal(t, float64(0), count)
}

func TestMonitoringMiddleware_GinMiddleware_RecordsErrorsAndSlowRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := DefaultMiddlewareConfig()
	config.SlowRequestThreshold = time.Millisecond
	mm := NewMonitoringMiddleware(config, nil)

	router := gin.New()
	router.Use(mm.GinMiddleware())
	router.GET("/broken", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.JSON(500, gin.H{"error": "boom"})
	})

	req := httptest.NewRequest("GET", "/broken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 500, w.Code)
	errCount := mm.GetMetrics().getCounterValue("http_errors_total", map[string]string{
		"method": "GET", "path": "/broken", "status": "500",
	})
	assert.Equal(t, float64(1), errCount)

	slowCount := mm.GetMetrics().getCounterValue("http_slow_requests_total", map[string]string{
		"method": "GET", "path": "/broken",
	})
	assert.Equal(t, float64(1), slowCount)

	alerts := mm.GetAlerts().GetAllAlerts()
	assert.NotEmpty(t, alerts)
}

func TestMonitoringMiddleware_RegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	health := NewHealthChecker("notihub-api", "1.0.0", "", "")
	config := DefaultMiddlewareConfig()
	mm := NewMonitoringMiddleware(config, health)

	router := gin.New()
	mm.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)

	req = httptest.NewRequest("GET", "/metrics/json", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)

	req = httptest.NewRequest("GET", "/alerts", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)

	req = httptest.NewRequest("GET", "/alerts/rules", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
}

func TestMonitoringMiddleware_RegisterRoutes_NoHealthWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := DefaultMiddlewareConfig()
	config.EnableHealthChecks = false
	mm := NewMonitoringMiddleware(config, nil)

	router := gin.New()
	mm.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, 404, w.Code)
}

func TestMonitoringMiddleware_SetAndGetComponents(t *testing.T) {
	mm := NewMonitoringMiddleware(DefaultMiddlewareConfig(), nil)

	metrics := NewMetricsCollector()
	alerts := NewAlertManager(DefaultAlertConfig())
	health := NewHealthChecker("svc", "1.0.0", "", "")

	mm.SetMetrics(metrics)
	mm.SetAlerts(alerts)
	mm.SetHealth(health)

	assert.Equal(t, metrics, mm.GetMetrics())
	assert.Equal(t, alerts, mm.GetAlerts())
	assert.Equal(t, health, mm.GetHealth())
}

func TestMonitoringMiddleware_Shutdown(t *testing.T) {
	mm := NewMonitoringMiddleware(DefaultMiddlewareConfig(), nil)
	assert.NoError(t, mm.Shutdown(nil))
}
