// Package httpapi wires the gin route surface in front of the notification
// orchestrator, preference store, digest/queue workers, and translation
// engine. Route grouping and middleware ordering follow the reference bot
// server's cmd/bot/main.go (health/metrics endpoints, graceful shutdown left
// to the caller); the engine is built with gin.New plus an explicit Recovery
// middleware rather than gin.Default.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/middleware"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/quota"
)

// Server bundles every dependency the route handlers close over.
type Server struct {
	engine               EngineAPI
	repo                 PreferenceRepository
	digestProc           DigestProcessor
	queueProc            QueueProcessor
	translationQueueProc TranslationQueueProcessor
	translator           Translator
	translationHealth    TranslationHealthReporter
	webhooks             WebhookVerifier
	health               *monitoring.HealthChecker
	monitoring           *monitoring.MonitoringMiddleware
	statsRepo            StatsRepository
	breakers             *circuitbreaker.Registry
	quota                *quota.Tracker
	jwtSecret            string
	cronSecret           string
}

// Config bundles the constructor's dependencies so New's signature stays
// readable as the route surface grows.
type Config struct {
	Engine             EngineAPI
	Repo               PreferenceRepository
	Digest             DigestProcessor
	Queue              QueueProcessor
	TranslationQueue   TranslationQueueProcessor
	Translator         Translator
	TranslationHealth  TranslationHealthReporter
	Webhooks           WebhookVerifier
	Health             *monitoring.HealthChecker
	Monitoring         *monitoring.MonitoringMiddleware
	Stats              StatsRepository
	Breakers           *circuitbreaker.Registry
	Quota              *quota.Tracker
	JWTSecret          string
	CronSecret         string
}

// New builds a Server from its dependencies and, when both a health checker
// and the provider breaker/quota trackers are supplied, registers their
// custom health checks.
func New(cfg Config) *Server {
	s := &Server{
		engine:               cfg.Engine,
		repo:                 cfg.Repo,
		digestProc:           cfg.Digest,
		queueProc:            cfg.Queue,
		translationQueueProc: cfg.TranslationQueue,
		translator:           cfg.Translator,
		translationHealth:    cfg.TranslationHealth,
		webhooks:             cfg.Webhooks,
		health:               cfg.Health,
		monitoring:           cfg.Monitoring,
		statsRepo:            cfg.Stats,
		breakers:             cfg.Breakers,
		quota:                cfg.Quota,
		jwtSecret:            cfg.JWTSecret,
		cronSecret:           cfg.CronSecret,
	}
	s.registerHealthChecks()
	return s
}

// Router builds the gin engine with every route group registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("notihub-api"))
	r.Use(middleware.LoggingMiddleware(middleware.DefaultLoggingConfig()))
	r.Use(middleware.ErrorHandler())

	if s.health != nil {
		r.GET("/health", s.health.HealthHandler())
		r.GET("/ready", s.health.ReadinessHandler())
		r.GET("/live", s.health.LivenessHandler())
	}
	if s.monitoring != nil {
		r.Use(s.monitoring.GinMiddleware())
		s.monitoring.RegisterRoutes(r)
	}
	r.GET("/stats", s.handleStats)

	send := r.Group("/", middleware.JWTAuth(s.jwtSecret))
	send.POST("/send", s.handleSend)
	send.POST("/send/batch", s.handleSendBatch)
	send.POST("/send/template", s.handleSendTemplate)
	send.GET("/preferences", s.handleGetPreferences)
	send.PUT("/preferences", s.handlePutPreferences)
	send.POST("/preferences/dnd", s.handleSetDnd)
	send.DELETE("/preferences/dnd", s.handleClearDnd)

	ops := r.Group("/", middleware.ServiceAuth(s.cronSecret))
	ops.POST("/digest/process", s.handleDigestProcess)
	ops.POST("/queue/process", s.handleQueueProcess)
	ops.POST("/process-queue", s.handleTranslationQueueProcess)
	ops.POST("/webhook/:provider", s.handleWebhook)

	translate := r.Group("/")
	translate.POST("/translate", s.handleTranslate)
	translate.POST("/batch-translate", s.handleBatchTranslate)
	translate.GET("/translate/health", s.handleTranslationHealth)

	return r
}
