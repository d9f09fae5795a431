// Package wiring builds the shared dependency graph both the HTTP API and
// the background worker start from: storage, resilience primitives, and
// every channel adapter. cmd/api and cmd/worker each add their own surface
// (HTTP routes vs. cron/asynq schedules) on top of the same Bundle.
package wiring

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	awstranslate "github.com/aws/aws-sdk-go-v2/service/translate"

	"github.com/notihub/notihub/internal/cache"
	"github.com/notihub/notihub/internal/channel/email"
	"github.com/notihub/notihub/internal/channel/inapp"
	"github.com/notihub/notihub/internal/channel/push"
	"github.com/notihub/notihub/internal/channel/sms"
	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/config"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/orchestrator"
	"github.com/notihub/notihub/internal/queue"
	"github.com/notihub/notihub/internal/quota"
	"github.com/notihub/notihub/internal/repository"
	"github.com/notihub/notihub/internal/retrybudget"
	"github.com/notihub/notihub/internal/translation"

	_ "github.com/lib/pq"
)

// Bundle holds every dependency cmd/api and cmd/worker both need.
type Bundle struct {
	DB    *sql.DB
	Redis *cache.RedisService
	Repo  *repository.Repository

	Breakers *circuitbreaker.Registry
	Budget   *retrybudget.Budget
	Quota    *quota.Tracker

	PushRouter    *push.Router
	EmailSelector *email.Selector
	SMS           *sms.Adapter
	InApp         *inapp.Adapter

	DigestQueue     *queue.DigestAccumulator
	AutomationQueue *queue.AutomationQueue

	Engine     *orchestrator.Engine
	Translator *translation.Engine

	Monitoring *monitoring.MonitoringMiddleware
}

// Build opens the database and Redis connections, waits for the database to
// accept connections, and constructs every adapter the configuration has
// credentials for. A provider left unconfigured is skipped rather than
// failing the build (a nil push adapter, an email provider left out of the
// selector, an SMS adapter built with Enabled false), so a deployment
// missing (say) Twilio credentials still starts with push/email/in-app
// working.
func Build(ctx context.Context, cfg config.Config, logger *log.Logger) (*Bundle, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	for i := 0; i < 30; i++ {
		if pingErr := db.Ping(); pingErr == nil {
			logger.Println("database connection established")
			break
		} else if i == 29 {
			return nil, fmt.Errorf("connect to database after 30 retries: %w", pingErr)
		}
		time.Sleep(time.Second)
	}

	redisService, err := cache.NewInstrumentedRedisService(nil)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	repo := repository.New(db, redisService)

	// Health checks are registered separately by cmd/api against its own
	// monitoring.HealthChecker; this middleware only owns metrics/alerting
	// so RegisterRoutes never double-registers /health.
	monitor := monitoring.NewMonitoringMiddleware(&monitoring.MiddlewareConfig{
		EnableMetrics:        true,
		EnableAlerting:       true,
		EnableHealthChecks:   false,
		MetricsPath:          "/metrics",
		AlertsPath:           "/alerts",
		SkipPaths:            []string{"/favicon.ico", "/robots.txt"},
		SlowRequestThreshold: time.Second,
		ErrorRateThreshold:   5.0,
	}, nil)
	metricsCollector := monitor.GetMetrics()

	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		OpenTimeout:      cfg.CircuitBreaker.OpenTimeout,
	}, func(name string, from, to circuitbreaker.State) {
		logger.Printf("circuit breaker %s: %s -> %s", name, from, to)
		if to == circuitbreaker.StateOpen && metricsCollector != nil {
			metricsCollector.RecordCircuitBreakerTrip(name)
		}
	})
	budget := retrybudget.New(cfg.RetryBudget.MaxTokens, cfg.RetryBudget.RefillRate)
	quotaTracker := quota.NewTracker(redisService, cfg.Quota.Limits, nil)

	pushRouter := buildPushRouter(ctx, cfg, breakers, budget, quotaTracker, logger)
	emailSelector := buildEmailSelector(ctx, cfg, breakers, budget, quotaTracker, logger)
	smsAdapter := sms.NewAdapter(sms.Config{
		Enabled:    cfg.Twilio.Enabled,
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
	}, breakers, budget, quotaTracker)
	inappAdapter := inapp.NewAdapter(redisInAppPublisher{svc: redisService}, repo)

	digestQueue := queue.NewDigestAccumulator(redisService.GetClient())
	automationQueue := queue.NewAutomationQueue(redisService.GetClient())

	engine := orchestrator.NewWithRepository(repo, orchestrator.Deps{
		PushRouter:    pushRouter,
		EmailSelector: emailSelector,
		SMS:           smsAdapter,
		InApp:         inappAdapter,
		Digest:        digestQueue,
		Metrics:       metricsCollector,
	})

	translator := buildTranslationEngine(cfg, repo, metricsCollector)

	return &Bundle{
		DB:              db,
		Redis:           redisService,
		Repo:            repo,
		Breakers:        breakers,
		Budget:          budget,
		Quota:           quotaTracker,
		PushRouter:      pushRouter,
		EmailSelector:   emailSelector,
		SMS:             smsAdapter,
		InApp:           inappAdapter,
		DigestQueue:     digestQueue,
		AutomationQueue: automationQueue,
		Engine:          engine,
		Translator:      translator,
		Monitoring:      monitor,
	}, nil
}

// Close releases the database and Redis connections. Call once at shutdown.
func (b *Bundle) Close() {
	if err := b.DB.Close(); err != nil {
		log.Printf("failed to close db: %v", err)
	}
	if err := b.Redis.Close(); err != nil {
		log.Printf("failed to close redis: %v", err)
	}
}

func buildPushRouter(ctx context.Context, cfg config.Config, breakers *circuitbreaker.Registry, budget *retrybudget.Budget, qt *quota.Tracker, logger *log.Logger) *push.Router {
	var apnsAdapter push.Adapter
	if len(cfg.APNS.PrivateKey) > 0 {
		adapter, err := push.NewAPNsAdapter(push.APNsConfig{
			AuthKey:    cfg.APNS.PrivateKey,
			KeyID:      cfg.APNS.KeyID,
			TeamID:     cfg.APNS.TeamID,
			Topic:      cfg.APNS.BundleID,
			Production: cfg.APNS.Production,
		}, breakers, budget, qt)
		if err != nil {
			logger.Printf("WARNING: APNs adapter disabled: %v", err)
		} else {
			apnsAdapter = adapter
		}
	}

	var fcmAdapter push.Adapter
	if cfg.FCM.ProjectID != "" && len(cfg.FCM.ServiceAccountKey) > 0 {
		serviceAccountJSON, err := fcmServiceAccountJSON(cfg.FCM)
		if err != nil {
			logger.Printf("WARNING: FCM adapter disabled: %v", err)
		} else {
			adapter, err := push.NewFCMAdapter(ctx, push.FCMConfig{
				ProjectID:         cfg.FCM.ProjectID,
				ServiceAccountKey: serviceAccountJSON,
			}, breakers, budget, qt)
			if err != nil {
				logger.Printf("WARNING: FCM adapter disabled: %v", err)
			} else {
				fcmAdapter = adapter
			}
		}
	}

	var webpushAdapter push.Adapter
	if cfg.WebPush.PrivateKey != "" {
		key, err := parseVAPIDPrivateKey(cfg.WebPush.PrivateKey)
		if err != nil {
			logger.Printf("WARNING: WebPush adapter disabled: %v", err)
		} else {
			webpushAdapter = push.NewWebPushAdapter(push.WebPushConfig{
				VAPIDPrivateKey: key,
				Subscriber:      cfg.WebPush.Subject,
			}, breakers, budget, qt)
		}
	}

	return push.NewRouter(apnsAdapter, fcmAdapter, webpushAdapter)
}

// fcmServiceAccountJSON assembles the GCP service-account JSON blob
// golang.org/x/oauth2/google expects from the three discrete env vars
// notihub's deployment actually carries (FCM_PROJECT_ID, FCM_CLIENT_EMAIL,
// FCM_PRIVATE_KEY) rather than requiring operators to inline a whole JSON
// key file as one env var.
func fcmServiceAccountJSON(cfg config.FCMConfig) ([]byte, error) {
	account := map[string]string{
		"type":         "service_account",
		"project_id":   cfg.ProjectID,
		"client_email": cfg.ClientEmail,
		"private_key":  string(cfg.ServiceAccountKey),
		"token_uri":    "https://oauth2.googleapis.com/token",
	}
	return json.Marshal(account)
}

// awsConfigOptions resolves the SDK config options SES and the Amazon
// translation tier both load against. A deployment that sets
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY gets a static credentials provider
// built from them; otherwise the default chain (IAM role, shared config,
// SDK-managed env vars) applies unchanged.
func awsConfigOptions(cfg config.SESConfig) []func(*awsconfig.LoadOptions) error {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	return opts
}

func buildEmailSelector(ctx context.Context, cfg config.Config, breakers *circuitbreaker.Registry, budget *retrybudget.Budget, qt *quota.Tracker, logger *log.Logger) *email.Selector {
	var providers []email.Adapter

	if cfg.SES.From != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsConfigOptions(cfg.SES)...)
		if err != nil {
			logger.Printf("WARNING: SES adapter disabled: %v", err)
		} else {
			sesClient := sesv2.NewFromConfig(awsCfg)
			providers = append(providers, email.NewSESAdapter(sesClient, cfg.SES.From, breakers, budget, qt))
		}
	}
	if cfg.SendGrid.APIKey != "" {
		providers = append(providers, email.NewSendGridAdapter(cfg.SendGrid.APIKey, cfg.SendGrid.FromAddress, cfg.SendGrid.FromName, breakers, budget, qt))
	}
	if cfg.SMTP.Host != "" {
		providers = append(providers, email.NewSMTPAdapter(email.SMTPConfig{
			Host: cfg.SMTP.Host, Port: cfg.SMTP.Port, Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password, From: cfg.SMTP.From,
		}, breakers, budget, qt))
	}

	return email.NewSelector(breakers, providers...)
}

// translationUsageRecorder wraps the repository's usage recorder so every
// recorded translation also feeds the notification platform's
// translations_served_total series.
type translationUsageRecorder struct {
	repo    *repository.Repository
	metrics *monitoring.MetricsCollector
}

func (r translationUsageRecorder) RecordTranslationUsage(ctx context.Context, provider string, qualityScore float64) error {
	if r.metrics != nil {
		r.metrics.RecordTranslationServed(provider, false)
	}
	return r.repo.RecordTranslationUsage(ctx, provider, qualityScore)
}

func buildTranslationEngine(cfg config.Config, repo *repository.Repository, metricsCollector *monitoring.MetricsCollector) *translation.Engine {
	var tiers []translation.Tier
	if cfg.Translation.SelfHostedBaseURL != "" {
		tiers = append(tiers, translation.NewSelfHostedTier(cfg.Translation.SelfHostedBaseURL))
	}
	if cfg.Translation.DeepLAPIKey != "" {
		tiers = append(tiers, translation.NewDeepLTier(cfg.Translation.DeepLAPIKey))
	}
	if cfg.Translation.GoogleAPIKey != "" {
		tiers = append(tiers, translation.NewGoogleTier(cfg.Translation.GoogleAPIKey))
	}
	if cfg.Translation.MicrosoftAPIKey != "" {
		tiers = append(tiers, translation.NewMicrosoftTier(cfg.Translation.MicrosoftAPIKey, cfg.Translation.MicrosoftRegion))
	}
	if awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsConfigOptions(cfg.SES)...); err == nil {
		tiers = append(tiers, translation.NewAmazonTier(awstranslate.NewFromConfig(awsCfg)))
	}

	localCache, err := translation.NewCache(cfg.Translation.CacheCapacity, cfg.Translation.CacheTTL)
	if err != nil {
		log.Fatalf("failed to build translation cache: %v", err)
	}
	return translation.NewEngine(tiers, localCache, nil, translationUsageRecorder{repo: repo, metrics: metricsCollector})
}

// redisInAppPublisher adapts *cache.RedisService's client to the narrow
// Publisher interface the in-app channel needs.
type redisInAppPublisher struct {
	svc *cache.RedisService
}

func (p redisInAppPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal in-app event: %w", err)
	}
	return p.svc.GetClient().Publish(ctx, channel, payload).Err()
}

// parseVAPIDPrivateKey decodes VAPID_PRIVATE_KEY, a base64url-encoded raw
// P-256 scalar (the format every web-push library and the W3C spec's own
// examples use), into the ecdsa.PrivateKey the adapter signs with.
func parseVAPIDPrivateKey(b64 string) (*ecdsa.PrivateKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode VAPID_PRIVATE_KEY: %w", err)
	}
	curve := elliptic.P256()
	x, y := curve.ScalarBaseMult(raw)
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         new(big.Int).SetBytes(raw),
	}, nil
}
