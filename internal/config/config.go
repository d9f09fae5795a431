// Package config loads every environment-variable-driven setting the API
// and worker binaries need: connection strings, provider credentials,
// circuit breaker/retry budget/quota tunables, and the operational knobs
// for the queue, digest, and automation processors. Sensitive values never
// get in-code defaults; only timeouts, pool sizes, and batch sizes do.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// Development convenience only; a missing .env is not an error, and
	// already-set environment variables always win (godotenv never
	// overwrites an existing value).
	_ = godotenv.Load()
}

// Config is the single settings struct both cmd/api and cmd/worker load;
// each binary only reads the fields relevant to it.
type Config struct {
	Environment string
	LogLevel    string
	HTTPAddr    string
	HealthPort  string

	DatabaseURL string
	RedisURL    string

	JWTSecret  string
	CronSecret string

	SentryDSN         string
	SentryEnvironment string
	EnableSentry      bool

	APNS    APNSConfig
	FCM     FCMConfig
	WebPush WebPushConfig

	SES      SESConfig
	SendGrid SendGridConfig
	SMTP     SMTPConfig

	Twilio TwilioConfig

	Translation TranslationConfig

	CircuitBreaker CircuitBreakerConfig
	RetryBudget    RetryBudgetConfig
	Quota          QuotaConfig

	Worker WorkerProcConfig
}

// APNSConfig carries Apple Push Notification service credentials.
type APNSConfig struct {
	KeyID      string
	TeamID     string
	BundleID   string
	PrivateKey []byte // PKCS8 PEM
	Production bool
}

// FCMConfig carries Firebase Cloud Messaging v1 credentials.
type FCMConfig struct {
	ProjectID         string
	ClientEmail       string
	ServiceAccountKey []byte
}

// WebPushConfig carries VAPID keys for browser push.
type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// SESConfig carries the region SigV4 requests resolve against, and
// credentials when a deployment passes them explicitly instead of relying
// on the default AWS credential chain (IAM role, shared config file, env
// vars named the SDK's own way). Both AccessKeyID and SecretAccessKey must
// be set for the static provider to take effect; otherwise the default
// chain is used unchanged.
type SESConfig struct {
	Region              string
	From                string
	WebhookSharedSecret string
	AccessKeyID         string
	SecretAccessKey     string
	SessionToken        string
}

// SendGridConfig carries SendGrid Web API v3 credentials.
type SendGridConfig struct {
	APIKey            string
	FromAddress       string
	FromName          string
	WebhookPublicKey  string
}

// SMTPConfig carries the fallback relay's connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// TwilioConfig carries the SMS channel's credentials. Enabled defaults to
// false: SMS ships disabled unless explicitly turned on.
type TwilioConfig struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TranslationConfig carries per-tier provider credentials for the 5-tier
// fallback chain (self-hosted, DeepL, Google, Microsoft, Amazon).
type TranslationConfig struct {
	SelfHostedBaseURL string
	DeepLAPIKey       string
	GoogleAPIKey      string
	MicrosoftAPIKey   string
	MicrosoftRegion   string
	CacheCapacity     int
	CacheTTL          time.Duration
}

// CircuitBreakerConfig mirrors circuitbreaker.Config's fields as env-loaded
// settings.
type CircuitBreakerConfig struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	OpenTimeout      time.Duration
}

// RetryBudgetConfig mirrors retrybudget.New's arguments.
type RetryBudgetConfig struct {
	MaxTokens  int
	RefillRate time.Duration
}

// QuotaConfig carries each provider's monthly send allowance. A provider
// absent from the map is treated as unlimited by quota.Tracker.
type QuotaConfig struct {
	Limits map[string]int64
}

// WorkerProcConfig carries the queue/digest/automation processor's batch
// sizes, retry limits, DLQ thresholds, and cron schedules.
type WorkerProcConfig struct {
	QueueBatchSize        int
	MaxAttempts           int
	StuckItemTimeout      time.Duration
	DigestBatchSize       int
	AutomationBatchSize   int
	AutomationConcurrency int
	AutomationLockTTL     time.Duration
	DLQWarningThreshold   int64
	DLQCriticalThreshold  int64
	DLQStaleAfter         time.Duration
	TranslationQueueBatchSize int

	QueueProcessSchedule            string
	DigestProcessSchedule           string
	AutomationDrainSchedule         string
	DLQHealthSchedule               string
	TranslationQueueProcessSchedule string
}

// Load reads every setting from the environment. Required secrets
// (DATABASE_URL, REDIS_URL, JWT_SECRET, CRON_SECRET) are left empty with a
// warning if unset rather than fatally exiting here — Validate is the
// fail-fast gate callers run once every optional subsystem has had a chance
// to register itself as present or absent.
func Load() Config {
	return Config{
		Environment: envOr("ENVIRONMENT", "development"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),
		HealthPort:  envOr("HEALTH_PORT", "8081"),

		DatabaseURL: envRequired("DATABASE_URL"),
		RedisURL:    envRequired("REDIS_URL"),

		JWTSecret:  envRequired("JWT_SECRET"),
		CronSecret: envRequired("CRON_SECRET"),

		SentryDSN:         os.Getenv("SENTRY_DSN"),
		SentryEnvironment: envOr("SENTRY_ENVIRONMENT", envOr("ENVIRONMENT", "development")),
		EnableSentry:      parseBool(os.Getenv("ENABLE_SENTRY")),

		APNS: APNSConfig{
			KeyID:      os.Getenv("APNS_KEY_ID"),
			TeamID:     os.Getenv("APNS_TEAM_ID"),
			BundleID:   os.Getenv("APNS_BUNDLE_ID"),
			PrivateKey: []byte(os.Getenv("APNS_PRIVATE_KEY")),
			Production: os.Getenv("APNS_ENVIRONMENT") == "production",
		},
		FCM: FCMConfig{
			ProjectID:         os.Getenv("FCM_PROJECT_ID"),
			ClientEmail:       os.Getenv("FCM_CLIENT_EMAIL"),
			ServiceAccountKey: []byte(os.Getenv("FCM_PRIVATE_KEY")),
		},
		WebPush: WebPushConfig{
			PublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			Subject:    os.Getenv("VAPID_SUBJECT"),
		},

		SES: SESConfig{
			Region:              envOr("AWS_REGION", "us-east-1"),
			From:                os.Getenv("SES_FROM_ADDRESS"),
			WebhookSharedSecret: os.Getenv("SES_WEBHOOK_SHARED_SECRET"),
			AccessKeyID:         os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:        os.Getenv("AWS_SESSION_TOKEN"),
		},
		SendGrid: SendGridConfig{
			APIKey:           os.Getenv("SENDGRID_API_KEY"),
			FromAddress:      os.Getenv("SENDGRID_FROM_ADDRESS"),
			FromName:         envOr("SENDGRID_FROM_NAME", "Notihub"),
			WebhookPublicKey: os.Getenv("SENDGRID_WEBHOOK_PUBLIC_KEY"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM_ADDRESS"),
		},

		Twilio: TwilioConfig{
			Enabled:    parseBool(os.Getenv("TWILIO_ENABLED")),
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		},

		Translation: TranslationConfig{
			SelfHostedBaseURL: os.Getenv("TRANSLATION_SELFHOSTED_URL"),
			DeepLAPIKey:       os.Getenv("DEEPL_API_KEY"),
			GoogleAPIKey:      os.Getenv("GOOGLE_TRANSLATE_API_KEY"),
			MicrosoftAPIKey:   os.Getenv("MICROSOFT_TRANSLATE_API_KEY"),
			MicrosoftRegion:   envOr("MICROSOFT_TRANSLATE_REGION", "global"),
			CacheCapacity:     getEnvInt("TRANSLATION_CACHE_CAPACITY", 10000),
			CacheTTL:          getEnvDuration("TRANSLATION_CACHE_TTL", time.Hour),
		},

		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: uint32(getEnvInt("CIRCUIT_FAILURE_THRESHOLD", 5)),
			SuccessThreshold: uint32(getEnvInt("CIRCUIT_SUCCESS_THRESHOLD", 3)),
			OpenTimeout:      getEnvDuration("CIRCUIT_OPEN_TIMEOUT", 30*time.Second),
		},
		RetryBudget: RetryBudgetConfig{
			MaxTokens:  getEnvInt("RETRY_BUDGET_MAX_TOKENS", 20),
			RefillRate: getEnvDuration("RETRY_BUDGET_REFILL_RATE", time.Minute),
		},
		Quota: QuotaConfig{Limits: parseQuotaLimits(os.Getenv("PROVIDER_QUOTA_LIMITS"))},

		Worker: WorkerProcConfig{
			QueueBatchSize:        getEnvInt("QUEUE_BATCH_SIZE", 50),
			MaxAttempts:           getEnvInt("MAX_ATTEMPTS", 3),
			StuckItemTimeout:      getEnvDuration("PROCESSING_TIMEOUT", 10*time.Minute),
			DigestBatchSize:       getEnvInt("DIGEST_BATCH_SIZE", 100),
			AutomationBatchSize:   getEnvInt("AUTOMATION_BATCH_SIZE", 200),
			AutomationConcurrency: getEnvInt("AUTOMATION_CONCURRENCY", 10),
			AutomationLockTTL:     getEnvDuration("AUTOMATION_LOCK_TTL", time.Minute),
			DLQWarningThreshold:   int64(getEnvInt("DLQ_WARNING_THRESHOLD", 10)),
			DLQCriticalThreshold:  int64(getEnvInt("DLQ_CRITICAL_THRESHOLD", 50)),
			DLQStaleAfter:         getEnvDuration("DLQ_STALE_AFTER", 24*time.Hour),
			TranslationQueueBatchSize: getEnvInt("TRANSLATION_QUEUE_BATCH_SIZE", 50),

			QueueProcessSchedule:            envOr("QUEUE_PROCESS_SCHEDULE", "*/1 * * * *"),
			DigestProcessSchedule:           envOr("DIGEST_PROCESS_SCHEDULE", "*/5 * * * *"),
			AutomationDrainSchedule:         envOr("AUTOMATION_DRAIN_SCHEDULE", "*/1 * * * *"),
			DLQHealthSchedule:               envOr("DLQ_HEALTH_SCHEDULE", "*/10 * * * *"),
			TranslationQueueProcessSchedule: envOr("TRANSLATION_QUEUE_PROCESS_SCHEDULE", "*/2 * * * *"),
		},
	}
}

// Validate checks that every secret required to run at all is present. A
// provider with missing credentials is not a Validate failure — it is
// simply not registered as an adapter, and the notification platform keeps
// running with a narrower provider set (see internal/wiring's adapter setup).
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	return nil
}

// IsDevelopment reports whether the configured environment is development.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("WARNING: %s is not set. This is required to run.\n", key)
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// parseBool is lenient on purpose (matches the reference config loader's
// behavior): anything strconv can't parse logs a warning and is treated as
// false rather than panicking on a typo'd env var.
func parseBool(value string) bool {
	if value == "" {
		return false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		fmt.Printf("WARNING: Could not parse boolean value %q, defaulting to false\n", value)
		return false
	}
	return b
}

// parseQuotaLimits parses "provider=limit,provider=limit" pairs from
// PROVIDER_QUOTA_LIMITS into the map quota.Tracker needs. A malformed
// entry is skipped with a warning rather than aborting the whole parse.
func parseQuotaLimits(raw string) map[string]int64 {
	limits := make(map[string]int64)
	if raw == "" {
		return limits
	}
	pairs := splitNonEmpty(raw, ',')
	for _, pair := range pairs {
		kv := splitNonEmpty(pair, '=')
		if len(kv) != 2 {
			fmt.Printf("WARNING: malformed PROVIDER_QUOTA_LIMITS entry %q, skipping\n", pair)
			continue
		}
		limit, err := strconv.ParseInt(kv[1], 10, 64)
		if err != nil {
			fmt.Printf("WARNING: malformed PROVIDER_QUOTA_LIMITS limit %q, skipping\n", pair)
			continue
		}
		limits[kv[0]] = limit
	}
	return limits
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
