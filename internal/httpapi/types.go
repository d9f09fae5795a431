package httpapi

import (
	"context"

	"github.com/google/uuid"

	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/repository"
	"github.com/notihub/notihub/internal/translation"
)

// EngineAPI is the orchestrator surface the send routes call.
type EngineAPI interface {
	Send(ctx context.Context, req domain.SendRequest) (domain.SendResult, error)
	SendBatch(ctx context.Context, reqs []domain.SendRequest, opts domain.BatchSendOptions) ([]domain.SendResult, error)
	SendTemplate(ctx context.Context, userID uuid.UUID, templateID, locale string, vars map[string]string) (domain.SendResult, error)
}

// PreferenceRepository is the data-access surface the preference and
// webhook routes call directly.
type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (domain.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, p domain.NotificationPreferences) error
	AddSuppression(ctx context.Context, address, reason string) error
	UpdateDeliveryStatusByMessageID(ctx context.Context, messageID string, status domain.DeliveryStatus, errorCode string) error
}

// DigestProcessor is the worker surface /digest/process drains.
type DigestProcessor interface {
	ProcessDigest(ctx context.Context, frequency domain.Frequency, limit int, dryRun bool) (flushed, failed int, err error)
}

// QueueProcessor is the worker surface /queue/process drains.
type QueueProcessor interface {
	ProcessQueue(ctx context.Context, limit int) (completed, failed int, err error)
}

// TranslationQueueProcessor is the worker surface /process-queue drains.
type TranslationQueueProcessor interface {
	ProcessTranslationQueue(ctx context.Context, limit int) (completed, failed int, err error)
}

// Translator is the translation surface /translate and /batch-translate
// call.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (translation.Result, error)
}

// TranslationHealthReporter is the translation surface /translate/health
// calls, separate from the platform-wide /health.
type TranslationHealthReporter interface {
	Health(ctx context.Context) translation.Health
}

// WebhookVerifier checks a provider webhook's signature before its body is
// trusted. Each provider signs differently (SendGrid with an ECDSA signature
// header, SES with a shared-secret header) so verification is provider-specific.
type WebhookVerifier interface {
	Verify(provider string, headers map[string][]string, body []byte) error
}

// StatsRepository is the data-access surface /stats reads from.
type StatsRepository interface {
	GetDeliveryStats(ctx context.Context) ([]repository.DeliveryStats, error)
}
