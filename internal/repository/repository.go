// Package repository is the narrow Postgres data-access layer the
// orchestrator, queue, and worker depend on. It mirrors the shape of the
// reference notification package's PostgresRepository — query constants,
// Scan-based row mapping, explicit error wrapping — generalized from a
// single notifications table to the full preference/device/delivery/queue
// table set this platform needs.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/domain"
)

var ErrNotFound = errors.New("repository: not found")

// TemplateCache is the subset of the cache service GetTemplate's 5-minute
// cache layer needs.
type TemplateCache interface {
	GetTemplateCache(key string, dest interface{}) error
	SetTemplateCache(key string, rendered interface{}) error
}

// Template is a notification template rendered by type and locale. Type,
// Priority, and Channels preset the rendered notification's routing the
// same way a direct SendRequest would name them explicitly.
type Template struct {
	ID       string
	Locale   string
	Subject  string
	BodyHTML string
	BodyText string
	Type     domain.Type
	Priority domain.Priority
	Channels []domain.Channel
}

// Repository is the complete data-access surface the rest of the platform
// calls through — no caller reaches into *sql.DB directly.
type Repository struct {
	db    *sql.DB
	cache TemplateCache
}

func New(db *sql.DB, cache TemplateCache) *Repository {
	return &Repository{db: db, cache: cache}
}

// GetPreferences fetches a user's notification preferences, returning
// domain.DefaultPreferences if no row exists yet (a user who never touched
// their settings still gets sane defaults rather than an error).
func (r *Repository) GetPreferences(ctx context.Context, userID uuid.UUID) (domain.NotificationPreferences, error) {
	const query = `
		SELECT user_id, push_enabled, email_enabled, sms_enabled, email_address, email_verified,
			phone_number, phone_verified, quiet_hours, digest_settings, dnd_settings,
			category_preferences, updated_at
		FROM notification_preferences
		WHERE user_id = $1
	`
	var p domain.NotificationPreferences
	var quietHoursJSON, digestJSON, dndJSON, categoriesJSON []byte

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.PushEnabled, &p.EmailEnabled, &p.SMSEnabled, &p.EmailAddress, &p.EmailVerified,
		&p.PhoneNumber, &p.PhoneVerified,
		&quietHoursJSON, &digestJSON, &dndJSON, &categoriesJSON, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultPreferences(userID), nil
	}
	if err != nil {
		return domain.NotificationPreferences{}, apperrors.NewDatabaseError("get_preferences", err)
	}

	if err := unmarshalIfPresent(quietHoursJSON, &p.QuietHours); err != nil {
		return domain.NotificationPreferences{}, apperrors.NewDatabaseError("get_preferences", err)
	}
	if err := unmarshalIfPresent(digestJSON, &p.Digest); err != nil {
		return domain.NotificationPreferences{}, apperrors.NewDatabaseError("get_preferences", err)
	}
	if err := unmarshalIfPresent(dndJSON, &p.Dnd); err != nil {
		return domain.NotificationPreferences{}, apperrors.NewDatabaseError("get_preferences", err)
	}
	p.CategoryPreferences = make(map[domain.Category]domain.CategoryPreference)
	if err := unmarshalIfPresent(categoriesJSON, &p.CategoryPreferences); err != nil {
		return domain.NotificationPreferences{}, apperrors.NewDatabaseError("get_preferences", err)
	}
	return p, nil
}

func unmarshalIfPresent(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// UpdatePreferences upserts the full preference tree for a user. Callers
// are expected to have already deep-merged any partial update (see
// domain.MergeCategoryPreferences) before calling this.
func (r *Repository) UpdatePreferences(ctx context.Context, p domain.NotificationPreferences) error {
	quietHoursJSON, _ := json.Marshal(p.QuietHours)
	digestJSON, _ := json.Marshal(p.Digest)
	dndJSON, _ := json.Marshal(p.Dnd)
	categoriesJSON, _ := json.Marshal(p.CategoryPreferences)

	const query = `
		INSERT INTO notification_preferences (
			user_id, push_enabled, email_enabled, sms_enabled, email_address, email_verified,
			phone_number, phone_verified, quiet_hours, digest_settings, dnd_settings,
			category_preferences, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			push_enabled = EXCLUDED.push_enabled,
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			email_address = EXCLUDED.email_address,
			email_verified = EXCLUDED.email_verified,
			phone_number = EXCLUDED.phone_number,
			phone_verified = EXCLUDED.phone_verified,
			quiet_hours = EXCLUDED.quiet_hours,
			digest_settings = EXCLUDED.digest_settings,
			dnd_settings = EXCLUDED.dnd_settings,
			category_preferences = EXCLUDED.category_preferences,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.PushEnabled, p.EmailEnabled, p.SMSEnabled, p.EmailAddress, p.EmailVerified,
		p.PhoneNumber, p.PhoneVerified,
		quietHoursJSON, digestJSON, dndJSON, categoriesJSON, time.Now(),
	)
	if err != nil {
		return apperrors.NewDatabaseError("update_preferences", err)
	}
	return nil
}

// ListActiveDeviceTokens returns every active push token registered for a
// user, across all platforms.
func (r *Repository) ListActiveDeviceTokens(ctx context.Context, userID uuid.UUID) ([]domain.DeviceToken, error) {
	const query = `
		SELECT user_id, token, platform, is_active, p256dh, auth, last_used_at, created_at
		FROM device_tokens
		WHERE user_id = $1 AND is_active = true
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list_active_device_tokens", err)
	}
	defer func() { _ = rows.Close() }()

	var tokens []domain.DeviceToken
	for rows.Next() {
		var t domain.DeviceToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.Platform, &t.IsActive, &t.P256dh, &t.Auth, &t.LastUsedAt, &t.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("list_active_device_tokens", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list_active_device_tokens", err)
	}
	return tokens, nil
}

// DeactivateToken marks a device token inactive, called after an adapter
// reports the token as permanently invalid.
func (r *Repository) DeactivateToken(ctx context.Context, token string) error {
	const query = `UPDATE device_tokens SET is_active = false WHERE token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return apperrors.NewDatabaseError("deactivate_token", err)
	}
	return nil
}

// InsertDeliveryLog records one delivery attempt's outcome for the audit
// trail and /stats reporting.
func (r *Repository) InsertDeliveryLog(ctx context.Context, rec domain.DeliveryRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	const query = `
		INSERT INTO delivery_log (
			id, notification_id, user_id, channel, provider, attempt_count,
			status, error_code, error_message, latency_ms, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.NotificationID, rec.UserID, rec.Channel, rec.Provider, rec.AttemptCount,
		rec.Status, rec.ErrorCode, rec.ErrorMessage, rec.LatencyMS, now, now,
	)
	if err != nil {
		return apperrors.NewDatabaseError("insert_delivery_log", err)
	}
	return nil
}

// QueueInsert adds a durable-queue item, used when the orchestrator defers
// a channel past a quiet-hours or DND window.
func (r *Repository) QueueInsert(ctx context.Context, item domain.QueueItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return apperrors.NewInternalError("marshal queue payload", err)
	}
	const query = `
		INSERT INTO notification_queue (
			id, user_id, payload, status, attempts, scheduled_for,
			consolidation_key, priority, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	now := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		item.ID, item.UserID, payloadJSON, domain.QueueItemPending, 0, item.ScheduledFor,
		item.ConsolidationKey, item.Priority, "", now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil // a matching consolidation key already queued this item; nothing to do
		}
		return apperrors.NewDatabaseError("queue_insert", err)
	}
	return nil
}

// QueueClaim atomically claims up to limit pending items whose
// scheduled_for has passed (or is unset), marking them processing so a
// second worker polling concurrently cannot also pick them up.
func (r *Repository) QueueClaim(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseError("queue_claim", err)
	}
	defer func() { _ = tx.Rollback() }()

	const selectQuery = `
		SELECT id, user_id, payload, status, attempts, scheduled_for,
			consolidation_key, priority, last_error, created_at, updated_at
		FROM notification_queue
		WHERE status = 'pending' AND (scheduled_for IS NULL OR scheduled_for <= NOW())
		ORDER BY priority DESC, created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.QueryContext(ctx, selectQuery, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("queue_claim", err)
	}

	var items []domain.QueueItem
	var ids []uuid.UUID
	for rows.Next() {
		var item domain.QueueItem
		var payloadJSON []byte
		if err := rows.Scan(&item.ID, &item.UserID, &payloadJSON, &item.Status, &item.Attempts,
			&item.ScheduledFor, &item.ConsolidationKey, &item.Priority, &item.LastError,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, apperrors.NewDatabaseError("queue_claim", err)
		}
		if err := json.Unmarshal(payloadJSON, &item.Payload); err != nil {
			_ = rows.Close()
			return nil, apperrors.NewDatabaseError("queue_claim", err)
		}
		items = append(items, item)
		ids = append(ids, item.ID)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("queue_claim", err)
	}

	if len(ids) > 0 {
		const updateQuery = `UPDATE notification_queue SET status = 'processing', updated_at = NOW() WHERE id = ANY($1)`
		if _, err := tx.ExecContext(ctx, updateQuery, pq.Array(ids)); err != nil {
			return nil, apperrors.NewDatabaseError("queue_claim", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseError("queue_claim", err)
	}
	for i := range items {
		items[i].Status = domain.QueueItemProcessing
	}
	return items, nil
}

// QueueMarkStatus records a claimed item's terminal (or requeued) status
// after processing. This is the at-most-once-terminal-success write: a
// worker that crashes before calling this leaves the item processing,
// where QueueResetStuck eventually reclaims it.
func (r *Repository) QueueMarkStatus(ctx context.Context, id uuid.UUID, status domain.QueueItemStatus, attempts int, lastError string) error {
	const query = `
		UPDATE notification_queue
		SET status = $2, attempts = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, status, attempts, lastError)
	if err != nil {
		return apperrors.NewDatabaseError("queue_mark_status", err)
	}
	return nil
}

// QueueResetStuck reclaims items left processing past timeout — a worker
// that died mid-send — resetting them to pending so another worker retries.
func (r *Repository) QueueResetStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	const query = `
		UPDATE notification_queue
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-timeout))
	if err != nil {
		return 0, apperrors.NewDatabaseError("queue_reset_stuck", err)
	}
	return result.RowsAffected()
}

// GetTemplate fetches a rendered-ready template, consulting the 5-minute
// cache before the database since templates change far less often than
// they're read.
func (r *Repository) GetTemplate(ctx context.Context, templateID, locale string) (Template, error) {
	cacheKey := templateID + ":" + locale
	var cached Template
	if r.cache != nil {
		if err := r.cache.GetTemplateCache(cacheKey, &cached); err == nil && cached.ID != "" {
			return cached, nil
		}
	}

	const query = `
		SELECT id, locale, subject, body_html, body_text, type, priority, channels
		FROM notification_templates
		WHERE id = $1 AND locale = $2
	`
	var t Template
	var channelsJSON []byte
	err := r.db.QueryRowContext(ctx, query, templateID, locale).
		Scan(&t.ID, &t.Locale, &t.Subject, &t.BodyHTML, &t.BodyText, &t.Type, &t.Priority, &channelsJSON)
	if err == nil {
		_ = unmarshalIfPresent(channelsJSON, &t.Channels)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	if err != nil {
		return Template{}, apperrors.NewDatabaseError("get_template", err)
	}

	if r.cache != nil {
		_ = r.cache.SetTemplateCache(cacheKey, t)
	}
	return t, nil
}

// GetAutomationJob fetches a scheduled-email job's template binding by id,
// the payload ProcessAutomationQueue drains into the orchestrator.
func (r *Repository) GetAutomationJob(ctx context.Context, id uuid.UUID) (domain.AutomationJob, error) {
	const query = `
		SELECT id, user_id, template_id, locale, vars, created_at
		FROM automation_jobs
		WHERE id = $1
	`
	var job domain.AutomationJob
	var varsJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&job.ID, &job.UserID, &job.TemplateID, &job.Locale, &varsJSON, &job.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AutomationJob{}, ErrNotFound
	}
	if err != nil {
		return domain.AutomationJob{}, apperrors.NewDatabaseError("get_automation_job", err)
	}
	_ = unmarshalIfPresent(varsJSON, &job.Vars)
	return job, nil
}

// RecordTranslationUsage persists which provider served a translation and
// its quality score, for cost accounting and quality drift monitoring.
func (r *Repository) RecordTranslationUsage(ctx context.Context, provider string, qualityScore float64) error {
	const query = `
		INSERT INTO translation_usage (id, provider, quality_score, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, uuid.New(), provider, qualityScore, time.Now())
	if err != nil {
		return apperrors.NewDatabaseError("record_translation_usage", err)
	}
	return nil
}

// RecordInApp persists an in-app notification so a client that connects
// later can still fetch it as backlog.
func (r *Repository) RecordInApp(ctx context.Context, n domain.Notification) error {
	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return apperrors.NewInternalError("marshal in-app data", err)
	}
	const query = `
		INSERT INTO in_app_notifications (id, user_id, type, title, body, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Body, dataJSON, n.CreatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("record_in_app", err)
	}
	return nil
}

// GetSuppression reports whether an email address is on the bounce/
// complaint suppression list and must not be sent to.
func (r *Repository) GetSuppression(ctx context.Context, address string) (bool, error) {
	const query = `SELECT 1 FROM email_suppressions WHERE address = $1`
	var dummy int
	err := r.db.QueryRowContext(ctx, query, address).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewDatabaseError("get_suppression", err)
	}
	return true, nil
}

// AddSuppression records an address as bounced/complained so future sends
// skip it, driven by an inbound provider webhook.
func (r *Repository) AddSuppression(ctx context.Context, address, reason string) error {
	const query = `
		INSERT INTO email_suppressions (address, reason, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET reason = EXCLUDED.reason
	`
	if _, err := r.db.ExecContext(ctx, query, address, reason, time.Now()); err != nil {
		return apperrors.NewDatabaseError("add_suppression", err)
	}
	return nil
}

// DeliveryStats is the /stats endpoint's 24-hour delivery counter breakdown.
type DeliveryStats struct {
	Channel domain.Channel        `json:"channel"`
	Status  domain.DeliveryStatus `json:"status"`
	Count   int64                 `json:"count"`
}

// GetDeliveryStats aggregates delivery_log rows from the last 24 hours by
// channel and status, for the /stats endpoint.
func (r *Repository) GetDeliveryStats(ctx context.Context) ([]DeliveryStats, error) {
	const query = `
		SELECT channel, status, COUNT(*)
		FROM delivery_log
		WHERE created_at >= $1
		GROUP BY channel, status
	`
	rows, err := r.db.QueryContext(ctx, query, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, apperrors.NewDatabaseError("get_delivery_stats", err)
	}
	defer rows.Close()

	var stats []DeliveryStats
	for rows.Next() {
		var s DeliveryStats
		if err := rows.Scan(&s.Channel, &s.Status, &s.Count); err != nil {
			return nil, apperrors.NewDatabaseError("scan_delivery_stats", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate_delivery_stats", err)
	}
	return stats, nil
}

// UpdateDeliveryStatusByMessageID applies a provider webhook's status update
// (delivered, bounced, opened) to the delivery log row the provider's
// message id was recorded against.
func (r *Repository) UpdateDeliveryStatusByMessageID(ctx context.Context, messageID string, status domain.DeliveryStatus, errorCode string) error {
	const query = `
		UPDATE delivery_log SET status = $1, error_code = $2, updated_at = $3
		WHERE provider_message_id = $4
	`
	res, err := r.db.ExecContext(ctx, query, status, errorCode, time.Now(), messageID)
	if err != nil {
		return apperrors.NewDatabaseError("update_delivery_status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("delivery_log")
	}
	return nil
}

// TranslationQueueInsert enqueues a dynamic-content field for asynchronous
// translation, used when content is created or edited in one locale and
// the rest must follow without blocking the write.
func (r *Repository) TranslationQueueInsert(ctx context.Context, item domain.TranslationQueueItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	const query = `
		INSERT INTO translation_queue (
			id, content_type, content_id, field_name, source_text, source_locale,
			target_locale, status, attempts, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (content_type, content_id, field_name, target_locale) DO NOTHING
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.ContentType, item.ContentID, item.FieldName, item.SourceText, item.SourceLocale,
		item.TargetLocale, domain.QueueItemPending, 0, "", now, now,
	)
	if err != nil {
		return apperrors.NewDatabaseError("translation_queue_insert", err)
	}
	return nil
}

// TranslationQueueClaim atomically claims up to limit pending translation
// requests, marking them processing so a second drain running concurrently
// doesn't pick up the same rows.
func (r *Repository) TranslationQueueClaim(ctx context.Context, limit int) ([]domain.TranslationQueueItem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseError("translation_queue_claim", err)
	}
	defer func() { _ = tx.Rollback() }()

	const selectQuery = `
		SELECT id, content_type, content_id, field_name, source_text, source_locale,
			target_locale, status, attempts, last_error, created_at, updated_at
		FROM translation_queue
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.QueryContext(ctx, selectQuery, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("translation_queue_claim", err)
	}

	var items []domain.TranslationQueueItem
	var ids []uuid.UUID
	for rows.Next() {
		var item domain.TranslationQueueItem
		if err := rows.Scan(&item.ID, &item.ContentType, &item.ContentID, &item.FieldName, &item.SourceText,
			&item.SourceLocale, &item.TargetLocale, &item.Status, &item.Attempts, &item.LastError,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, apperrors.NewDatabaseError("translation_queue_claim", err)
		}
		items = append(items, item)
		ids = append(ids, item.ID)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("translation_queue_claim", err)
	}

	if len(ids) > 0 {
		const updateQuery = `UPDATE translation_queue SET status = 'processing', updated_at = NOW() WHERE id = ANY($1)`
		if _, err := tx.ExecContext(ctx, updateQuery, pq.Array(ids)); err != nil {
			return nil, apperrors.NewDatabaseError("translation_queue_claim", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseError("translation_queue_claim", err)
	}
	for i := range items {
		items[i].Status = domain.QueueItemProcessing
	}
	return items, nil
}

// TranslationQueueMarkStatus records a claimed translation request's
// terminal (or requeued) status after the provider chain has run.
func (r *Repository) TranslationQueueMarkStatus(ctx context.Context, id uuid.UUID, status domain.QueueItemStatus, attempts int, lastError string) error {
	const query = `
		UPDATE translation_queue
		SET status = $2, attempts = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, status, attempts, lastError)
	if err != nil {
		return apperrors.NewDatabaseError("translation_queue_mark_status", err)
	}
	return nil
}

// SaveDynamicContentTranslation upserts a completed dynamic-content
// translation, keyed by a hash of the source text and locale pair so the
// same field re-queued after an edit overwrites rather than duplicates.
func (r *Repository) SaveDynamicContentTranslation(ctx context.Context, contentHash, locale, translatedText string, expiresAt time.Time) error {
	const query = `
		INSERT INTO dynamic_content_translations (content_hash, locale, translated_text, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_hash, locale) DO UPDATE
		SET translated_text = EXCLUDED.translated_text, expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.ExecContext(ctx, query, contentHash, locale, translatedText, expiresAt); err != nil {
		return apperrors.NewDatabaseError("save_dynamic_content_translation", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
