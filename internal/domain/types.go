// Package domain holds the core data model the orchestrator, channel
// adapters, translation engine, and repository all operate on.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery medium a notification can be routed through.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in_app"
)

// Priority controls whether preference/quiet-hours/DND gates can block delivery.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Type is the closed set of notification types. Category is derived from Type
// via CategoryForType.
type Type string

const (
	TypeNewMessage         Type = "new_message"
	TypeListingFavorited   Type = "listing_favorited"
	TypeArrangementConfirm Type = "arrangement_confirmed"
	TypeSystemAnnouncement Type = "system_announcement"
	TypeVerification       Type = "verification"
	TypeAccountSecurity    Type = "account_security"
	TypePasswordReset      Type = "password_reset"
	TypeDigest             Type = "digest"
)

// Category is a coarse grouping of Type used for preference evaluation.
type Category string

const (
	CategoryChats     Category = "chats"
	CategoryPosts     Category = "posts"
	CategorySocial    Category = "social"
	CategorySystem    Category = "system"
	CategoryMarketing Category = "marketing"
)

// categoryByType is the fixed type → category mapping.
var categoryByType = map[Type]Category{
	TypeNewMessage:         CategoryChats,
	TypeListingFavorited:   CategoryPosts,
	TypeArrangementConfirm: CategorySocial,
	TypeSystemAnnouncement: CategorySystem,
	TypeVerification:       CategorySystem,
	TypeAccountSecurity:    CategorySystem,
	TypePasswordReset:      CategorySystem,
	TypeDigest:             CategoryMarketing,
}

// CategoryForType maps a notification type to its preference category.
// Unknown types default to CategorySystem so evaluation never panics on a
// type this binary doesn't yet recognize.
func CategoryForType(t Type) Category {
	if c, ok := categoryByType[t]; ok {
		return c
	}
	return CategorySystem
}

// defaultPriorityByType gives each type its priority when the caller omits one.
var defaultPriorityByType = map[Type]Priority{
	TypeNewMessage:         PriorityHigh,
	TypeListingFavorited:   PriorityNormal,
	TypeArrangementConfirm: PriorityHigh,
	TypeSystemAnnouncement: PriorityNormal,
	TypeVerification:       PriorityCritical,
	TypeAccountSecurity:    PriorityCritical,
	TypePasswordReset:      PriorityCritical,
	TypeDigest:             PriorityLow,
}

// DefaultPriorityForType returns the priority a type carries absent an
// explicit override.
func DefaultPriorityForType(t Type) Priority {
	if p, ok := defaultPriorityByType[t]; ok {
		return p
	}
	return PriorityNormal
}

// CriticalSecurityTypes always route through email regardless of resolved
// channels, and are the set eligible for push→email fallback.
var CriticalSecurityTypes = map[Type]bool{
	TypeAccountSecurity: true,
	TypeVerification:    true,
	TypePasswordReset:   true,
}

// Notification is the unit accepted by the orchestrator.
type Notification struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"userId"`
	Type          Type              `json:"type"`
	Category      Category          `json:"category"`
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	Data          map[string]string `json:"data,omitempty"`
	ImageURL      string            `json:"imageUrl,omitempty"`
	Sound         string            `json:"sound,omitempty"`
	Badge         *int              `json:"badge,omitempty"`
	CollapseKey   string            `json:"collapseKey,omitempty"`
	TTLSeconds    int               `json:"ttlSeconds,omitempty"`
	CategoryID    string            `json:"categoryId,omitempty"`
	ThreadID      string            `json:"threadId,omitempty"`
	Priority      Priority          `json:"priority"`
	ScheduledFor  *time.Time        `json:"scheduledFor,omitempty"`
	Channels      []Channel         `json:"channels,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// QuietHours is a daily recurring silence window in the user's timezone.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"` // "HH:MM"
	End      string `json:"end"`   // "HH:MM"
	Timezone string `json:"timezone"`
}

// DigestSettings controls how often a deferred channel is flushed as a batch.
type DigestSettings struct {
	DailyEnabled  bool   `json:"dailyEnabled"`
	DailyTime     string `json:"dailyTime"` // "HH:MM"
	WeeklyEnabled bool   `json:"weeklyEnabled"`
	WeeklyDay     int    `json:"weeklyDay"` // 0-6, Sunday=0
}

// DndSettings is a time-bounded user-enabled silence window.
type DndSettings struct {
	Enabled bool       `json:"enabled"`
	Until   *time.Time `json:"until,omitempty"`
}

// Frequency controls how often a category/channel pair delivers.
type Frequency string

const (
	FrequencyInstant Frequency = "instant"
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyNever   Frequency = "never"
)

// ChannelPreference is one channel's enable/frequency pair within a category.
type ChannelPreference struct {
	Enabled   bool      `json:"enabled"`
	Frequency Frequency `json:"frequency"`
}

// DefaultChannelPreference is "enabled, instant" per the first-read default.
func DefaultChannelPreference() ChannelPreference {
	return ChannelPreference{Enabled: true, Frequency: FrequencyInstant}
}

// CategoryPreference holds the per-channel settings for one category.
type CategoryPreference struct {
	Push  ChannelPreference `json:"push"`
	Email ChannelPreference `json:"email"`
	SMS   ChannelPreference `json:"sms"`
}

// DefaultCategoryPreference returns "enabled, instant" for every channel.
func DefaultCategoryPreference() CategoryPreference {
	d := DefaultChannelPreference()
	return CategoryPreference{Push: d, Email: d, SMS: d}
}

// NotificationPreferences is the per-user preference record.
type NotificationPreferences struct {
	UserID              uuid.UUID                     `json:"userId"`
	PushEnabled         bool                           `json:"pushEnabled"`
	EmailEnabled        bool                           `json:"emailEnabled"`
	SMSEnabled          bool                           `json:"smsEnabled"`
	EmailAddress        string                         `json:"emailAddress,omitempty"`
	EmailVerified       bool                           `json:"emailVerified"`
	PhoneNumber         string                         `json:"phoneNumber,omitempty"`
	PhoneVerified       bool                           `json:"phoneVerified"`
	QuietHours          QuietHours                     `json:"quietHours"`
	Digest              DigestSettings                 `json:"digest"`
	Dnd                 DndSettings                    `json:"dnd"`
	CategoryPreferences map[Category]CategoryPreference `json:"categoryPreferences"`
	UpdatedAt           time.Time                      `json:"updatedAt"`
}

// DefaultPreferences builds the "enabled, instant for everything" preference
// tree a user gets on first read, per the data-model invariant.
func DefaultPreferences(userID uuid.UUID) NotificationPreferences {
	cats := map[Category]CategoryPreference{
		CategoryChats:     DefaultCategoryPreference(),
		CategoryPosts:     DefaultCategoryPreference(),
		CategorySocial:    DefaultCategoryPreference(),
		CategorySystem:    DefaultCategoryPreference(),
		CategoryMarketing: DefaultCategoryPreference(),
	}
	return NotificationPreferences{
		UserID:              userID,
		PushEnabled:         true,
		EmailEnabled:        true,
		SMSEnabled:          true,
		CategoryPreferences: cats,
		UpdatedAt:           time.Now(),
	}
}

// Platform is a device token's delivery platform.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// DeviceToken is a registered push endpoint for a user.
type DeviceToken struct {
	UserID     uuid.UUID `json:"userId"`
	Token      string    `json:"token"`
	Platform   Platform  `json:"platform"`
	IsActive   bool      `json:"isActive"`
	P256dh     string    `json:"p256dh,omitempty"`
	Auth       string    `json:"auth,omitempty"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DeliveryStatus is the terminal (or in-flight) outcome of one channel attempt.
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusBlocked   DeliveryStatus = "blocked"
	DeliveryStatusDeferred  DeliveryStatus = "deferred"
	DeliveryStatusScheduled DeliveryStatus = "scheduled"
)

// DeliveryRecord is one row per (notification, channel).
type DeliveryRecord struct {
	ID             uuid.UUID      `json:"id"`
	NotificationID uuid.UUID      `json:"notificationId"`
	UserID         uuid.UUID      `json:"userId"`
	Channel        Channel        `json:"channel"`
	Provider       string         `json:"provider,omitempty"`
	AttemptCount   int            `json:"attemptCount"`
	Status         DeliveryStatus `json:"status"`
	ErrorCode      string         `json:"errorCode,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	LatencyMS      int64          `json:"latencyMs"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// QueueItemStatus is a durable queue item's lifecycle state.
type QueueItemStatus string

const (
	QueueItemPending    QueueItemStatus = "pending"
	QueueItemProcessing QueueItemStatus = "processing"
	QueueItemCompleted  QueueItemStatus = "completed"
	QueueItemFailed     QueueItemStatus = "failed"
)

// QueueItem is a durable record for scheduled or digest-deferred notifications.
type QueueItem struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"userId"`
	Payload           Notification    `json:"payload"`
	Status            QueueItemStatus `json:"status"`
	Attempts          int             `json:"attempts"`
	ScheduledFor      time.Time       `json:"scheduledFor"`
	ConsolidationKey  string          `json:"consolidationKey,omitempty"`
	Priority          int             `json:"priority"` // 1-10
	LastError         string          `json:"lastError,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// TranslationQueueItem is a pending dynamic-content translation request —
// the (ContentType, ContentID, FieldName, TargetLocale) tuple identifies
// what needs translating, queued so the request that created or edited the
// content doesn't block on the provider chain.
type TranslationQueueItem struct {
	ID           uuid.UUID       `json:"id"`
	ContentType  string          `json:"contentType"`
	ContentID    string          `json:"contentId"`
	FieldName    string          `json:"fieldName"`
	SourceText   string          `json:"sourceText"`
	SourceLocale string          `json:"sourceLocale"`
	TargetLocale string          `json:"targetLocale"`
	Status       QueueItemStatus `json:"status"`
	Attempts     int             `json:"attempts"`
	LastError    string          `json:"lastError,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// DigestItem is one entry accumulated for a future digest flush.
type DigestItem struct {
	Type      Type              `json:"type"`
	Category  Category          `json:"category"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// DigestBatchEntry is the per-user accumulator digests flush from.
type DigestBatchEntry struct {
	UserID    uuid.UUID    `json:"userId"`
	Frequency Frequency    `json:"frequency"`
	Items     []DigestItem `json:"items"`
	NextFlush time.Time    `json:"nextFlush"`
}

// DeliveryOutcome is the tagged variant a channel adapter/orchestrator step
// returns for a single channel.
type DeliveryOutcome struct {
	Channel      Channel        `json:"channel"`
	Status       DeliveryStatus `json:"status"`
	Provider     string         `json:"provider,omitempty"`
	ScheduledFor *time.Time     `json:"scheduledFor,omitempty"`
	ErrorCode    string         `json:"error,omitempty"`
	Retryable    bool           `json:"retryable,omitempty"`
	MessageID    string         `json:"messageId,omitempty"`
	LatencyMS    int64          `json:"latencyMs,omitempty"`
}

// SendResult is the result the orchestrator assembles for a Send call.
type SendResult struct {
	NotificationID uuid.UUID         `json:"notificationId"`
	Success        bool              `json:"success"`
	Channels       []DeliveryOutcome `json:"channels"`
	Timestamp      time.Time         `json:"timestamp"`
}

// SendRequest is the external-facing request to enqueue/deliver one notification.
type SendRequest struct {
	UserID       uuid.UUID         `json:"userId"`
	Type         Type              `json:"type"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Data         map[string]string `json:"data,omitempty"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	Sound        string            `json:"sound,omitempty"`
	Badge        *int              `json:"badge,omitempty"`
	CollapseKey  string            `json:"collapseKey,omitempty"`
	TTLSeconds   int               `json:"ttlSeconds,omitempty"`
	CategoryID   string            `json:"categoryId,omitempty"`
	ThreadID     string            `json:"threadId,omitempty"`
	Priority     Priority          `json:"priority,omitempty"`
	ScheduledFor *time.Time        `json:"scheduledFor,omitempty"`
	Channels     []Channel         `json:"channels,omitempty"`
}

// BatchSendOptions controls §4.1 batch-send semantics.
type BatchSendOptions struct {
	Parallel    bool `json:"parallel"`
	StopOnError bool `json:"stopOnError"`
}

// AutomationJob is a scheduled, template-backed email drained by
// ProcessAutomationQueue — a drip/campaign send rather than an
// event-triggered one.
type AutomationJob struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"userId"`
	TemplateID string            `json:"templateId"`
	Locale     string            `json:"locale"`
	Vars       map[string]string `json:"vars,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}
