package domain

import (
	"time"

	"github.com/notihub/notihub/internal/apperrors"
)

const maxBodyLength = 50000
const maxScheduleHorizon = 90 * 24 * time.Hour

var allowedPriorities = map[Priority]bool{
	PriorityCritical: true,
	PriorityHigh:     true,
	PriorityNormal:   true,
	PriorityLow:      true,
}

var allowedChannels = map[Channel]bool{
	ChannelPush:  true,
	ChannelEmail: true,
	ChannelSMS:   true,
	ChannelInApp: true,
}

// ValidateSendRequest enforces §4.1 step 1. It never mutates state; a
// validation failure must have zero side effects.
func ValidateSendRequest(req SendRequest, now time.Time) error {
	if req.Title == "" {
		return apperrors.NewValidationError("title", "title must not be empty")
	}
	if req.Body == "" {
		return apperrors.NewValidationError("body", "body must not be empty")
	}
	if len(req.Body) > maxBodyLength {
		return apperrors.NewValidationError("body", "body exceeds maximum length of 50000 characters")
	}
	if req.UserID.String() == "00000000-0000-0000-0000-000000000000" {
		return apperrors.NewValidationError("userId", "userId must be a valid UUID")
	}
	if req.TTLSeconds != 0 && req.TTLSeconds <= 0 {
		return apperrors.NewValidationError("ttlSeconds", "ttlSeconds must be greater than zero when provided")
	}
	if req.ScheduledFor != nil {
		if req.ScheduledFor.Before(now) {
			return apperrors.NewValidationError("scheduledFor", "scheduledFor must be a future instant")
		}
		if req.ScheduledFor.After(now.Add(maxScheduleHorizon)) {
			return apperrors.NewValidationError("scheduledFor", "scheduledFor must be within 90 days")
		}
	}
	if req.Priority != "" && !allowedPriorities[req.Priority] {
		return apperrors.NewValidationError("priority", "priority is not a recognized value")
	}
	for _, ch := range req.Channels {
		if !allowedChannels[ch] {
			return apperrors.NewValidationError("channels", "channels must be a subset of push, email, sms, in_app")
		}
	}
	for k, v := range req.Data {
		if k == "" {
			return apperrors.NewValidationError("data", "data keys must not be empty")
		}
		_ = v // data values are already typed as string; non-scalar payloads can't reach this container
	}
	return nil
}

// PartialChannelPreference carries only the fields a caller wants to change;
// nil means "leave as-is".
type PartialChannelPreference struct {
	Enabled   *bool      `json:"enabled,omitempty"`
	Frequency *Frequency `json:"frequency,omitempty"`
}

// PartialCategoryPreference is the per-channel partial update for one category.
type PartialCategoryPreference struct {
	Push  *PartialChannelPreference `json:"push,omitempty"`
	Email *PartialChannelPreference `json:"email,omitempty"`
	SMS   *PartialChannelPreference `json:"sms,omitempty"`
}

// MergeCategoryPreferences deep-merges a partial update into the existing
// category preference tree. Untouched paths are left exactly as they were;
// this is a pure function, not a shallow object-spread.
func MergeCategoryPreferences(existing map[Category]CategoryPreference, partial map[Category]PartialCategoryPreference) map[Category]CategoryPreference {
	merged := make(map[Category]CategoryPreference, len(existing))
	for cat, pref := range existing {
		merged[cat] = pref
	}
	for cat, partialPref := range partial {
		current, ok := merged[cat]
		if !ok {
			current = DefaultCategoryPreference()
		}
		merged[cat] = mergeCategoryPreference(current, partialPref)
	}
	return merged
}

func mergeCategoryPreference(current CategoryPreference, partial PartialCategoryPreference) CategoryPreference {
	merged := current
	if partial.Push != nil {
		merged.Push = mergeChannelPreference(current.Push, *partial.Push)
	}
	if partial.Email != nil {
		merged.Email = mergeChannelPreference(current.Email, *partial.Email)
	}
	if partial.SMS != nil {
		merged.SMS = mergeChannelPreference(current.SMS, *partial.SMS)
	}
	return merged
}

func mergeChannelPreference(current ChannelPreference, partial PartialChannelPreference) ChannelPreference {
	merged := current
	if partial.Enabled != nil {
		merged.Enabled = *partial.Enabled
	}
	if partial.Frequency != nil {
		merged.Frequency = *partial.Frequency
	}
	return merged
}
