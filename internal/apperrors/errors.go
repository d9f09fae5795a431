// Package apperrors defines the structured error taxonomy shared by every
// component of the notification core: the orchestrator, the provider
// adapters, the translation engine, and the queue/digest processor.
package apperrors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the broad category an AppError belongs to.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeForbidden   ErrorType = "forbidden"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeExternal    ErrorType = "external"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeDatabase    ErrorType = "database"
	ErrorTypeCache       ErrorType = "cache"
	ErrorTypeBlocked     ErrorType = "blocked"
	ErrorTypeCircuit     ErrorType = "circuit"
	ErrorTypeQuota       ErrorType = "quota"
	ErrorTypeTranslation ErrorType = "translation"
)

// Code strings match the taxonomy named by the notification core's error
// handling design, one per distinct failure condition callers branch on.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeBlockedByPrefs     = "BLOCKED_BY_PREFERENCES"
	CodeSuppressedAddress  = "SUPPRESSED_ADDRESS"
	CodeNoTargets          = "NO_TARGETS"
	CodeTimeout            = "TIMEOUT"
	CodeDeadlineExceeded   = "DEADLINE_EXCEEDED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeQuotaExhausted     = "QUOTA_EXHAUSTED"
	CodeCircuitOpen        = "CIRCUIT_OPEN"
	CodeLowQuality         = "LOW_QUALITY"
	CodeAllServicesFailed  = "ALL_SERVICES_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeDatabase           = "DATABASE_ERROR"
	CodeCache              = "CACHE_ERROR"
	CodeExternal           = "EXTERNAL_ERROR"
	CodeTokenInvalid       = "TOKEN_INVALID"
)

// AppError is the single structured error value every component boundary
// returns instead of raising an exception.
type AppError struct {
	Type          ErrorType              `json:"type"`
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	Details       string                 `json:"details,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Retryable     bool                   `json:"retryable"`
	Cause         error                  `json:"-"`
	HTTPStatus    int                    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) ToJSON() ([]byte, error) { return json.Marshal(e) }

// New creates an AppError with the default HTTP status for its type.
func New(errorType ErrorType, code, message string, retryable bool) *AppError {
	return &AppError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Retryable:  retryable,
		Timestamp:  time.Now().UTC(),
		HTTPStatus: defaultHTTPStatus(errorType),
	}
}

// NewWithCause wraps an underlying error.
func NewWithCause(errorType ErrorType, code, message string, retryable bool, cause error) *AppError {
	err := New(errorType, code, message, retryable)
	err.Cause = cause
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

func (e *AppError) WithCorrelationID(id string) *AppError { e.CorrelationID = id; return e }
func (e *AppError) WithDetails(d string) *AppError         { e.Details = d; return e }
func (e *AppError) WithHTTPStatus(s int) *AppError         { e.HTTPStatus = s; return e }
func (e *AppError) WithMetadata(k string, v interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[k] = v
	return e
}

func defaultHTTPStatus(t ErrorType) int {
	switch t {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Constructors, one per taxonomy entry named by the error handling design.

func NewValidationError(field, message string) *AppError {
	return New(ErrorTypeValidation, CodeValidation, message, false).WithMetadata("field", field)
}

func NewUnauthenticatedError(message string) *AppError {
	return New(ErrorTypeAuth, CodeUnauthenticated, message, false)
}

func NewForbiddenError(message string) *AppError {
	return New(ErrorTypeForbidden, CodeForbidden, message, false)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), false).
		WithMetadata("resource", resource)
}

func NewBlockedByPreferencesError(channel string) *AppError {
	return New(ErrorTypeBlocked, CodeBlockedByPrefs, "delivery blocked by user preferences", false).
		WithMetadata("channel", channel)
}

func NewSuppressedAddressError(address string) *AppError {
	return New(ErrorTypeBlocked, CodeSuppressedAddress, "recipient is on the suppression list", false).
		WithMetadata("address", address)
}

func NewNoTargetsError(channel string) *AppError {
	return New(ErrorTypeValidation, CodeNoTargets, "no delivery targets for channel", false).
		WithMetadata("channel", channel)
}

func NewTimeoutError(operation string, timeout time.Duration) *AppError {
	return New(ErrorTypeTimeout, CodeTimeout, fmt.Sprintf("operation timed out: %s", operation), true).
		WithMetadata("operation", operation).
		WithMetadata("timeout", timeout.String())
}

func NewDeadlineExceededError(operation string) *AppError {
	return New(ErrorTypeTimeout, CodeDeadlineExceeded, fmt.Sprintf("deadline exceeded: %s", operation), false).
		WithMetadata("operation", operation)
}

func NewRateLimitedError(retryAfter time.Duration) *AppError {
	return New(ErrorTypeRateLimit, CodeRateLimited, "rate limited by provider", true).
		WithMetadata("retry_after", retryAfter.String())
}

func NewServiceUnavailableError(service string, cause error) *AppError {
	return NewWithCause(ErrorTypeExternal, CodeServiceUnavailable,
		fmt.Sprintf("service unavailable: %s", service), true, cause).
		WithMetadata("service", service)
}

func NewQuotaExhaustedError(provider string) *AppError {
	return New(ErrorTypeQuota, CodeQuotaExhausted, fmt.Sprintf("quota exhausted for %s", provider), false).
		WithMetadata("provider", provider)
}

func NewCircuitOpenError(provider string) *AppError {
	return New(ErrorTypeCircuit, CodeCircuitOpen, fmt.Sprintf("circuit open for %s", provider), true).
		WithMetadata("provider", provider)
}

func NewLowQualityError(provider string, score float64) *AppError {
	return New(ErrorTypeTranslation, CodeLowQuality, "translation quality below threshold", true).
		WithMetadata("provider", provider).
		WithMetadata("score", score)
}

func NewTokenInvalidError(message string) *AppError {
	return New(ErrorTypeBlocked, CodeTokenInvalid, message, false)
}

func NewAllServicesFailedError(service string) *AppError {
	return New(ErrorTypeExternal, CodeAllServicesFailed, fmt.Sprintf("all %s providers failed", service), false)
}

func NewInternalError(message string, cause error) *AppError {
	return NewWithCause(ErrorTypeInternal, CodeInternal, message, false, cause)
}

func NewDatabaseError(operation string, cause error) *AppError {
	return NewWithCause(ErrorTypeDatabase, CodeDatabase,
		fmt.Sprintf("database operation failed: %s", operation), true, cause).
		WithMetadata("operation", operation)
}

func NewCacheError(operation string, cause error) *AppError {
	return NewWithCause(ErrorTypeCache, CodeCache,
		fmt.Sprintf("cache operation failed: %s", operation), true, cause).
		WithMetadata("operation", operation)
}

func NewExternalError(service, operation string, cause error) *AppError {
	return NewWithCause(ErrorTypeExternal, CodeExternal,
		fmt.Sprintf("external service error: %s", service), true, cause).
		WithMetadata("service", service).
		WithMetadata("operation", operation)
}

// Is reports whether err is an AppError of the given type.
func Is(err error, t ErrorType) bool {
	if ae, ok := err.(*AppError); ok {
		return ae.Type == t
	}
	return false
}

// AsAppError extracts the AppError from err, if any.
func AsAppError(err error) (*AppError, bool) {
	ae, ok := err.(*AppError)
	return ae, ok
}

// IsRetryable reports whether err, if an AppError, is retryable.
func IsRetryable(err error) bool {
	if ae, ok := err.(*AppError); ok {
		return ae.Retryable
	}
	return false
}
