package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/telemetry"
)

// ErrorHandler recovers panics as 500s and renders any AppError a handler
// attached to the gin context (via c.Error) as the structured JSON envelope.
// Unexpected conditions are the only thing that propagate as bare 500s; every
// domain failure is returned as a typed AppError further up the call chain.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger := telemetry.LogFromContext(c.Request.Context())
				logger.WithField("stack_trace", string(debug.Stack())).
					WithField("panic", r).
					Error("panic recovered in HTTP handler")

				appErr := apperrors.NewInternalError("an unexpected error occurred", nil).
					WithCorrelationID(telemetry.GetCorrelationID(c.Request.Context()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, appErr)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		last := c.Errors.Last().Err
		if appErr, ok := apperrors.AsAppError(last); ok {
			if appErr.CorrelationID == "" {
				appErr = appErr.WithCorrelationID(telemetry.GetCorrelationID(c.Request.Context()))
			}
			logLevel(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		appErr := apperrors.NewInternalError("an unexpected error occurred", last)
		c.JSON(http.StatusInternalServerError, appErr)
	}
}

func logLevel(c *gin.Context, appErr *apperrors.AppError) {
	logger := telemetry.LogFromContext(c.Request.Context()).WithField("error_code", appErr.Code)
	switch appErr.Type {
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeAuth, apperrors.ErrorTypeForbidden,
		apperrors.ErrorTypeNotFound, apperrors.ErrorTypeConflict, apperrors.ErrorTypeRateLimit,
		apperrors.ErrorTypeBlocked:
		logger.Warn(appErr.Message)
	default:
		logger.Error(appErr.Message)
	}
}
