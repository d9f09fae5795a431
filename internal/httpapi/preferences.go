package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/middleware"
)

// handleGetPreferences returns the caller's full preference tree, seeded
// with defaults on first read.
func (s *Server) handleGetPreferences(c *gin.Context) {
	userID, ok := callerUserID(c)
	if !ok {
		return
	}

	prefs, err := s.repo.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// preferencesPatch is the partial-update body PUT /preferences accepts.
type preferencesPatch struct {
	PushEnabled         *bool                                         `json:"pushEnabled"`
	EmailEnabled        *bool                                         `json:"emailEnabled"`
	SMSEnabled          *bool                                         `json:"smsEnabled"`
	EmailAddress        *string                                       `json:"emailAddress"`
	PhoneNumber         *string                                       `json:"phoneNumber"`
	QuietHours          *domain.QuietHours                            `json:"quietHours"`
	Digest              *domain.DigestSettings                        `json:"digest"`
	CategoryPreferences map[domain.Category]domain.PartialCategoryPreference `json:"categoryPreferences"`
}

// handlePutPreferences deep-merges a partial preference update into the
// stored tree and persists the result.
func (s *Server) handlePutPreferences(c *gin.Context) {
	userID, ok := callerUserID(c)
	if !ok {
		return
	}

	var patch preferencesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid preferences patch"))
		return
	}

	ctx := c.Request.Context()
	existing, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		c.Error(err)
		return
	}

	if patch.PushEnabled != nil {
		existing.PushEnabled = *patch.PushEnabled
	}
	if patch.EmailEnabled != nil {
		existing.EmailEnabled = *patch.EmailEnabled
	}
	if patch.SMSEnabled != nil {
		existing.SMSEnabled = *patch.SMSEnabled
	}
	if patch.EmailAddress != nil {
		existing.EmailAddress = *patch.EmailAddress
	}
	if patch.PhoneNumber != nil {
		existing.PhoneNumber = *patch.PhoneNumber
	}
	if patch.QuietHours != nil {
		existing.QuietHours = *patch.QuietHours
	}
	if patch.Digest != nil {
		existing.Digest = *patch.Digest
	}
	if patch.CategoryPreferences != nil {
		existing.CategoryPreferences = domain.MergeCategoryPreferences(existing.CategoryPreferences, patch.CategoryPreferences)
	}
	existing.UpdatedAt = time.Now()

	if err := s.repo.UpdatePreferences(ctx, existing); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, existing)
}

// dndRequest is POST /preferences/dnd's body: either an explicit until
// instant or a duration in hours, capped at one week.
type dndRequest struct {
	Until          *time.Time `json:"until"`
	DurationHours  *int       `json:"durationHours"`
}

// handleSetDnd enables do-not-disturb until an explicit instant or for a
// bounded duration from now.
func (s *Server) handleSetDnd(c *gin.Context) {
	userID, ok := callerUserID(c)
	if !ok {
		return
	}

	var req dndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid dnd request"))
		return
	}

	var until time.Time
	switch {
	case req.Until != nil:
		until = *req.Until
	case req.DurationHours != nil:
		if *req.DurationHours < 1 || *req.DurationHours > 168 {
			c.Error(apperrors.NewValidationError("durationHours", "durationHours must be between 1 and 168"))
			return
		}
		until = time.Now().Add(time.Duration(*req.DurationHours) * time.Hour)
	default:
		c.Error(apperrors.NewValidationError("body", "either until or durationHours is required"))
		return
	}

	ctx := c.Request.Context()
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		c.Error(err)
		return
	}
	prefs.Dnd = domain.DndSettings{Enabled: true, Until: &until}
	prefs.UpdatedAt = time.Now()

	if err := s.repo.UpdatePreferences(ctx, prefs); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// handleClearDnd disables do-not-disturb immediately.
func (s *Server) handleClearDnd(c *gin.Context) {
	userID, ok := callerUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		c.Error(err)
		return
	}
	prefs.Dnd = domain.DndSettings{Enabled: false}
	prefs.UpdatedAt = time.Now()

	if err := s.repo.UpdatePreferences(ctx, prefs); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// callerUserID resolves the authenticated caller's subject as a UUID,
// aborting the request with a validation error if it isn't one.
func callerUserID(c *gin.Context) (uuid.UUID, bool) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		c.Error(apperrors.NewUnauthenticatedError("missing caller identity"))
		return uuid.UUID{}, false
	}
	userID, err := uuid.Parse(caller.Subject)
	if err != nil {
		c.Error(apperrors.NewValidationError("sub", "caller subject is not a valid user id"))
		return uuid.UUID{}, false
	}
	return userID, true
}
