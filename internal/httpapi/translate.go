package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/notihub/notihub/internal/apperrors"
)

// translateRequest is POST /translate's body.
type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
	Context    string `json:"context"`
}

// handleTranslate runs one string through the fallback translation chain.
// Context is accepted for forward compatibility with tier-specific prompt
// hints but isn't consulted by any tier today.
func (s *Server) handleTranslate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid translate request"))
		return
	}
	if req.Text == "" || req.SourceLang == "" || req.TargetLang == "" {
		c.Error(apperrors.NewValidationError("body", "text, sourceLang, and targetLang are required"))
		return
	}

	result, err := s.translator.Translate(c.Request.Context(), req.Text, req.SourceLang, req.TargetLang)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// batchTranslateItem is one entry of POST /batch-translate's items array.
type batchTranslateItem struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang"`
}

// batchTranslateRequest is POST /batch-translate's body: every item
// translates into the same target locale.
type batchTranslateRequest struct {
	Items        []batchTranslateItem `json:"items"`
	TargetLocale string               `json:"targetLocale"`
}

// handleBatchTranslate translates every item concurrently against the same
// target locale, returning results in input order.
func (s *Server) handleBatchTranslate(c *gin.Context) {
	var req batchTranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid batch translate request"))
		return
	}
	if req.TargetLocale == "" {
		c.Error(apperrors.NewValidationError("targetLocale", "targetLocale is required"))
		return
	}

	results := make([]interface{}, len(req.Items))
	g, ctx := errgroup.WithContext(c.Request.Context())
	for i, item := range req.Items {
		i, item := i, item
		g.Go(func() error {
			result, err := s.translator.Translate(ctx, item.Text, item.SourceLang, req.TargetLocale)
			if err != nil {
				results[i] = gin.H{"error": err.Error()}
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// handleTranslationHealth reports the fallback chain's tier order and
// cache occupancy — the translation engine's own health surface, distinct
// from the platform-wide /health.
func (s *Server) handleTranslationHealth(c *gin.Context) {
	if s.translationHealth == nil {
		c.Error(apperrors.NewInternalError("translation_health", nil))
		return
	}
	c.JSON(http.StatusOK, s.translationHealth.Health(c.Request.Context()))
}
