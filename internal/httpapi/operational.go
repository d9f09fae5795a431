package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/domain"
)

var allowedDigestFrequencies = map[domain.Frequency]bool{
	domain.FrequencyHourly: true,
	domain.FrequencyDaily:  true,
	domain.FrequencyWeekly: true,
}

// digestProcessRequest is POST /digest/process's body.
type digestProcessRequest struct {
	Frequency domain.Frequency `json:"frequency"`
	Limit     int              `json:"limit"`
	DryRun    bool             `json:"dryRun"`
}

// handleDigestProcess drains one frequency's due digest batch, rendering
// and sending a summary per user (or just reporting the count on dryRun).
func (s *Server) handleDigestProcess(c *gin.Context) {
	var req digestProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid digest process request"))
		return
	}
	if !allowedDigestFrequencies[req.Frequency] {
		c.Error(apperrors.NewValidationError("frequency", "frequency must be one of hourly, daily, weekly"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}

	flushed, failed, err := s.digestProc.ProcessDigest(c.Request.Context(), req.Frequency, req.Limit, req.DryRun)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flushed": flushed, "failed": failed})
}

// queueProcessRequest is POST /queue/process's body.
type queueProcessRequest struct {
	Limit int `json:"limit"`
}

// handleQueueProcess drains the durable per-item queue.
func (s *Server) handleQueueProcess(c *gin.Context) {
	var req queueProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid queue process request"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}

	completed, failed, err := s.queueProc.ProcessQueue(c.Request.Context(), req.Limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": completed, "failed": failed})
}

// translationQueueProcessRequest is POST /process-queue's body.
type translationQueueProcessRequest struct {
	Limit int `json:"limit"`
}

// handleTranslationQueueProcess drains pending dynamic-content translation
// requests, an operation distinct from /translate's synchronous,
// request-scoped lookup: this is queued work created elsewhere (content
// authored in one locale) and drained on its own cron schedule.
func (s *Server) handleTranslationQueueProcess(c *gin.Context) {
	if s.translationQueueProc == nil {
		c.Error(apperrors.NewInternalError("process_translation_queue", nil))
		return
	}

	var req translationQueueProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid translation queue process request"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}

	completed, failed, err := s.translationQueueProc.ProcessTranslationQueue(c.Request.Context(), req.Limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": completed, "failed": failed})
}
