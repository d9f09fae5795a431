package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/domain"
)

// handleSend accepts a single notification send, body as domain.SendRequest.
func (s *Server) handleSend(c *gin.Context) {
	var req domain.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid send request"))
		return
	}

	result, err := s.engine.Send(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// sendBatchRequest is POST /send/batch's body.
type sendBatchRequest struct {
	Notifications []domain.SendRequest     `json:"notifications"`
	Options       domain.BatchSendOptions `json:"options"`
}

// handleSendBatch fans a batch of sends out through the orchestrator,
// either in parallel or sequentially per the request's options.
func (s *Server) handleSendBatch(c *gin.Context) {
	var req sendBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid batch send request"))
		return
	}

	results, err := s.engine.SendBatch(c.Request.Context(), req.Notifications, req.Options)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// sendTemplateRequest is POST /send/template's body.
type sendTemplateRequest struct {
	UserID    string            `json:"userId"`
	Template  string            `json:"template"`
	Locale    string            `json:"locale"`
	Variables map[string]string `json:"variables"`
}

// handleSendTemplate renders a named template against the caller-supplied
// variables and sends it.
func (s *Server) handleSendTemplate(c *gin.Context) {
	var req sendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("body", "invalid template send request"))
		return
	}

	userID, err := parseUUID(req.UserID)
	if err != nil {
		c.Error(apperrors.NewValidationError("userId", "userId must be a valid UUID"))
		return
	}

	result, sendErr := s.engine.SendTemplate(c.Request.Context(), userID, req.Template, req.Locale, req.Variables)
	if sendErr != nil {
		c.Error(sendErr)
		return
	}
	c.JSON(http.StatusOK, result)
}
