package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleStats reports 24-hour delivery counters broken down by channel and
// status.
func (s *Server) handleStats(c *gin.Context) {
	if s.statsRepo == nil {
		c.JSON(http.StatusOK, gin.H{"stats": []interface{}{}})
		return
	}

	stats, err := s.statsRepo.GetDeliveryStats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
