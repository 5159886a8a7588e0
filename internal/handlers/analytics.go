package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) Stats(c *gin.Context) {
	stats, activity, err := h.Analytics.Stats(c.Request.Context())
	if err != nil {
		fail(c, "Failed to fetch analytics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats, "recentActivity": activity})
}

func (h *Handlers) Usage(c *gin.Context) {
	daily, err := h.Analytics.Usage(c.Request.Context())
	if err != nil {
		fail(c, "Failed to fetch usage data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dailyStats": daily})
}
