package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/metrics"
	"github.com/rmitchellscott/creativeforge/internal/shortener"
)

type shortenRequest struct {
	OriginalURL string `json:"originalUrl"`
	CustomCode  string `json:"customCode" binding:"omitempty,max=64"`
}

func (h *Handlers) Shorten(c *gin.Context) {
	var req shortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	rec, existed, err := h.URLs.Shorten(c.Request.Context(), req.OriginalURL, req.CustomCode, h.publicBase(c))
	if err != nil {
		fail(c, "Failed to shorten URL", err)
		return
	}
	msg := "URL shortened successfully"
	if existed {
		msg = "URL already shortened"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "data": rec})
}

// Redirect follows a short link and counts the click.
func (h *Handlers) Redirect(c *gin.Context) {
	target, err := h.URLs.Resolve(c.Request.Context(), c.Param("code"), shortener.Visit{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	})
	if err != nil {
		fail(c, "Failed to resolve short URL", err)
		return
	}
	metrics.ObserveRedirect()
	c.Redirect(http.StatusFound, target)
}

func (h *Handlers) URLAnalytics(c *gin.Context) {
	stats, err := h.URLs.Analytics(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, "Failed to get analytics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

func (h *Handlers) MyURLs(c *gin.Context) {
	urls, err := h.URLs.Recent(c.Request.Context())
	if err != nil {
		fail(c, "Failed to get URLs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": urls})
}
