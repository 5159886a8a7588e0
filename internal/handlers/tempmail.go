package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/tempmail"
)

type generateEmailRequest struct {
	CustomUsername string `json:"customUsername" binding:"omitempty,max=64"`
	Domain         string `json:"domain" binding:"omitempty,hostname"`
}

func (h *Handlers) GenerateEmail(c *gin.Context) {
	var req generateEmailRequest
	// An empty body generates a random address on the default domain.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	inbox, err := h.TempMail.Generate(c.Request.Context(), req.CustomUsername, req.Domain)
	if err != nil {
		fail(c, "Failed to generate temporary email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Temporary email generated successfully",
		"data": gin.H{
			"email":         inbox.Email,
			"username":      inbox.Username,
			"domain":        inbox.Domain,
			"expiresAt":     inbox.ExpiresAt,
			"messagesCount": 0,
		},
	})
}

func (h *Handlers) EmailDomains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "domains": tempmail.Domains()})
}

func (h *Handlers) EmailMessages(c *gin.Context) {
	inbox, err := h.TempMail.Messages(c.Request.Context(), c.Param("email"))
	if err != nil {
		fail(c, "Failed to get messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": inbox})
}

type simulateRequest struct {
	From    string `json:"from" binding:"omitempty,max=320"`
	Subject string `json:"subject" binding:"omitempty,max=998"`
	Body    string `json:"body"`
}

func (h *Handlers) SimulateEmail(c *gin.Context) {
	var req simulateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	msg, err := h.TempMail.Simulate(c.Request.Context(), c.Param("email"), req.From, req.Subject, req.Body)
	if err != nil {
		fail(c, "Failed to simulate email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email simulated successfully", "data": msg})
}

func (h *Handlers) SimulateExternalEmail(c *gin.Context) {
	msg, err := h.TempMail.SimulateExternal(c.Request.Context(), c.Param("email"))
	if err != nil {
		fail(c, "Failed to simulate external email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "External email simulated successfully", "data": msg})
}
