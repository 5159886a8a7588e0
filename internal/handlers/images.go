package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/storage"
)

const imageDownloadBase = "/api/images/download/"

type generateRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	RequestID string `json:"requestId"`
}

// GenerateImage walks the provider chain and records the winner. Passing a
// requestId makes progress observable under /api/status/:id.
func (h *Handlers) GenerateImage(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	tracker := h.Jobs.Track(req.RequestID, "generate")
	res, err := h.Generator.Generate(c.Request.Context(), req.Prompt, tracker)
	if err != nil {
		fail(c, "Failed to generate image", err)
		return
	}

	localPath := imageDownloadBase + res.Filename
	record, err := h.Images.Record(context.WithoutCancel(c.Request.Context()), res.Prompt, localPath, res.Service)
	if err != nil {
		logging.Warnf("[GENERATE] Failed to record image %s: %v", res.Filename, err)
	}
	id := strconv.FormatInt(storage.Millis(time.Now()), 10)
	if record != nil {
		id = record.ID.String()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"id":        id,
		"imageUrl":  h.publicBase(c) + localPath,
		"localPath": localPath,
		"filename":  res.Filename,
		"prompt":    res.Prompt,
		"service":   res.Service,
		"message":   fmt.Sprintf("Image generated successfully using %s!", res.Service),
	})
}

// RecentImages lists recorded generations, newest first.
func (h *Handlers) RecentImages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	images, err := h.Images.Recent(c.Request.Context(), limit)
	if err != nil {
		fail(c, "Failed to list images", err)
		return
	}
	c.JSON(http.StatusOK, images)
}
