package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/converter"
	"github.com/rmitchellscott/creativeforge/internal/tempmail"
	"github.com/rmitchellscott/creativeforge/internal/version"
)

// ConfigHandler returns application configuration information
func (h *Handlers) ConfigHandler(c *gin.Context) {
	cfg := h.Config
	c.JSON(http.StatusOK, gin.H{
		"apiUrl":         "/api/",
		"version":        version.Get(),
		"serverless":     cfg.Serverless,
		"storageBackend": cfg.StorageBackend,
		"providers":      h.Generator.Providers(),
		"engines": gin.H{
			"image": h.Converter.Images.Engines(),
			"media": h.Converter.Media.Engines(),
		},
		"formats": converter.Formats(),
		"limits": gin.H{
			"maxUploadSize":   cfg.MaxUploadSize,
			"maxUploadFiles":  cfg.MaxUploadFiles,
			"maxDocumentSize": cfg.MaxDocumentSize,
		},
		"tempEmailDomains": tempmail.Domains(),
	})
}
