package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/analytics"
	"github.com/rmitchellscott/creativeforge/internal/config"
	"github.com/rmitchellscott/creativeforge/internal/converter"
	"github.com/rmitchellscott/creativeforge/internal/database"
	"github.com/rmitchellscott/creativeforge/internal/documents"
	"github.com/rmitchellscott/creativeforge/internal/generator"
	"github.com/rmitchellscott/creativeforge/internal/jobs"
	"github.com/rmitchellscott/creativeforge/internal/metrics"
	"github.com/rmitchellscott/creativeforge/internal/qr"
	"github.com/rmitchellscott/creativeforge/internal/shortener"
	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/rmitchellscott/creativeforge/internal/tempmail"
	"github.com/rmitchellscott/creativeforge/internal/upload"
	"github.com/rmitchellscott/creativeforge/internal/version"
	"gorm.io/gorm"
)

// Deps are the services the HTTP layer is built on. All of them are
// constructed once in main.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Store     storage.Backend
	Converter *converter.Service
	Generator *generator.Chain
	Images    *database.ImageService
	Documents *documents.Service
	QR        *qr.Service
	URLs      *shortener.Service
	TempMail  *tempmail.Service
	Analytics *analytics.Aggregator
	Jobs      *jobs.Store
}

// Handlers serves the JSON API.
type Handlers struct {
	Deps

	imageUploads    *upload.Normalizer
	mediaUploads    *upload.Normalizer
	documentUploads *upload.Normalizer

	convertLimits  *ipLimiter
	generateLimits *ipLimiter
}

func New(d Deps) *Handlers {
	cfg := d.Config
	return &Handlers{
		Deps: d,
		imageUploads: upload.NewNormalizer(d.Store, upload.Options{
			MaxFileSize: cfg.MaxUploadSize,
			MaxFiles:    cfg.MaxUploadFiles,
			Accept:      upload.AcceptImages,
		}),
		mediaUploads: upload.NewNormalizer(d.Store, upload.Options{
			MaxFileSize: cfg.MaxUploadSize,
			MaxFiles:    cfg.MaxUploadFiles,
			Accept:      upload.AcceptMedia,
		}),
		documentUploads: upload.NewNormalizer(d.Store, upload.Options{
			MaxFileSize: cfg.MaxDocumentSize,
			MaxFiles:    cfg.MaxUploadFiles,
			Accept:      upload.AcceptDocuments,
		}),
		convertLimits:  newIPLimiter(cfg.ConvertRateLimit),
		generateLimits: newIPLimiter(cfg.GenerateRateLimit),
	}
}

// Register mounts every route on router.
func (h *Handlers) Register(router *gin.Engine) {
	router.GET("/api/health", h.Health)
	router.GET("/api/config", h.ConfigHandler)
	router.GET("/metrics", metrics.Handler())
	router.GET("/s/:code", h.Redirect)

	api := router.Group("/api")

	convert := api.Group("/convert")
	convert.POST("/image", h.convertLimits.Middleware(), h.ConvertImage)
	convert.POST("/video", h.convertLimits.Middleware(), h.ConvertVideo)
	convert.POST("/audio", h.convertLimits.Middleware(), h.ConvertAudio)
	convert.GET("/files", h.ListConverted)
	convert.GET("/download/:filename", h.download(storage.PrefixConverted))

	images := api.Group("/images")
	images.POST("/generate", h.generateLimits.Middleware(), h.GenerateImage)
	images.GET("", h.RecentImages)
	images.GET("/download/:filename", h.download(storage.PrefixGenerated))

	docs := api.Group("/documents")
	docs.Use(h.convertLimits.Middleware())
	docs.POST("/merge-pdf", h.MergePDF)
	docs.POST("/split-pdf", h.SplitPDF)
	docs.POST("/compress-pdf", h.CompressPDF)
	docs.POST("/docx-to-pdf", h.DOCXToPDF)
	docs.POST("/pdf-to-docx", h.PDFToDOCX)
	docs.POST("/extract-text", h.ExtractText)
	api.GET("/documents/download/:filename", h.download(storage.PrefixDocuments))

	codes := api.Group("/qr")
	codes.POST("/generate", h.GenerateQR)
	codes.POST("/batch", h.BatchQR)
	codes.GET("/download/:filename", h.download(storage.PrefixQRCodes))

	urls := api.Group("/url")
	urls.POST("/shorten", h.Shorten)
	urls.GET("/analytics/:code", h.URLAnalytics)
	urls.GET("/my-urls", h.MyURLs)

	mail := api.Group("/temp-email")
	mail.POST("/generate", h.GenerateEmail)
	mail.GET("/domains", h.EmailDomains)
	mail.GET("/:email/messages", h.EmailMessages)
	mail.POST("/:email/simulate", h.SimulateEmail)
	mail.POST("/:email/simulate-external", h.SimulateExternalEmail)

	api.GET("/analytics/stats", h.Stats)
	api.GET("/analytics/usage", h.Usage)

	api.GET("/status/:id", h.Status)
	api.GET("/status/:id/ws", h.StatusStream)
}

func (h *Handlers) download(prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		storage.ServeDownload(c, h.Store, prefix, c.Param("filename"))
	}
}

// publicBase is the scheme and host clients reach this server on.
func (h *Handlers) publicBase(c *gin.Context) string {
	if h.Config.PublicURL != "" {
		return strings.TrimSuffix(h.Config.PublicURL, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// Health reports liveness and whether the database answers.
func (h *Handlers) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if h.DB != nil {
		if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "version": version.Get().Version})
}
