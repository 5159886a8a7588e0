package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/converter"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/rmitchellscott/creativeforge/internal/upload"
)

const convertDownloadBase = "/api/convert/download/"

// convertForm carries the conversion options sent next to the files.
// Quality is either a number (10-100) or a tier name.
type convertForm struct {
	Format    string `form:"format"`
	Quality   string `form:"quality"`
	Width     int    `form:"width" binding:"omitempty,min=0,max=10000"`
	Height    int    `form:"height" binding:"omitempty,min=0,max=10000"`
	Fit       string `form:"fit" binding:"omitempty,oneof=cover contain fill"`
	Enhance   bool   `form:"enhance"`
	Tier      string `form:"qualityTier" binding:"omitempty,oneof=low medium high ultra"`
	RequestID string `form:"requestId"`
}

func (f convertForm) request() converter.Request {
	opts := converter.Options{Width: f.Width, Height: f.Height, Fit: f.Fit, Enhance: f.Enhance, Tier: f.Tier}
	if q := strings.TrimSpace(f.Quality); q != "" {
		if n, err := strconv.Atoi(q); err == nil {
			opts.Quality = n
		} else if opts.Tier == "" {
			opts.Tier = strings.ToLower(q)
		}
	}
	return converter.Request{Format: strings.ToLower(strings.TrimSpace(f.Format)), Options: opts}
}

func (h *Handlers) ConvertImage(c *gin.Context) {
	h.convert(c, converter.KindImage, "png", "images")
}

func (h *Handlers) ConvertVideo(c *gin.Context) {
	h.convert(c, converter.KindVideo, "mp4", "video files")
}

func (h *Handlers) ConvertAudio(c *gin.Context) {
	h.convert(c, converter.KindAudio, "mp3", "audio files")
}

func (h *Handlers) uploadsFor(kind converter.Kind) *upload.Normalizer {
	if kind == converter.KindImage {
		return h.imageUploads
	}
	return h.mediaUploads
}

// convert runs every uploaded file through the chain for kind. Inputs are
// deleted whatever happens. Images answer 500 when nothing converted;
// audio and video always degrade to the original, so they answer 200.
func (h *Handlers) convert(c *gin.Context, kind converter.Kind, defaultFormat, noun string) {
	batch, err := h.uploadsFor(kind).Normalize(c.Writer, c.Request)
	if err != nil {
		fail(c, "File upload failed", err)
		return
	}
	defer batch.Cleanup(context.WithoutCancel(c.Request.Context()))

	var form convertForm
	if err := c.ShouldBind(&form); err != nil {
		bindError(c, err)
		return
	}
	req := form.request()
	if req.Format == "" {
		req.Format = defaultFormat
	}
	if k, ok := converter.KindOf(req.Format); !ok || k != kind {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     fmt.Sprintf("Unsupported %s format: %s", kind, req.Format),
			"supported": converter.Formats()[kind],
		})
		return
	}

	tracker := h.Jobs.Track(form.RequestID, "convert-"+string(kind))
	chain := h.Converter.ChainFor(kind)
	results := make([]converter.Result, 0, len(batch.Files))
	var failed []converter.Failure
	for i, f := range batch.Files {
		src := converter.Source{Key: f.Key, OriginalName: f.OriginalName, MIME: f.MIME, Size: f.Size}
		tracker.Stage("converting", fmt.Sprintf("Converting %s", f.OriginalName), i*100/len(batch.Files))
		logging.Logf("[CONVERT] Converting %s to %s", f.OriginalName, req.Format)

		out, err := chain.Convert(c.Request.Context(), src, req)
		if err != nil {
			failed = append(failed, converter.NewFailure(src, err))
			continue
		}
		results = append(results, converter.NewResult(src, out, convertDownloadBase))
	}

	if len(results) == 0 && kind == converter.KindImage {
		tracker.Fail("No files could be converted")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to convert " + noun,
			"message": failed[0].Error,
			"failed":  failed,
		})
		return
	}

	verb := "Processed"
	if kind == converter.KindImage {
		verb = "Successfully converted"
	}
	msg := fmt.Sprintf("%s %d of %d %s", verb, len(results), len(batch.Files), noun)
	tracker.Succeed(msg, map[string]string{"converted": strconv.Itoa(len(results))})
	body := gin.H{"success": true, "message": msg, "results": results}
	if len(failed) > 0 {
		body["failed"] = failed
	}
	c.JSON(http.StatusOK, body)
}

type convertedFile struct {
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	DownloadURL string    `json:"downloadUrl"`
}

// ListConverted lists stored conversion outputs, newest first.
func (h *Handlers) ListConverted(c *gin.Context) {
	infos, err := h.Store.ListWithInfo(c.Request.Context(), storage.PrefixConverted)
	if err != nil {
		fail(c, "Failed to list files", err)
		return
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].LastModified.After(infos[j].LastModified) })

	files := make([]convertedFile, 0, len(infos))
	for _, info := range infos {
		name := storage.Filename(info.Key)
		files = append(files, convertedFile{
			Filename:    name,
			Size:        info.Size,
			Modified:    info.LastModified,
			DownloadURL: convertDownloadBase + name,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "files": files})
}
