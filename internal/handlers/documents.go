package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/documents"
	"github.com/rmitchellscott/creativeforge/internal/upload"
)

// documentUpload normalizes the request and returns the batch, or answers
// the request itself and returns nil. Callers defer batch.Cleanup.
func (h *Handlers) documentUpload(c *gin.Context) *upload.Batch {
	batch, err := h.documentUploads.Normalize(c.Writer, c.Request)
	if err != nil {
		fail(c, "File upload failed", err)
		return nil
	}
	return batch
}

func cleanup(c *gin.Context, batch *upload.Batch) {
	batch.Cleanup(context.WithoutCancel(c.Request.Context()))
}

func (h *Handlers) MergePDF(c *gin.Context) {
	batch := h.documentUpload(c)
	if batch == nil {
		return
	}
	defer cleanup(c, batch)

	res, err := h.Documents.Merge(c.Request.Context(), batch.Files)
	if err != nil {
		fail(c, "Failed to merge PDFs", err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*documents.MergeResult
	}{true, "PDFs merged successfully", res})
}

type splitForm struct {
	SplitType string `form:"splitType" binding:"omitempty,oneof=pages range"`
	StartPage int    `form:"startPage" binding:"omitempty,min=1"`
	EndPage   int    `form:"endPage" binding:"omitempty,min=1"`
}

func (h *Handlers) SplitPDF(c *gin.Context) {
	batch := h.documentUpload(c)
	if batch == nil {
		return
	}
	defer cleanup(c, batch)

	var form splitForm
	if err := c.ShouldBind(&form); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.Documents.Split(c.Request.Context(), batch.Files[0], documents.SplitOptions{
		Type:  form.SplitType,
		Start: form.StartPage,
		End:   form.EndPage,
	})
	if err != nil {
		fail(c, "Failed to split PDF", err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*documents.SplitResult
	}{true, fmt.Sprintf("PDF split successfully into %d file(s)", len(res.Files)), res})
}

// compressionLevels maps the UI's level names onto Ghostscript presets.
var compressionLevels = map[string]string{
	"low":    "/printer",
	"medium": "/ebook",
	"high":   "/screen",
}

func (h *Handlers) CompressPDF(c *gin.Context) {
	batch := h.documentUpload(c)
	if batch == nil {
		return
	}
	defer cleanup(c, batch)

	preset := c.PostForm("preset")
	if level, ok := compressionLevels[c.PostForm("level")]; ok && preset == "" {
		preset = level
	}
	res, err := h.Documents.Compress(c.Request.Context(), batch.Files[0], preset)
	if err != nil {
		fail(c, "Failed to compress PDF", err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*documents.CompressResult
	}{true, "PDF compressed successfully", res})
}

func (h *Handlers) DOCXToPDF(c *gin.Context) {
	batch := h.documentUpload(c)
	if batch == nil {
		return
	}
	defer cleanup(c, batch)

	res, err := h.Documents.ToPDF(c.Request.Context(), batch.Files[0])
	if err != nil {
		fail(c, "Failed to convert DOCX to PDF", err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*documents.ConvertResult
	}{true, "DOCX converted to PDF successfully", res})
}

func (h *Handlers) PDFToDOCX(c *gin.Context) {
	batch := h.documentUpload(c)
	if batch == nil {
		return
	}
	defer cleanup(c, batch)

	res, err := h.Documents.PDFToDOCX(c.Request.Context(), batch.Files[0])
	if err != nil {
		fail(c, "Failed to convert PDF to DOCX", err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*documents.ConvertResult
	}{true, "PDF converted to DOCX successfully", res})
}

func (h *Handlers) ExtractText(c *gin.Context) {
	batch := h.documentUpload(c)
	if batch == nil {
		return
	}
	defer cleanup(c, batch)

	res, err := h.Documents.ExtractText(c.Request.Context(), batch.Files[0])
	if err != nil {
		fail(c, "Failed to extract text", err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*documents.ExtractResult
	}{true, "Text extracted successfully", res})
}
