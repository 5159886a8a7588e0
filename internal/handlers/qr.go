package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/qr"
)

// qrContent accepts either a JSON string or a structured object (wifi,
// vcard, location), which is handed on as raw JSON.
type qrContent json.RawMessage

func (q *qrContent) UnmarshalJSON(b []byte) error {
	*q = append((*q)[:0], b...)
	return nil
}

func (q qrContent) String() string {
	if len(q) == 0 || string(q) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(q, &s); err == nil {
		return s
	}
	return string(q)
}

type qrRequest struct {
	Content qrContent `json:"content"`
	Type    string    `json:"type" binding:"omitempty,oneof=text url email phone sms wifi vcard location"`
	qr.Options
}

func (h *Handlers) GenerateQR(c *gin.Context) {
	var req qrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.QR.Generate(c.Request.Context(), req.Type, req.Content.String(), req.Options)
	if err != nil {
		fail(c, "Failed to generate QR code", err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*qr.Result
	}{true, "QR Code generated successfully", res})
}

type qrBatchRequest struct {
	Items   []qr.BatchItem `json:"items"`
	Options qr.Options     `json:"options"`
}

func (h *Handlers) BatchQR(c *gin.Context) {
	var req qrBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	results, failures, err := h.QR.Batch(c.Request.Context(), req.Items, req.Options)
	if err != nil {
		fail(c, "Failed to generate batch QR codes", err)
		return
	}
	if results == nil {
		results = []qr.BatchResult{}
	}
	if failures == nil {
		failures = []qr.BatchError{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    fmt.Sprintf("Generated %d QR codes successfully", len(results)),
		"results":    results,
		"errors":     failures,
		"total":      len(req.Items),
		"successful": len(results),
		"failed":     len(failures),
	})
}
