package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rmitchellscott/creativeforge/internal/documents"
	"github.com/rmitchellscott/creativeforge/internal/generator"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/qr"
	"github.com/rmitchellscott/creativeforge/internal/shortener"
	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/rmitchellscott/creativeforge/internal/tempmail"
	"github.com/rmitchellscott/creativeforge/internal/upload"
)

// fail maps a service error to a response. summary is the "error" field of
// unexpected failures; the underlying error goes into "message".
func fail(c *gin.Context, summary string, err error) {
	var (
		uerr *upload.UploadError
		derr *documents.InputError
		qerr *qr.InputError
	)
	switch {
	case errors.As(err, &uerr):
		body := gin.H{"error": "File upload failed", "message": uerr.Message}
		if len(uerr.Tried) > 0 {
			body["tried"] = uerr.Tried
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &derr):
		c.JSON(http.StatusBadRequest, gin.H{"error": derr.Message})
	case errors.As(err, &qerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": qerr.Message})
	case errors.Is(err, qr.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content is required for QR code generation"})
	case errors.Is(err, generator.ErrEmptyPrompt):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})

	case errors.Is(err, shortener.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a valid URL"})
	case errors.Is(err, shortener.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Custom code can only contain letters, numbers, hyphens, and underscores"})
	case errors.Is(err, shortener.ErrCodeTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Custom code is already taken"})
	case errors.Is(err, shortener.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})

	case errors.Is(err, tempmail.ErrInvalidUsername):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username can only contain lowercase letters, numbers, dots, hyphens, and underscores"})
	case errors.Is(err, tempmail.ErrUnknownDomain):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported email domain"})
	case errors.Is(err, tempmail.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username is already taken"})
	case errors.Is(err, tempmail.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Email not found or expired"})

	default:
		logging.Errorf("[API] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": summary, "message": err.Error()})
	}
}

// bindError turns a binding failure into a 400 with a readable message.
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": validationErrorMessage(err)})
}

// validationErrorMessage returns a user-friendly validation error message.
func validationErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		field := ve.Field()
		switch ve.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, ve.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, ve.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, ve.Param()))
		case "url", "http_url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}
