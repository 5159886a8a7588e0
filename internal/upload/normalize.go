package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/storage"
)

const (
	DefaultMaxFileSize = 100 << 20
	DefaultMaxFiles    = 10
	memoryLimit        = 32 << 20
)

// UploadError is a client error in the shape of the upload request.
type UploadError struct {
	Message string
	Tried   []string
}

func (e *UploadError) Error() string {
	return "upload: " + e.Message
}

// Options bounds what Normalize accepts.
type Options struct {
	MaxFileSize int64
	MaxFiles    int
	// Accept filters files by original name and sniffed MIME type. nil accepts
	// everything.
	Accept     func(name, mime string) bool
	Strategies []Strategy
}

// File is one stored upload.
type File struct {
	Key          string
	OriginalName string
	MIME         string
	Size         int64
}

// Ext returns the lower-cased extension of the original name, without dot.
func (f File) Ext() string {
	return storage.Ext(f.OriginalName)
}

// Batch is the normalized result of one request. Cleanup must run once the
// request is done, whatever the outcome.
type Batch struct {
	Files    []File
	Strategy string
	store    storage.Backend
}

// Cleanup deletes every stored input. It is safe to call more than once.
func (b *Batch) Cleanup(ctx context.Context) {
	if b == nil {
		return
	}
	for _, f := range b.Files {
		if err := b.store.Delete(ctx, f.Key); err != nil {
			logging.Warnf("[UPLOAD] Failed to delete input %s: %v", f.Key, err)
		}
	}
	b.Files = nil
}

// Normalizer turns multipart requests with unknown field names into a Batch
// stored in the blob store.
type Normalizer struct {
	store storage.Backend
	opts  Options
	now   func() time.Time
}

func NewNormalizer(store storage.Backend, opts Options) *Normalizer {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if len(opts.Strategies) == 0 {
		opts.Strategies = DefaultStrategies
	}
	return &Normalizer{store: store, opts: opts, now: time.Now}
}

// Normalize parses r, selects file parts with the first matching strategy,
// validates limits and stores each accepted part under uploads/. The body is
// capped while it streams, so chunked requests cannot bypass the limits.
func (n *Normalizer) Normalize(w http.ResponseWriter, r *http.Request) (*Batch, error) {
	bodyLimit := n.opts.MaxFileSize*int64(n.opts.MaxFiles) + (1 << 20)
	if r.ContentLength > bodyLimit {
		return nil, n.tooLarge()
	}
	if r.MultipartForm == nil {
		r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
		if err := r.ParseMultipartForm(memoryLimit); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, n.tooLarge()
			}
			if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
				return nil, &UploadError{Message: "No files found in request", Tried: strategyNames(n.opts.Strategies)}
			}
			return nil, &UploadError{Message: "Could not parse upload: " + err.Error()}
		}
	}

	name, headers, tried := pick(r.MultipartForm, n.opts.Strategies)
	if len(headers) == 0 {
		return nil, &UploadError{Message: "No files found in request", Tried: tried}
	}
	if len(headers) > n.opts.MaxFiles {
		return nil, &UploadError{Message: fmt.Sprintf("Too many files (max %d)", n.opts.MaxFiles)}
	}
	for _, h := range headers {
		if h.Size > n.opts.MaxFileSize {
			return nil, &UploadError{Message: fmt.Sprintf("File too large: %s (max %d MB)", h.Filename, n.opts.MaxFileSize>>20)}
		}
	}

	ctx := r.Context()
	batch := &Batch{Strategy: name, store: n.store}
	for _, h := range headers {
		f, err := n.store1(ctx, h)
		if err != nil {
			batch.Cleanup(context.WithoutCancel(ctx))
			return nil, err
		}
		batch.Files = append(batch.Files, f)
	}

	logging.Logf("[UPLOAD] Accepted %d file(s) via %q strategy", len(batch.Files), name)
	return batch, nil
}

func (n *Normalizer) tooLarge() error {
	return &UploadError{Message: fmt.Sprintf("Request too large (max %d MB per file, %d files)", n.opts.MaxFileSize>>20, n.opts.MaxFiles)}
}

func (n *Normalizer) store1(ctx context.Context, h *multipart.FileHeader) (File, error) {
	src, err := h.Open()
	if err != nil {
		return File{}, fmt.Errorf("open upload %s: %w", h.Filename, err)
	}
	defer src.Close()

	mt, err := mimetype.DetectReader(src)
	if err != nil {
		return File{}, fmt.Errorf("sniff upload %s: %w", h.Filename, err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return File{}, fmt.Errorf("rewind upload %s: %w", h.Filename, err)
	}

	mime := mt.String()
	if n.opts.Accept != nil && !n.opts.Accept(h.Filename, mime) {
		return File{}, &UploadError{Message: fmt.Sprintf("Unsupported file type: %s", h.Filename)}
	}

	ext := filepath.Ext(h.Filename)
	if ext == "" {
		ext = mt.Extension()
	}
	key := storage.UploadKey(n.now(), ext)
	if err := n.store.Put(ctx, key, src); err != nil {
		return File{}, fmt.Errorf("store upload %s: %w", h.Filename, err)
	}

	return File{Key: key, OriginalName: h.Filename, MIME: mime, Size: h.Size}, nil
}

func strategyNames(strategies []Strategy) []string {
	out := make([]string, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, s.Name)
	}
	return out
}

var documentExts = map[string]bool{"pdf": true, "docx": true, "doc": true, "txt": true, "md": true, "html": true, "htm": true}

// AcceptDocuments admits the formats handled by the document tools.
func AcceptDocuments(name, mime string) bool {
	if documentExts[storage.Ext(name)] {
		return true
	}
	switch {
	case mime == "application/pdf",
		mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mime == "application/msword",
		strings.HasPrefix(mime, "text/plain"),
		strings.HasPrefix(mime, "text/html"):
		return true
	}
	return false
}

// AcceptImages admits files sniffed as images.
func AcceptImages(name, mime string) bool {
	return strings.HasPrefix(mime, "image/")
}

// AcceptMedia admits audio and video, trusting the extension when sniffing
// cannot tell (some containers look like application/octet-stream).
func AcceptMedia(name, mime string) bool {
	if strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "audio/") {
		return true
	}
	switch storage.Ext(name) {
	case "mp4", "webm", "avi", "mov", "wmv", "flv", "mkv", "3gp",
		"mp3", "wav", "aac", "ogg", "flac", "m4a", "opus", "wma":
		return true
	}
	return false
}
