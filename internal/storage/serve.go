package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/security"
)

// ContentTypeFor maps a filename extension to the Content-Type used for
// downloads. Unknown extensions are served as application/octet-stream.
func ContentTypeFor(name string) string {
	switch Ext(name) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tif", "tiff":
		return "image/tiff"
	case "avif":
		return "image/avif"
	case "heif", "heic":
		return "image/heif"
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "avi":
		return "video/x-msvideo"
	case "mov":
		return "video/quicktime"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "ogg":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	case "aac":
		return "audio/aac"
	case "m4a":
		return "audio/mp4"
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// ServeDownload streams prefix+filename as an attachment. An invalid or
// unknown filename yields 404 {"error":"File not found"}.
func ServeDownload(c *gin.Context, backend Backend, prefix, filename string) {
	name, err := security.CleanFilename(filename)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	key := Join(prefix, name)

	reader, err := backend.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		logging.Errorf("[STORAGE] Failed to open %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve file"})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", ContentTypeFor(name))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, reader); err != nil {
		logging.Errorf("[STORAGE] Failed to stream file %s: %v", key, err)
	}
}

// PutBytes stores an in-memory object.
func PutBytes(ctx context.Context, backend Backend, key string, data []byte) error {
	return backend.Put(ctx, key, bytes.NewReader(data))
}

// ReadAll loads an object fully into memory.
func ReadAll(ctx context.Context, backend Backend, key string) ([]byte, error) {
	r, err := backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// PutFile copies a local file into the store.
func PutFile(ctx context.Context, backend Backend, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", localPath, err)
	}
	defer f.Close()

	if err := backend.Put(ctx, key, f); err != nil {
		return fmt.Errorf("failed to store file %s: %w", key, err)
	}
	return nil
}

// FetchToDir copies an object to dir for tools that need a real file path
// and returns that path. The caller removes it.
func FetchToDir(ctx context.Context, backend Backend, key, dir string) (string, error) {
	r, err := backend.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to get file from storage %s: %w", key, err)
	}
	defer r.Close()

	dest := filepath.Join(dir, Filename(key))
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}
	return dest, nil
}

// CleanupPrefix deletes every object below prefix, logging failures.
func CleanupPrefix(ctx context.Context, backend Backend, prefix string) (int, error) {
	keys, err := backend.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list files with prefix %s: %w", prefix, err)
	}

	deleted := 0
	for _, key := range keys {
		if err := backend.Delete(ctx, key); err != nil {
			logging.Warnf("[STORAGE] Failed to delete storage file %s: %v", key, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		logging.Logf("[STORAGE] Cleaned up %d files with prefix %s", deleted, prefix)
	}
	return deleted, nil
}

// TotalSize sums object sizes below prefix.
func TotalSize(ctx context.Context, backend Backend, prefix string) (int64, error) {
	infos, err := backend.ListWithInfo(ctx, prefix)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, info := range infos {
		total += info.Size
	}
	return total, nil
}

// PruneOlderThan deletes objects below prefix last modified before cutoff.
func PruneOlderThan(ctx context.Context, backend Backend, prefix string, cutoff time.Time) (int, error) {
	infos, err := backend.ListWithInfo(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list files with prefix %s: %w", prefix, err)
	}
	deleted := 0
	for _, info := range infos {
		if !info.LastModified.Before(cutoff) {
			continue
		}
		if err := backend.Delete(ctx, info.Key); err != nil {
			logging.Warnf("[STORAGE] Failed to delete stale file %s: %v", info.Key, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}
