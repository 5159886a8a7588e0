package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rmitchellscott/creativeforge/internal/security"
)

// Key prefixes, one per feature.
const (
	PrefixUploads   = "uploads/"
	PrefixConverted = "converted/"
	PrefixDocuments = "documents/"
	PrefixQRCodes   = "qr-codes/"
	PrefixGenerated = "generated/"
)

// Millis is the timestamp embedded in generated filenames.
func Millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// Stamp is "<unixms>-<rand>", the unique part of every stored name. The
// random suffix keeps names minted in the same millisecond apart.
func Stamp(now time.Time) string {
	return fmt.Sprintf("%d-%s", Millis(now), uuid.NewString()[:8])
}

// UploadKey names a freshly received upload.
func UploadKey(now time.Time, ext string) string {
	return fmt.Sprintf("%sinput-%s%s", PrefixUploads, Stamp(now), normalizeExt(ext))
}

// OutputName builds "<label>-<unixms>-<rand>-<stem>.<ext>" from a client
// supplied original name.
func OutputName(label string, now time.Time, originalName, ext string) string {
	base := security.SanitizeUploadName(originalName)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		stem = "file"
	}
	return fmt.Sprintf("%s-%s-%s%s", label, Stamp(now), stem, normalizeExt(ext))
}

// Join prefixes a bare filename.
func Join(prefix, filename string) string {
	return prefix + filename
}

// Filename returns the final element of a key.
func Filename(key string) string {
	return path.Base(key)
}

// Ext returns the lower-cased extension of a key or filename without the dot.
func Ext(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
