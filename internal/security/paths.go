package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrPathTraversal  = errors.New("path contains directory traversal sequences")
	ErrAbsolutePath   = errors.New("absolute paths are not allowed")
	ErrEmptyPath      = errors.New("path cannot be empty")
	ErrInvalidPath    = errors.New("invalid path")
	ErrOutsideBaseDir = errors.New("path is outside allowed base directory")
	ErrInvalidName    = errors.New("filename contains unsupported characters")
)

// downloadName is the shape of every filename this service hands out:
// prefix-timestamp-stem.ext with no separators.
var downloadName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._() +-]*$`)

// ValidateStorageKey checks a slash separated blob key.
func ValidateStorageKey(key string) error {
	if key == "" {
		return ErrEmptyPath
	}
	if strings.Contains(key, "\x00") {
		return ErrInvalidPath
	}
	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return ErrAbsolutePath
	}
	if strings.Contains(key, "\\") {
		return ErrInvalidPath
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrPathTraversal
		}
	}
	return nil
}

// CleanFilename validates a single path element supplied by a client, such
// as the :filename route parameter of a download endpoint.
func CleanFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyPath
	}
	if strings.Contains(name, "\x00") {
		return "", ErrInvalidPath
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: filename cannot contain path separators", ErrPathTraversal)
	}
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return "", ErrPathTraversal
	}
	if !downloadName.MatchString(name) {
		return "", ErrInvalidName
	}
	return name, nil
}

// SanitizeUploadName reduces a client supplied upload name to something safe
// to embed in a generated filename. It never fails; unusable names become
// "file".
func SanitizeUploadName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	if out == "" {
		return "file"
	}
	return out
}

// SafeJoin joins a validated relative key onto basePath and confirms the
// result stays inside basePath.
func SafeJoin(basePath, key string) (string, error) {
	if err := ValidateStorageKey(key); err != nil {
		return "", err
	}
	if basePath == "" {
		return "", fmt.Errorf("base directory cannot be empty")
	}

	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	full := filepath.Join(absBase, filepath.FromSlash(key))
	if full != absBase && !strings.HasPrefix(full, absBase+string(filepath.Separator)) {
		return "", ErrOutsideBaseDir
	}
	return full, nil
}
