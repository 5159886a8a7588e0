package compressor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rmitchellscott/creativeforge/internal/config"
	"github.com/rmitchellscott/creativeforge/internal/logging"
)

// ExecCommand is exec.CommandContext by default, but can be overridden in tests.
var ExecCommand = exec.CommandContext

// Result describes one compression.
type Result struct {
	Path           string
	OriginalSize   int64
	CompressedSize int64
}

// Ratio is the fraction of bytes saved, 0 when nothing was gained.
func (r Result) Ratio() float64 {
	if r.OriginalSize == 0 || r.CompressedSize >= r.OriginalSize {
		return 0
	}
	return 1 - float64(r.CompressedSize)/float64(r.OriginalSize)
}

// CompressPDF invokes Ghostscript with GS_COMPAT and GS_SETTINGS env vars.
// settings overrides GS_SETTINGS when non-empty (e.g. "/screen").
func CompressPDF(ctx context.Context, path, settings string) (*Result, error) {
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	out := fmt.Sprintf("%s_compressed%s", base, ext)
	compat := config.Get("GS_COMPAT", "1.4")
	if settings == "" {
		settings = config.Get("GS_SETTINGS", "/ebook")
	}
	args := []string{
		"gs", "-sDEVICE=pdfwrite",
		fmt.Sprintf("-dCompatibilityLevel=%s", compat),
		fmt.Sprintf("-dPDFSETTINGS=%s", settings),
		"-dNOPAUSE", "-dQUIET", "-dBATCH",
		fmt.Sprintf("-sOutputFile=%s", out),
		path,
	}
	cmd := ExecCommand(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ghostscript failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	in, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	res, err := os.Stat(out)
	if err != nil {
		return nil, fmt.Errorf("ghostscript produced no output: %w", err)
	}
	logging.Logf("[COMPRESS] %s: %d -> %d bytes", filepath.Base(path), in.Size(), res.Size())
	return &Result{Path: out, OriginalSize: in.Size(), CompressedSize: res.Size()}, nil
}

// ValidSettings reports whether s is a Ghostscript PDFSETTINGS preset.
func ValidSettings(s string) bool {
	switch s {
	case "", "/screen", "/ebook", "/printer", "/prepress", "/default":
		return true
	}
	return false
}
