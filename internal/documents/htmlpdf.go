package documents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rmitchellscott/creativeforge/internal/logging"
)

// PDFOptions contains options for PDF generation
type PDFOptions struct {
	Title string
	// PageSize is A4, Letter, Legal or "<w>x<h>" in points.
	PageSize string
	Mutool   string
}

// PageDimensions returns width and height in points; unknown sizes are A4.
func PageDimensions(pageSize string) (int, int) {
	if w, h, ok := strings.Cut(strings.ToLower(pageSize), "x"); ok {
		wi, err1 := strconv.Atoi(w)
		hi, err2 := strconv.Atoi(h)
		if err1 == nil && err2 == nil && wi > 0 && hi > 0 {
			return wi, hi
		}
	}
	switch strings.ToUpper(pageSize) {
	case "LETTER":
		return 612, 792
	case "LEGAL":
		return 612, 1008
	default:
		return 595, 842
	}
}

// HTMLToPDF lays out an HTML fragment as a PDF: the fragment becomes an
// EPUB, which mutool then renders.
func HTMLToPDF(ctx context.Context, body, outputPath string, opts PDFOptions, images ImageFetcher) error {
	tmp, err := os.MkdirTemp("", "htmlpdf-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	epubPath := filepath.Join(tmp, "document.epub")
	if err := BuildEPUB(ctx, body, epubPath, EPUBOptions{Title: opts.Title}, images); err != nil {
		return fmt.Errorf("failed to generate EPUB: %w", err)
	}

	mutool := opts.Mutool
	if mutool == "" {
		mutool = "mutool"
	}
	w, h := PageDimensions(opts.PageSize)
	_, err = run(ctx, mutool, "convert",
		"-W", strconv.Itoa(w),
		"-H", strconv.Itoa(h),
		"-F", "pdf",
		"-o", outputPath,
		epubPath,
	)
	if err != nil {
		return err
	}
	logging.Logf("[HTMLPDF] Rendered %s (%dx%dpt)", filepath.Base(outputPath), w, h)
	return nil
}
