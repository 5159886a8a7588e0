// Package pdfprocessor provides PDF manipulation utilities
package pdfprocessor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rmitchellscott/creativeforge/internal/logging"
)

func init() {
	// pdfcpu otherwise creates a config dir under the user's home.
	api.DisableConfigDir()
}

// ErrInvalidRange is returned for page ranges outside the document.
var ErrInvalidRange = errors.New("invalid page range")

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in a PDF file.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF page count: %w", err)
	}
	return n, nil
}

// Merge concatenates inputs in order into outputPath and returns the page
// count of the result.
func Merge(inputs []string, outputPath string) (int, error) {
	if len(inputs) < 2 {
		return 0, fmt.Errorf("merge needs at least 2 files, got %d", len(inputs))
	}
	if err := api.MergeCreateFile(inputs, outputPath, false, configuration()); err != nil {
		return 0, fmt.Errorf("failed to merge PDFs: %w", err)
	}
	pages, err := PageCount(outputPath)
	if err != nil {
		return 0, err
	}
	logging.Logf("[PDFPROCESSOR] Merged %d files into %d pages", len(inputs), pages)
	return pages, nil
}

// Range is an inclusive, 1-based page range.
type Range struct {
	From int
	To   int
}

func (r Range) String() string {
	if r.From == r.To {
		return strconv.Itoa(r.From)
	}
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// Resolve fills a zero To with the last page and checks the range against
// the document.
func (r Range) Resolve(total int) (Range, error) {
	if r.From == 0 {
		r.From = 1
	}
	if r.To == 0 {
		r.To = total
	}
	if r.From < 1 || r.To < r.From || r.To > total {
		return r, fmt.Errorf("%w: %d-%d of %d pages", ErrInvalidRange, r.From, r.To, total)
	}
	return r, nil
}

// Extract writes the pages of r from inputPath to outputPath.
func Extract(inputPath, outputPath string, r Range) error {
	if err := api.TrimFile(inputPath, outputPath, []string{r.String()}, configuration()); err != nil {
		return fmt.Errorf("failed to extract pages %s: %w", r, err)
	}
	return nil
}

// SplitPages writes every page of inputPath to its own file in outDir, named
// by name(page). It returns the paths in page order.
func SplitPages(inputPath, outDir string, name func(page int) string) ([]string, error) {
	total, err := PageCount(inputPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	paths := make([]string, 0, total)
	for page := 1; page <= total; page++ {
		out := filepath.Join(outDir, name(page))
		if err := Extract(inputPath, out, Range{From: page, To: page}); err != nil {
			return nil, err
		}
		paths = append(paths, out)
	}
	logging.Logf("[PDFPROCESSOR] Split %s into %d pages", filepath.Base(inputPath), total)
	return paths, nil
}
