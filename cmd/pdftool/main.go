package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rmitchellscott/creativeforge/internal/compressor"
	"github.com/rmitchellscott/creativeforge/internal/pdfprocessor"
)

const usage = `Usage:
  pdftool pages <input.pdf>
  pdftool merge <output.pdf> <input.pdf> <input.pdf> [...]
  pdftool split <input.pdf> [outdir]
  pdftool extract <input.pdf> <from> <to> [output.pdf]
  pdftool compress <input.pdf> [/screen|/ebook|/printer]`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("missing arguments\n%s", usage)
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "pages":
		n, err := pdfprocessor.PageCount(rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, n)

	case "merge":
		if len(rest) < 3 {
			return fmt.Errorf("merge needs an output and at least 2 inputs\n%s", usage)
		}
		pages, err := pdfprocessor.Merge(rest[1:], rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Merged %d file(s) into %s (%d pages)\n", len(rest)-1, rest[0], pages)

	case "split":
		input := rest[0]
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		outDir := filepath.Dir(input)
		if len(rest) > 1 {
			outDir = rest[1]
		}
		paths, err := pdfprocessor.SplitPages(input, outDir, func(page int) string {
			return fmt.Sprintf("%s_page_%d.pdf", base, page)
		})
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(stdout, p)
		}

	case "extract":
		if len(rest) < 3 {
			return fmt.Errorf("extract needs a page range\n%s", usage)
		}
		from, err1 := strconv.Atoi(rest[1])
		to, err2 := strconv.Atoi(rest[2])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("page numbers must be integers")
		}
		input := rest[0]
		total, err := pdfprocessor.PageCount(input)
		if err != nil {
			return err
		}
		r, err := pdfprocessor.Range{From: from, To: to}.Resolve(total)
		if err != nil {
			return err
		}
		output := strings.TrimSuffix(input, filepath.Ext(input)) + fmt.Sprintf("_pages_%s.pdf", r)
		if len(rest) > 3 {
			output = rest[3]
		}
		if err := pdfprocessor.Extract(input, output, r); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Output saved to: %s\n", output)

	case "compress":
		settings := ""
		if len(rest) > 1 {
			settings = rest[1]
		}
		if !compressor.ValidSettings(settings) {
			return fmt.Errorf("unknown preset %q", settings)
		}
		res, err := compressor.CompressPDF(ctx, rest[0], settings)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Output saved to: %s (%.0f%% smaller)\n", res.Path, res.Ratio()*100)

	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}
