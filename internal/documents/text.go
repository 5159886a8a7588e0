package documents

import (
	"context"
	"strings"
	"unicode/utf8"
)

const previewLength = 1000

// TextStats summarises extracted text.
type TextStats struct {
	Preview        string
	WordCount      int
	CharacterCount int
}

// Stats counts words (whitespace separated) and characters (runes) and cuts
// a preview of at most 1000 characters, marked with "..." when truncated.
func Stats(text string) TextStats {
	s := TextStats{
		WordCount:      len(strings.Fields(text)),
		CharacterCount: utf8.RuneCountInString(text),
		Preview:        text,
	}
	if s.CharacterCount > previewLength {
		s.Preview = string([]rune(text)[:previewLength]) + "..."
	}
	return s
}

// PDFText extracts the text layer of a PDF with poppler's pdftotext.
func PDFText(ctx context.Context, pdftotext, path string) (string, error) {
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	out, err := run(ctx, pdftotext, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
