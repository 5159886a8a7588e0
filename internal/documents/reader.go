package documents

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
)

// Article is the readable content of an HTML page.
type Article struct {
	Title   string
	Byline  string
	Excerpt string
	HTML    string
	Text    string
}

// ExtractArticle strips navigation, scripts and other clutter from an HTML
// document. base resolves relative links and may be nil.
func ExtractArticle(r io.Reader, base *url.URL) (*Article, error) {
	if base == nil {
		base, _ = url.Parse("http://localhost/")
	}
	article, err := readability.FromReader(r, base)
	if err != nil {
		return nil, fmt.Errorf("readability extraction failed: %w", err)
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := article.RenderHTML(&htmlBuf); err != nil {
		return nil, fmt.Errorf("failed to render article HTML: %w", err)
	}
	if err := article.RenderText(&textBuf); err != nil {
		return nil, fmt.Errorf("failed to render article text: %w", err)
	}

	return &Article{
		Title:   article.Title(),
		Byline:  article.Byline(),
		Excerpt: article.Excerpt(),
		HTML:    htmlBuf.String(),
		Text:    strings.TrimSpace(textBuf.String()),
	}, nil
}
