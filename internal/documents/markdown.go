package documents

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Metadata is read from "key: value" frontmatter between --- fences.
type Metadata struct {
	Title       string
	Author      string
	Description string
	Date        string
}

// Markdown is rendered Markdown.
type Markdown struct {
	HTML     string
	Metadata Metadata
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
		extension.TaskList,
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		gmhtml.WithHardWraps(),
		gmhtml.WithXHTML(),
	),
)

// RenderMarkdown converts Markdown to an XHTML fragment.
func RenderMarkdown(src string) (*Markdown, error) {
	meta, body := splitFrontmatter(src)

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return &Markdown{HTML: buf.String(), Metadata: meta}, nil
}

// TextToHTML turns plain text into paragraphs, one per blank-line separated
// block. Text is escaped, never interpreted as Markdown.
func TextToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(lines[i])
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br/>"))
		b.WriteString("</p>\n")
	}
	return b.String()
}

func splitFrontmatter(src string) (Metadata, string) {
	var meta Metadata
	if !strings.HasPrefix(strings.TrimLeft(src, " \t\r\n"), "---") {
		return meta, src
	}

	lines := strings.Split(src, "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			start = i
			break
		}
	}
	if start == -1 {
		return meta, src
	}
	end := -1
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return meta, src
	}

	for _, line := range lines[start+1 : end] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "title":
			meta.Title = value
		case "author":
			meta.Author = value
		case "description":
			meta.Description = value
		case "date":
			meta.Date = value
		}
	}
	return meta, strings.Join(lines[end+1:], "\n")
}
