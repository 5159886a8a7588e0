package documents

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmaupin/go-epub"
	"github.com/rmitchellscott/creativeforge/internal/downloader"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/vincent-petithory/dataurl"
)

// EPUBOptions contains options for EPUB generation
type EPUBOptions struct {
	Title       string
	Author      string
	Description string
	Language    string
	CSS         string
}

const defaultCSS = `
body { font-family: Georgia, serif; line-height: 1.6; margin: 1em; color: #000; }
h1, h2, h3, h4 { font-family: Helvetica, Arial, sans-serif; margin: 1.4em 0 0.5em; }
p { margin: 0.6em 0; }
img { max-width: 100%; height: auto; }
pre, code { font-family: monospace; background: #f4f4f4; }
pre { padding: 10px; white-space: pre-wrap; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #999; padding: 6px; text-align: left; }
blockquote { border-left: 4px solid #ccc; padding-left: 1em; margin-left: 0; }
`

// ImageFetcher resolves remote images referenced by a document.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (*downloader.Payload, error)
}

// BuildEPUB writes an EPUB to outputPath with body as its single section.
// Absolute image URLs are fetched and embedded when images is non-nil; an
// image that cannot be fetched is left as a remote reference.
func BuildEPUB(ctx context.Context, body, outputPath string, opts EPUBOptions, images ImageFetcher) error {
	title := opts.Title
	if title == "" {
		title = "Document"
	}
	e := epub.NewEpub(title)
	if opts.Author != "" {
		e.SetAuthor(opts.Author)
	}
	if opts.Description != "" {
		e.SetDescription(opts.Description)
	}
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	e.SetLang(lang)

	css := opts.CSS
	if css == "" {
		css = defaultCSS
	}
	// go-epub reads resources from a path, URL or data URL, never raw content.
	cssPath, err := e.AddCSS(dataurl.New([]byte(css), "text/css").String(), "styles.css")
	if err != nil {
		return fmt.Errorf("failed to add CSS: %w", err)
	}

	if images != nil {
		body = embedImages(ctx, e, body, images)
	}

	if _, err := e.AddSection(body, title, "", cssPath); err != nil {
		return fmt.Errorf("failed to add section: %w", err)
	}
	if err := e.Write(outputPath); err != nil {
		return fmt.Errorf("failed to write EPUB: %w", err)
	}
	return nil
}

func embedImages(ctx context.Context, e *epub.Epub, body string, images ImageFetcher) string {
	for _, src := range imageSources(body) {
		if strings.HasPrefix(src, "data:") {
			continue
		}
		u, err := url.Parse(src)
		if err != nil || !u.IsAbs() {
			continue
		}

		payload, err := images.FetchImage(ctx, src)
		if err != nil {
			logging.Warnf("[EPUB] Skipping image %q: %v", src, err)
			continue
		}
		sum := md5.Sum([]byte(src))
		name := fmt.Sprintf("img_%x%s", sum[:8], payload.Ext)
		internal, err := e.AddImage(dataurl.New(payload.Data, payload.MIME).String(), name)
		if err != nil {
			logging.Warnf("[EPUB] Failed to embed image %q: %v", src, err)
			continue
		}
		body = strings.ReplaceAll(body, src, internal)
	}
	return body
}

// imageSources lists the src attribute of every <img> tag.
func imageSources(html string) []string {
	var out []string
	lower := strings.ToLower(html)
	pos := 0
	for {
		i := strings.Index(lower[pos:], "<img")
		if i == -1 {
			break
		}
		start := pos + i
		end := strings.Index(lower[start:], ">")
		if end == -1 {
			break
		}
		end += start
		tag := html[start:end]

		if s := strings.Index(strings.ToLower(tag), "src="); s != -1 && s+4 < len(tag) {
			s += 4
			quote := tag[s]
			if quote == '"' || quote == '\'' {
				if e := strings.IndexByte(tag[s+1:], quote); e > 0 {
					out = append(out, tag[s+1:s+1+e])
				}
			}
		}
		pos = end + 1
	}
	return out
}
