// Package generator turns text prompts into images by walking a fixed list
// of hosted providers, ending with a placeholder that cannot fail.
package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rmitchellscott/creativeforge/internal/downloader"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Provider names, also persisted as GeneratedImage.Service.
const (
	Pollinations = "pollinations"
	StableHorde  = "stablehorde"
	DalleMini    = "dallemini"
	Placeholder  = "placeholder"
)

// Order is the fixed priority of the chain.
var Order = []string{Pollinations, StableHorde, DalleMini, Placeholder}

// MaxPromptLength bounds prompts accepted for generation.
const MaxPromptLength = 1000

// Image is one generated picture.
type Image struct {
	Data []byte
	MIME string
	// Ext includes the leading dot.
	Ext string
}

// Provider is one image generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (*Image, error)
}

// ErrNotImage is returned when a provider answers with something other than
// an image, typically an HTML error page with status 200.
var ErrNotImage = errors.New("provider returned non-image content")

// asImage sniffs data and rejects anything that is not image/*.
func asImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrNotImage)
	}
	mime, ext := downloader.Sniff(data)
	if !downloader.IsImage(mime) {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mime)
	}
	return &Image{Data: data, MIME: mime, Ext: ext}, nil
}

func fromPayload(p *downloader.Payload) *Image {
	return &Image{Data: p.Data, MIME: p.MIME, Ext: p.Ext}
}

var titleCaser = cases.Title(language.English)

// DisplayName renders a provider name for messages, e.g. "Stablehorde".
func DisplayName(service string) string {
	switch service {
	case DalleMini:
		return "DALL·E Mini"
	case StableHorde:
		return "Stable Horde"
	}
	return titleCaser.String(service)
}
