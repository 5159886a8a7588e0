package generator

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/png"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rmitchellscott/creativeforge/internal/downloader"
	"github.com/rmitchellscott/creativeforge/internal/logging"
)

const placeholderSize = 1024

// PlaceholderProvider produces a solid image whose colour is derived from
// the prompt. It fetches a labelled placeholder when the service is up and
// renders one locally otherwise, so Generate only fails if the context does.
type PlaceholderProvider struct {
	BaseURL string
	client  *downloader.Client
}

func NewPlaceholder(baseURL string) *PlaceholderProvider {
	return &PlaceholderProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  downloader.New(15 * time.Second),
	}
}

func (p *PlaceholderProvider) Name() string { return Placeholder }

// PromptColor hashes a prompt to a 24-bit RGB value as "rrggbb".
func PromptColor(prompt string) string {
	h := int32(0)
	for _, c := range prompt {
		h = ((h << 5) - h + int32(c)) & 0xffffff
	}
	return fmt.Sprintf("%06x", h)
}

func (p *PlaceholderProvider) Generate(ctx context.Context, prompt string) (*Image, error) {
	hex := PromptColor(prompt)
	if p.BaseURL != "" {
		label := []rune(prompt)
		if len(label) > 30 {
			label = label[:30]
		}
		u := fmt.Sprintf("%s/%dx%d/%s/ffffff?text=%s", p.BaseURL, placeholderSize, placeholderSize, hex, url.QueryEscape(string(label)))
		payload, err := p.client.FetchImage(ctx, u)
		if err == nil {
			return fromPayload(payload), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Warnf("[GENERATE] Placeholder service unavailable, rendering locally: %v", err)
	}
	return renderSolid(hex)
}

func renderSolid(hex string) (*Image, error) {
	var r, g, b uint8
	fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	img := imaging.New(placeholderSize, placeholderSize, color.NRGBA{R: r, G: g, B: b, A: 255})

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("placeholder: %w", err)
	}
	return &Image{Data: buf.Bytes(), MIME: "image/png", Ext: ".png"}, nil
}
