package generator

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/downloader"
)

// PollinationsProvider renders the prompt straight from a GET URL.
type PollinationsProvider struct {
	BaseURL string
	client  *downloader.Client
	seed    func() int
}

func NewPollinations(baseURL string) *PollinationsProvider {
	return &PollinationsProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  downloader.New(30 * time.Second),
		seed:    func() int { return rand.Intn(1000000) },
	}
}

func (p *PollinationsProvider) Name() string { return Pollinations }

var promptPunctuation = regexp.MustCompile(`[^\w\s]`)

// CleanPrompt replaces punctuation with spaces; the service chokes on
// slashes and query characters even when escaped.
func CleanPrompt(prompt string) string {
	return strings.TrimSpace(promptPunctuation.ReplaceAllString(prompt, " "))
}

func (p *PollinationsProvider) imageURL(prompt string) string {
	q := url.Values{}
	q.Set("width", "1024")
	q.Set("height", "1024")
	q.Set("seed", fmt.Sprint(p.seed()))
	q.Set("nologo", "true")
	q.Set("private", "true")
	return fmt.Sprintf("%s/prompt/%s?%s", p.BaseURL, url.PathEscape(CleanPrompt(prompt)), q.Encode())
}

func (p *PollinationsProvider) Generate(ctx context.Context, prompt string) (*Image, error) {
	payload, err := p.client.FetchImage(ctx, p.imageURL(prompt))
	if err != nil {
		return nil, fmt.Errorf("pollinations: %w", err)
	}
	return fromPayload(payload), nil
}
