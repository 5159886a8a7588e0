package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/config"
	"github.com/rmitchellscott/creativeforge/internal/jobs"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/storage"
)

// ErrEmptyPrompt is returned for blank prompts.
var ErrEmptyPrompt = errors.New("prompt is required")

// Attempt records one provider invocation.
type Attempt struct {
	Provider string
	Err      error
	Duration time.Duration
}

// ExhaustedError is returned when every provider failed. With a placeholder
// at the end of the chain this only happens on cancellation or store errors.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return "all image generation services failed: " + strings.Join(parts, "; ")
}

// Result is a stored generated image.
type Result struct {
	Key      string
	Filename string
	Service  string
	Prompt   string
	Size     int64
}

// Chain tries providers strictly in order and stores the first image.
type Chain struct {
	providers []Provider
	store     storage.Backend
	now       func() time.Time
	// OnAttempt, when set, observes every provider invocation.
	OnAttempt func(Attempt)
}

func NewChain(store storage.Backend, providers ...Provider) *Chain {
	var list []Provider
	for _, p := range providers {
		if p != nil {
			list = append(list, p)
		}
	}
	return &Chain{providers: list, store: store, now: time.Now}
}

// NewChainFromConfig builds the standard chain, leaving out providers named
// in DISABLED_PROVIDERS. The placeholder is always kept.
func NewChainFromConfig(store storage.Backend, cfg *config.Config) *Chain {
	var providers []Provider
	add := func(name string, p Provider) {
		if name != Placeholder && cfg.ProviderDisabled(name) {
			logging.Logf("[GENERATE] Provider %s disabled", name)
			return
		}
		providers = append(providers, p)
	}
	add(Pollinations, NewPollinations(cfg.PollinationsURL))
	add(StableHorde, NewStableHorde(cfg.StableHordeURL, cfg.StableHordeAPIKey, cfg.StableHordePollInterval, cfg.StableHordeMaxPolls))
	add(DalleMini, NewDalleMini(cfg.DalleMiniURL))
	add(Placeholder, NewPlaceholder(cfg.PlaceholderURL))
	return NewChain(store, providers...)
}

// Providers returns the provider names in order.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Generate runs the chain for prompt and stores the winning image under
// generated/<service>_<unixms>-<rand><ext>. Progress goes to t, which may be nil.
func (c *Chain) Generate(ctx context.Context, prompt string, t *jobs.Tracker) (*Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if r := []rune(prompt); len(r) > MaxPromptLength {
		prompt = string(r[:MaxPromptLength])
	}

	exhausted := &ExhaustedError{}
	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			exhausted.Attempts = append(exhausted.Attempts, Attempt{Provider: p.Name(), Err: err})
			break
		}
		t.Stage(p.Name(), fmt.Sprintf("Trying %s", DisplayName(p.Name())), progressFor(i, len(c.providers)))
		logging.Logf("[GENERATE] Attempting %s...", p.Name())

		start := time.Now()
		img, err := p.Generate(ctx, prompt)
		if err == nil && !strings.HasPrefix(img.MIME, "image/") {
			err = fmt.Errorf("%w: %s", ErrNotImage, img.MIME)
		}
		a := Attempt{Provider: p.Name(), Err: err, Duration: time.Since(start)}
		if c.OnAttempt != nil {
			c.OnAttempt(a)
		}
		if err != nil {
			logging.Warnf("[GENERATE] %s failed: %v", p.Name(), err)
			exhausted.Attempts = append(exhausted.Attempts, a)
			continue
		}

		t.Stage("storing", "Saving image", 90)
		res, err := c.save(ctx, p.Name(), prompt, img)
		if err != nil {
			t.Fail(err.Error())
			return nil, err
		}
		t.Succeed(fmt.Sprintf("Image generated successfully using %s!", res.Service), map[string]string{
			"filename": res.Filename,
			"service":  res.Service,
		})
		return res, nil
	}

	t.Fail(exhausted.Error())
	return nil, exhausted
}

func (c *Chain) save(ctx context.Context, service, prompt string, img *Image) (*Result, error) {
	ext := img.Ext
	if ext == "" {
		ext = ".png"
	}
	filename := fmt.Sprintf("%s_%s%s", service, storage.Stamp(c.now()), ext)
	key := storage.Join(storage.PrefixGenerated, filename)
	if err := storage.PutBytes(ctx, c.store, key, img.Data); err != nil {
		return nil, fmt.Errorf("failed to store generated image: %w", err)
	}
	logging.Logf("[GENERATE] %s image saved as %s", service, filename)
	return &Result{Key: key, Filename: filename, Service: service, Prompt: prompt, Size: int64(len(img.Data))}, nil
}

// progressFor spreads provider attempts over 10..80%.
func progressFor(i, n int) int {
	if n <= 1 {
		return 10
	}
	return 10 + i*70/(n-1)
}
