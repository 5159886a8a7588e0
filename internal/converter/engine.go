package converter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/logging"
)

// Kind groups target formats by the engines able to produce them.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

var (
	imageFormats = []string{"jpeg", "jpg", "png", "webp", "gif", "bmp", "tiff", "avif", "heif"}
	videoFormats = []string{"mp4", "webm", "avi", "mov", "wmv", "flv", "3gp", "mkv"}
	audioFormats = []string{"mp3", "wav", "aac", "ogg", "flac", "m4a", "opus"}
)

// Formats lists the supported target formats per kind.
func Formats() map[Kind][]string {
	return map[Kind][]string{KindImage: imageFormats, KindVideo: videoFormats, KindAudio: audioFormats}
}

// KindOf classifies a target format.
func KindOf(format string) (Kind, bool) {
	format = strings.ToLower(format)
	for kind, list := range Formats() {
		for _, f := range list {
			if f == format {
				return kind, true
			}
		}
	}
	return "", false
}

// Fit modes for resizing to an exact box.
const (
	FitCover   = "cover"
	FitContain = "contain"
	FitFill    = "fill"
)

// Quality tiers for audio and video.
const (
	TierLow    = "low"
	TierMedium = "medium"
	TierHigh   = "high"
	TierUltra  = "ultra"
)

// Options are the knobs shared by every engine. Engines ignore options that
// do not apply to them.
type Options struct {
	Quality int
	Width   int
	Height  int
	Fit     string
	Enhance bool
	Tier    string
}

// Normalize clamps quality to 10..100 (default 90) and fills defaults.
func (o Options) Normalize() Options {
	switch {
	case o.Quality == 0:
		o.Quality = 90
	case o.Quality < 10:
		o.Quality = 10
	case o.Quality > 100:
		o.Quality = 100
	}
	if o.Width < 0 {
		o.Width = 0
	}
	if o.Height < 0 {
		o.Height = 0
	}
	switch o.Fit {
	case FitCover, FitContain, FitFill:
	default:
		o.Fit = FitCover
	}
	switch o.Tier {
	case TierLow, TierMedium, TierHigh, TierUltra:
	default:
		o.Tier = TierMedium
	}
	return o
}

// Request is one conversion of one source into Format.
type Request struct {
	Format  string
	Options Options
}

// Source is a stored input.
type Source struct {
	Key          string
	OriginalName string
	MIME         string
	Size         int64
}

// Output describes what an engine produced. Exactly one of Key (stored
// locally) or URL (hosted by a remote service) is set.
type Output struct {
	Key         string
	URL         string
	Filename    string
	Size        int64
	Format      string
	Dimensions  string
	Duration    float64
	ConvertedBy string
	// Degraded marks the original file handed back unconverted.
	Degraded bool
	Note     string
}

// Engine converts one source. Engines must not delete the source.
type Engine interface {
	Name() string
	Convert(ctx context.Context, src Source, req Request) (*Output, error)
}

// Attempt records one engine invocation.
type Attempt struct {
	Engine   string
	Err      error
	Duration time.Duration
}

// ConversionError is returned when every engine in a chain failed.
type ConversionError struct {
	Source   string
	Attempts []Attempt
}

func (e *ConversionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Engine, a.Err))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("conversion of %s failed: no engine available", e.Source)
	}
	return fmt.Sprintf("conversion of %s failed: %s", e.Source, strings.Join(parts, "; "))
}

// Unwrap exposes the last engine error.
func (e *ConversionError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// ErrUnsupported is returned by engines asked for a format they cannot
// produce. Chains treat it like any other failure.
var ErrUnsupported = errors.New("unsupported format")

// Chain tries engines in a fixed order and returns the first success.
type Chain struct {
	engines []Engine
	// OnAttempt, when set, observes every engine invocation.
	OnAttempt func(Attempt)
}

func NewChain(engines ...Engine) *Chain {
	var list []Engine
	for _, e := range engines {
		if e != nil {
			list = append(list, e)
		}
	}
	return &Chain{engines: list}
}

// Engines returns the engine names in order.
func (c *Chain) Engines() []string {
	names := make([]string, 0, len(c.engines))
	for _, e := range c.engines {
		names = append(names, e.Name())
	}
	return names
}

// Convert runs the chain. A cancelled context stops the chain between
// engines.
func (c *Chain) Convert(ctx context.Context, src Source, req Request) (*Output, error) {
	req.Options = req.Options.Normalize()
	req.Format = strings.ToLower(req.Format)

	cerr := &ConversionError{Source: src.OriginalName}
	for _, e := range c.engines {
		if err := ctx.Err(); err != nil {
			cerr.Attempts = append(cerr.Attempts, Attempt{Engine: e.Name(), Err: err})
			break
		}

		start := time.Now()
		out, err := e.Convert(ctx, src, req)
		a := Attempt{Engine: e.Name(), Err: err, Duration: time.Since(start)}
		if c.OnAttempt != nil {
			c.OnAttempt(a)
		}
		if err == nil {
			return out, nil
		}
		logging.Warnf("[CONVERT] %s could not convert %s to %s: %v", e.Name(), src.OriginalName, req.Format, err)
		cerr.Attempts = append(cerr.Attempts, a)
	}
	return nil, cerr
}
