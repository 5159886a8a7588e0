package generator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/config"
	"github.com/rmitchellscott/creativeforge/internal/jobs"
	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

type fakeProvider struct {
	name    string
	err     error
	img     *Image
	prompts []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (*Image, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func TestChainFallsThroughInOrder(t *testing.T) {
	store := storage.NewMemoryBackend()
	first := &fakeProvider{name: Pollinations, err: errors.New("timeout")}
	second := &fakeProvider{name: StableHorde, img: &Image{Data: []byte("html"), MIME: "text/html", Ext: ".html"}}
	third := &fakeProvider{name: DalleMini, img: &Image{Data: pngBytes(t), MIME: "image/png", Ext: ".png"}}
	last := &fakeProvider{name: Placeholder}

	chain := NewChain(store, first, second, third, last)
	chain.now = func() time.Time { return time.UnixMilli(1700000000123) }
	var seen []string
	chain.OnAttempt = func(a Attempt) { seen = append(seen, a.Provider) }

	res, err := chain.Generate(context.Background(), "  a red fox  ", nil)
	require.NoError(t, err)
	assert.Equal(t, DalleMini, res.Service)
	assert.Regexp(t, `^dallemini_1700000000123-[0-9a-f]{8}\.png$`, res.Filename)
	assert.Equal(t, "generated/"+res.Filename, res.Key)
	assert.Equal(t, "a red fox", res.Prompt)
	assert.Equal(t, []string{Pollinations, StableHorde, DalleMini}, seen)
	assert.Empty(t, last.prompts)

	ok, _ := store.Exists(context.Background(), res.Key)
	assert.True(t, ok)
}

func TestChainPlaceholderAlwaysWins(t *testing.T) {
	store := storage.NewMemoryBackend()
	failing := []Provider{
		&fakeProvider{name: Pollinations, err: errors.New("down")},
		&fakeProvider{name: StableHorde, err: errors.New("down")},
		&fakeProvider{name: DalleMini, err: errors.New("down")},
	}
	chain := NewChain(store, append(failing, NewPlaceholder(""))...)

	res, err := chain.Generate(context.Background(), "sunset", nil)
	require.NoError(t, err)
	assert.Equal(t, Placeholder, res.Service)
	assert.True(t, strings.HasSuffix(res.Filename, ".png"))
}

func TestChainExhausted(t *testing.T) {
	chain := NewChain(storage.NewMemoryBackend(), &fakeProvider{name: Pollinations, err: errors.New("down")})
	_, err := chain.Generate(context.Background(), "x", nil)

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	require.Len(t, ex.Attempts, 1)
	assert.Contains(t, err.Error(), "pollinations: down")
}

func TestChainRejectsEmptyPrompt(t *testing.T) {
	chain := NewChain(storage.NewMemoryBackend(), NewPlaceholder(""))
	_, err := chain.Generate(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestChainTruncatesLongPrompt(t *testing.T) {
	p := &fakeProvider{name: Pollinations, img: &Image{Data: pngBytes(t), MIME: "image/png", Ext: ".png"}}
	chain := NewChain(storage.NewMemoryBackend(), p)
	res, err := chain.Generate(context.Background(), strings.Repeat("x", MaxPromptLength+50), nil)
	require.NoError(t, err)
	assert.Len(t, res.Prompt, MaxPromptLength)
	assert.Len(t, p.prompts[0], MaxPromptLength)
}

func TestChainReportsProgress(t *testing.T) {
	js := jobs.NewStore()
	tracker := js.Track("req-1", "generate")
	chain := NewChain(storage.NewMemoryBackend(),
		&fakeProvider{name: Pollinations, err: errors.New("down")},
		NewPlaceholder(""))

	_, err := chain.Generate(context.Background(), "lake", tracker)
	require.NoError(t, err)

	job, ok := js.Get("req-1")
	require.True(t, ok)
	assert.Equal(t, jobs.StatusSuccess, job.Status)
	assert.Equal(t, Placeholder, job.Data["service"])
	assert.Equal(t, 100, job.Progress)
}

func TestChainStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{name: Pollinations}
	_, err := NewChain(storage.NewMemoryBackend(), p).Generate(ctx, "x", nil)
	assert.Error(t, err)
	assert.Empty(t, p.prompts)
}

func TestNewChainFromConfig(t *testing.T) {
	cfg := &config.Config{DisabledProviders: []string{StableHorde, Placeholder}}
	chain := NewChainFromConfig(storage.NewMemoryBackend(), cfg)
	assert.Equal(t, []string{Pollinations, DalleMini, Placeholder}, chain.Providers())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Pollinations", DisplayName(Pollinations))
	assert.Equal(t, "Placeholder", DisplayName(Placeholder))
	assert.Equal(t, "Stable Horde", DisplayName(StableHorde))
}

func TestProgressFor(t *testing.T) {
	assert.Equal(t, 10, progressFor(0, 4))
	assert.Equal(t, 80, progressFor(3, 4))
	assert.Equal(t, 10, progressFor(0, 1))
}

func decodePNG(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}
