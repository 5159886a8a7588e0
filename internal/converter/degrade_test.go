package converter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegradeToOriginal(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	require.NoError(t, storage.PutBytes(ctx, store, "uploads/input-1-x.avi", []byte("raw")))

	d := NewDegradeToOriginal(store)
	d.now = func() time.Time { return time.UnixMilli(42) }

	src := Source{Key: "uploads/input-1-x.avi", OriginalName: "my clip.avi", Size: 3}
	chain := NewChain(&fakeEngine{name: "FFmpeg", err: errors.New("missing")}, d)
	out, err := chain.Convert(ctx, src, Request{Format: "mp4"})
	require.NoError(t, err)

	assert.True(t, out.Degraded)
	assert.Equal(t, DegradeNote, out.Note)
	assert.Equal(t, "Original (AVI)", out.Format)
	assert.Equal(t, "Local fallback", out.ConvertedBy)
	assert.Equal(t, "converted/"+out.Filename, out.Key)
	assert.Equal(t, int64(3), out.Size)

	data, err := storage.ReadAll(ctx, store, out.Key)
	require.NoError(t, err)
	assert.Equal(t, "raw", string(data))

	ok, _ := store.Exists(ctx, src.Key)
	assert.True(t, ok)

	res := NewResult(src, out, "/api/download/")
	assert.Equal(t, "Original (AVI)", res.Format)
	assert.Equal(t, "/api/download/"+out.Filename, res.DownloadURL)
	assert.True(t, res.Success)
}

func TestNewResultRemoteOutput(t *testing.T) {
	res := NewResult(Source{OriginalName: "a.mov"}, &Output{
		URL: "https://hosted/a.mp4", Filename: "a.mp4", Format: "mp4", ConvertedBy: "CloudConvert",
	}, "/api/download/")
	assert.Equal(t, "https://hosted/a.mp4", res.DownloadURL)
	assert.Equal(t, "MP4", res.Format)
}

func TestNewFailureListsEngines(t *testing.T) {
	chain := NewChain(&fakeEngine{name: "Local", err: errors.New("bad")}, &fakeEngine{name: "CloudConvert", err: errors.New("quota")})
	src := Source{OriginalName: "x.png"}
	_, err := chain.Convert(context.Background(), src, Request{Format: "webp"})

	f := NewFailure(src, err)
	assert.Equal(t, []string{"Local", "CloudConvert"}, f.Tried)
	assert.Equal(t, "x.png", f.OriginalName)
}

func TestServiceChains(t *testing.T) {
	origLook := LookPath
	LookPath = func(string) (string, error) { return "", errors.New("not found") }
	defer func() { LookPath = origLook }()

	store := storage.NewMemoryBackend()
	svc := NewService(store, Settings{})
	assert.Equal(t, []string{"Local"}, svc.ChainFor(KindImage).Engines())
	assert.Equal(t, []string{"Local fallback"}, svc.ChainFor(KindVideo).Engines())

	svc = NewService(store, Settings{CloudConvert: CloudConvertConfig{APIKey: "k"}, ForceFFmpeg: true})
	assert.Equal(t, []string{"Local", "CloudConvert"}, svc.Images.Engines())
	assert.Equal(t, []string{"CloudConvert", "FFmpeg", "Local fallback"}, svc.ChainFor(KindAudio).Engines())
}

func TestDegradeSameNameSameMillisecond(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	require.NoError(t, storage.PutBytes(ctx, store, "uploads/input-1-a.mp4", []byte("aaaa")))
	require.NoError(t, storage.PutBytes(ctx, store, "uploads/input-2-b.mp4", []byte("bbbbbbbb")))

	d := NewDegradeToOriginal(store)
	d.now = func() time.Time { return time.UnixMilli(42) }

	first, err := d.Convert(ctx, Source{Key: "uploads/input-1-a.mp4", OriginalName: "clip.mp4"}, Request{Format: "webm"})
	require.NoError(t, err)
	second, err := d.Convert(ctx, Source{Key: "uploads/input-2-b.mp4", OriginalName: "clip.mp4"}, Request{Format: "webm"})
	require.NoError(t, err)
	require.NotEqual(t, first.Key, second.Key)

	data, err := storage.ReadAll(ctx, store, first.Key)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(data))
}
