package converter

import (
	"context"
	"testing"

	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFmpegArgs(t *testing.T) {
	t.Run("mp4 uses x264 with tier preset", func(t *testing.T) {
		args := FFmpegArgs("in.mov", "out.mp4", KindVideo, Request{Format: "mp4", Options: Options{Tier: TierHigh, Width: 641}})
		assert.Equal(t, []string{
			"-hide_banner", "-y", "-i", "in.mov",
			"-c:v", "libx264", "-preset", "slow", "-crf", "20",
			"-vf", "scale=640:-2",
			"-movflags", "+faststart", "-pix_fmt", "yuv420p",
			"-c:a", "aac", "-b:a", "192k",
			"out.mp4",
		}, args)
	})

	t.Run("webm uses vp9 constant quality", func(t *testing.T) {
		args := FFmpegArgs("in.mp4", "out.webm", KindVideo, Request{Format: "webm"})
		assert.Contains(t, args, "libvpx-vp9")
		assert.Contains(t, args, "31")
		assert.Contains(t, args, "libopus")
	})

	t.Run("audio drops video and wav takes no bitrate", func(t *testing.T) {
		args := FFmpegArgs("in.mp3", "out.wav", KindAudio, Request{Format: "wav"})
		assert.Equal(t, []string{"-hide_banner", "-y", "-i", "in.mp3", "-vn", "-c:a", "pcm_s16le", "out.wav"}, args)
	})

	t.Run("low tier mp3", func(t *testing.T) {
		args := FFmpegArgs("in.wav", "out.mp3", KindAudio, Request{Format: "mp3", Options: Options{Tier: TierLow}})
		assert.Equal(t, "96k", args[len(args)-2])
	})
}

func TestMediaEngineConvert(t *testing.T) {
	var calls [][]string
	fakeExec(t, &calls)

	ctx := context.Background()
	store := storage.NewMemoryBackend()
	require.NoError(t, storage.PutBytes(ctx, store, "uploads/input-1-abc.mov", []byte("movie")))

	e := NewMediaEngine(store)
	assert.True(t, e.Available())

	out, err := e.Convert(ctx, Source{Key: "uploads/input-1-abc.mov", OriginalName: "clip.mov"}, Request{Format: "mp4"})
	require.NoError(t, err)
	assert.Equal(t, "FFmpeg", out.ConvertedBy)
	assert.Equal(t, 12.5, out.Duration)
	assert.Equal(t, int64(len("transcoded-media")), out.Size)

	data, err := storage.ReadAll(ctx, store, out.Key)
	require.NoError(t, err)
	assert.Equal(t, "transcoded-media", string(data))

	require.Len(t, calls, 2)
	assert.Equal(t, "ffmpeg", calls[0][0])
	assert.Equal(t, "ffprobe", calls[1][0])
}

func TestMediaEngineFailure(t *testing.T) {
	fakeExec(t, nil)

	ctx := context.Background()
	store := storage.NewMemoryBackend()
	require.NoError(t, storage.PutBytes(ctx, store, "uploads/a.wav", []byte("audio")))

	e := NewMediaEngine(store)
	e.FFmpeg = "broken"
	_, err := e.Convert(ctx, Source{Key: "uploads/a.wav", OriginalName: "a.wav"}, Request{Format: "mp3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = e.Convert(ctx, Source{Key: "uploads/a.wav"}, Request{Format: "png"})
	assert.ErrorIs(t, err, ErrUnsupported)
}
