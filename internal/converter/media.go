package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/storage"
)

type tierSettings struct {
	preset string
	crf    int
	audio  string
}

var tiers = map[string]tierSettings{
	TierLow:    {preset: "veryfast", crf: 32, audio: "96k"},
	TierMedium: {preset: "medium", crf: 26, audio: "128k"},
	TierHigh:   {preset: "slow", crf: 20, audio: "192k"},
	TierUltra:  {preset: "slower", crf: 16, audio: "320k"},
}

type containerCodecs struct {
	video, audio string
	// x264 style codecs take -preset and -crf; others get a bitrate.
	x264 bool
	// lossless or PCM audio takes no bitrate.
	noAudioBitrate bool
}

var codecs = map[string]containerCodecs{
	"mp4":  {video: "libx264", audio: "aac", x264: true},
	"mov":  {video: "libx264", audio: "aac", x264: true},
	"mkv":  {video: "libx264", audio: "aac", x264: true},
	"3gp":  {video: "libx264", audio: "aac", x264: true},
	"webm": {video: "libvpx-vp9", audio: "libopus"},
	"avi":  {video: "mpeg4", audio: "libmp3lame"},
	"wmv":  {video: "wmv2", audio: "wmav2"},
	"flv":  {video: "flv1", audio: "libmp3lame"},
	"mp3":  {audio: "libmp3lame"},
	"wav":  {audio: "pcm_s16le", noAudioBitrate: true},
	"flac": {audio: "flac", noAudioBitrate: true},
	"aac":  {audio: "aac"},
	"m4a":  {audio: "aac"},
	"ogg":  {audio: "libvorbis"},
	"opus": {audio: "libopus"},
}

// MediaEngine transcodes audio and video with a local ffmpeg.
type MediaEngine struct {
	store   storage.Backend
	FFmpeg  string
	FFprobe string
	now     func() time.Time
}

func NewMediaEngine(store storage.Backend) *MediaEngine {
	return &MediaEngine{store: store, FFmpeg: "ffmpeg", FFprobe: "ffprobe", now: time.Now}
}

// Available reports whether ffmpeg can be found.
func (e *MediaEngine) Available() bool {
	return available(e.FFmpeg)
}

func (e *MediaEngine) Name() string { return "FFmpeg" }

func (e *MediaEngine) Convert(ctx context.Context, src Source, req Request) (*Output, error) {
	kind, ok := KindOf(req.Format)
	if !ok || kind == KindImage {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, req.Format)
	}

	tmp, err := os.MkdirTemp("", "ffmpeg-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	in, err := storage.FetchToDir(ctx, e.store, src.Key, tmp)
	if err != nil {
		return nil, err
	}

	filename := storage.OutputName("converted", e.now(), src.OriginalName, req.Format)
	out := filepath.Join(tmp, filename)
	if _, err := run(ctx, nil, e.FFmpeg, FFmpegArgs(in, out, kind, req)...); err != nil {
		return nil, err
	}

	info, err := os.Stat(out)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg produced no output: %w", err)
	}

	key := storage.Join(storage.PrefixConverted, filename)
	if err := storage.PutFile(ctx, e.store, key, out); err != nil {
		return nil, err
	}

	return &Output{
		Key:         key,
		Filename:    filename,
		Size:        info.Size(),
		Format:      req.Format,
		Duration:    e.probeDuration(ctx, out),
		ConvertedBy: e.Name(),
	}, nil
}

// FFmpegArgs builds the ffmpeg command line for a request.
func FFmpegArgs(in, out string, kind Kind, req Request) []string {
	opts := req.Options.Normalize()
	tier := tiers[opts.Tier]
	c := codecs[strings.ToLower(req.Format)]

	args := []string{"-hide_banner", "-y", "-i", in}
	if kind == KindAudio {
		args = append(args, "-vn")
	} else {
		if c.video != "" {
			args = append(args, "-c:v", c.video)
		}
		switch {
		case c.x264:
			args = append(args, "-preset", tier.preset, "-crf", strconv.Itoa(tier.crf))
		case c.video == "libvpx-vp9":
			args = append(args, "-crf", strconv.Itoa(tier.crf+5), "-b:v", "0")
		default:
			args = append(args, "-q:v", strconv.Itoa(qscale(opts.Tier)))
		}
		if opts.Width > 0 || opts.Height > 0 {
			args = append(args, "-vf", fmt.Sprintf("scale=%s:%s", dim(opts.Width), dim(opts.Height)))
		}
		if c.x264 {
			args = append(args, "-movflags", "+faststart", "-pix_fmt", "yuv420p")
		}
	}

	if c.audio != "" {
		args = append(args, "-c:a", c.audio)
	}
	if !c.noAudioBitrate {
		args = append(args, "-b:a", tier.audio)
	}
	return append(args, out)
}

// -2 keeps the aspect ratio with an even dimension, which x264 requires.
func dim(v int) string {
	if v <= 0 {
		return "-2"
	}
	return strconv.Itoa(v - v%2)
}

func qscale(tier string) int {
	switch tier {
	case TierLow:
		return 10
	case TierHigh:
		return 3
	case TierUltra:
		return 1
	default:
		return 5
	}
}

// probeDuration returns 0 when ffprobe is missing or fails; duration is
// informational only.
func (e *MediaEngine) probeDuration(ctx context.Context, path string) float64 {
	out, err := run(ctx, nil, e.FFprobe,
		"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return d
}
