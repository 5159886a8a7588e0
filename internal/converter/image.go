package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rmitchellscott/creativeforge/internal/storage"

	_ "golang.org/x/image/webp"
)

// ImageEngine converts raster images in process. Formats the Go encoders
// cannot write (webp, avif, heif) are piped through ImageMagick.
type ImageEngine struct {
	store storage.Backend
	// Magick is the ImageMagick binary, "convert" or "magick".
	Magick string
	now    func() time.Time
}

func NewImageEngine(store storage.Backend, magick string) *ImageEngine {
	if magick == "" {
		magick = "convert"
	}
	return &ImageEngine{store: store, Magick: magick, now: time.Now}
}

func (e *ImageEngine) Name() string { return "Local" }

func (e *ImageEngine) Convert(ctx context.Context, src Source, req Request) (*Output, error) {
	if kind, ok := KindOf(req.Format); !ok || kind != KindImage {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, req.Format)
	}
	opts := req.Options.Normalize()

	data, err := storage.ReadAll(ctx, e.store, src.Key)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	img, err := e.decode(ctx, data)
	if err != nil {
		return nil, err
	}

	img = Resize(img, opts)
	if opts.Enhance {
		img = Enhance(img)
	}

	encoded, err := e.encode(ctx, img, req.Format, opts.Quality)
	if err != nil {
		return nil, err
	}

	filename := storage.OutputName("converted", e.now(), src.OriginalName, req.Format)
	key := storage.Join(storage.PrefixConverted, filename)
	if err := storage.PutBytes(ctx, e.store, key, encoded); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}

	b := img.Bounds()
	return &Output{
		Key:         key,
		Filename:    filename,
		Size:        int64(len(encoded)),
		Format:      req.Format,
		Dimensions:  fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		ConvertedBy: e.Name(),
	}, nil
}

// decode handles the formats registered with image (including webp). Anything
// else, such as HEIC from phones, is first rasterised by ImageMagick.
func (e *ImageEngine) decode(ctx context.Context, data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	if !available(e.Magick) {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	pngData, merr := run(ctx, bytes.NewReader(data), e.Magick, "-", "png:-")
	if merr != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return imaging.Decode(bytes.NewReader(pngData))
}

func (e *ImageEngine) encode(ctx context.Context, img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "jpg", "jpeg":
		err := imaging.Encode(&buf, flatten(img), imaging.JPEG, imaging.JPEGQuality(quality))
		return buf.Bytes(), err
	case "png":
		err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(PNGCompression(quality)))
		return buf.Bytes(), err
	case "gif":
		err := imaging.Encode(&buf, img, imaging.GIF)
		return buf.Bytes(), err
	case "bmp":
		err := imaging.Encode(&buf, img, imaging.BMP)
		return buf.Bytes(), err
	case "tiff":
		err := imaging.Encode(&buf, img, imaging.TIFF)
		return buf.Bytes(), err
	case "webp", "avif", "heif":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return run(ctx, &buf, e.Magick, "png:-", "-quality", strconv.Itoa(quality), format+":-")
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
}

// PNGCompression maps quality onto a zlib level: level = round((100-q)/10),
// bucketed into the levels image/png exposes.
func PNGCompression(quality int) png.CompressionLevel {
	level := (100 - quality + 5) / 10
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// Resize applies width/height with the requested fit. With only one
// dimension the aspect ratio is kept and fit is irrelevant.
func Resize(img image.Image, opts Options) image.Image {
	w, h := opts.Width, opts.Height
	switch {
	case w == 0 && h == 0:
		return img
	case w == 0 || h == 0:
		return imaging.Resize(img, w, h, imaging.Lanczos)
	}

	switch opts.Fit {
	case FitContain:
		fitted := imaging.Fit(img, w, h, imaging.Lanczos)
		canvas := imaging.New(w, h, color.NRGBA{})
		return imaging.PasteCenter(canvas, fitted)
	case FitFill:
		return imaging.Resize(img, w, h, imaging.Lanczos)
	default:
		return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
	}
}

// Enhance sharpens, stretches the tonal range, and lifts brightness by 5%
// and saturation by 10%.
func Enhance(img image.Image) image.Image {
	out := imaging.Sharpen(img, 0.5)
	out = normalizeLevels(out)
	out = imaging.AdjustBrightness(out, 5)
	return imaging.AdjustSaturation(out, 10)
}

// normalizeLevels stretches luminance so the darkest pixel maps to 0 and the
// brightest to 255.
func normalizeLevels(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		if img.Pix[i+3] == 0 {
			continue
		}
		l := luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		if l < lo {
			lo = l
		}
		if l > hi {
			hi = l
		}
	}
	if hi <= lo || (lo == 0 && hi == 255) {
		return img
	}

	scale := 255 / float64(hi-lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: stretch(c.R, lo, scale), G: stretch(c.G, lo, scale), B: stretch(c.B, lo, scale), A: c.A}
	})
}

func luma(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

func stretch(v, lo uint8, scale float64) uint8 {
	f := (float64(v) - float64(lo)) * scale
	switch {
	case f < 0:
		return 0
	case f > 255:
		return 255
	}
	return uint8(f + 0.5)
}

// flatten composites onto white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
