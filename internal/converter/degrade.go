package converter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/security"
	"github.com/rmitchellscott/creativeforge/internal/storage"
)

// DegradeNote accompanies every degraded result.
const DegradeNote = "Conversion unavailable - original file available for download"

// DegradeToOriginal is the terminal engine of the audio/video chain: it hands
// the untouched original back under converted/ and never fails unless the
// store does.
type DegradeToOriginal struct {
	store storage.Backend
	now   func() time.Time
}

func NewDegradeToOriginal(store storage.Backend) *DegradeToOriginal {
	return &DegradeToOriginal{store: store, now: time.Now}
}

func (d *DegradeToOriginal) Name() string { return "Local fallback" }

func (d *DegradeToOriginal) Convert(ctx context.Context, src Source, req Request) (*Output, error) {
	filename := fmt.Sprintf("original-%s-%s", storage.Stamp(d.now()), security.SanitizeUploadName(src.OriginalName))
	key := storage.Join(storage.PrefixConverted, filename)
	if err := d.store.Copy(ctx, src.Key, key); err != nil {
		return nil, fmt.Errorf("keep original: %w", err)
	}

	ext := strings.ToUpper(storage.Ext(src.OriginalName))
	if ext == "" {
		ext = "UNKNOWN"
	}
	return &Output{
		Key:         key,
		Filename:    filename,
		Size:        src.Size,
		Format:      fmt.Sprintf("Original (%s)", ext),
		ConvertedBy: d.Name(),
		Degraded:    true,
		Note:        DegradeNote,
	}, nil
}
