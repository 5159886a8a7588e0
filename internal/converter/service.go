package converter

import (
	"strings"

	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/storage"
)

// Settings selects which engines are wired into the chains.
type Settings struct {
	CloudConvert CloudConvertConfig
	// ForceFFmpeg wires the ffmpeg engine even when it is not on PATH.
	ForceFFmpeg bool
	Magick      string
}

// Service owns one chain per kind of media.
//
// Images: Local, then CloudConvert when configured. There is no degrade step;
// an image nobody could convert is reported as failed.
// Audio/video: CloudConvert when configured, then FFmpeg when present, then
// DegradeToOriginal.
type Service struct {
	Images *Chain
	Media  *Chain
}

func NewService(store storage.Backend, s Settings) *Service {
	var remote Engine
	if s.CloudConvert.APIKey != "" {
		remote = NewCloudConvertEngine(store, s.CloudConvert)
	}

	var local Engine
	media := NewMediaEngine(store)
	if s.ForceFFmpeg || media.Available() {
		local = media
	}

	svc := &Service{
		Images: NewChain(NewImageEngine(store, s.Magick), remote),
		Media:  NewChain(remote, local, NewDegradeToOriginal(store)),
	}
	logging.Logf("[CONVERT] Image chain: %s", strings.Join(svc.Images.Engines(), " -> "))
	logging.Logf("[CONVERT] Media chain: %s", strings.Join(svc.Media.Engines(), " -> "))
	return svc
}

// ChainFor returns the chain for a kind.
func (s *Service) ChainFor(kind Kind) *Chain {
	if kind == KindImage {
		return s.Images
	}
	return s.Media
}

// Result is the per-file JSON body returned by the convert endpoints.
type Result struct {
	OriginalName string  `json:"originalName"`
	Filename     string  `json:"filename"`
	DownloadURL  string  `json:"downloadUrl"`
	FileSize     int64   `json:"fileSize"`
	Format       string  `json:"format"`
	Dimensions   string  `json:"dimensions,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	Success      bool    `json:"success"`
	Note         string  `json:"note,omitempty"`
	ConvertedBy  string  `json:"convertedBy"`
}

// NewResult renders an Output. Locally stored outputs are served from
// downloadBase + filename; remote outputs keep their hosted URL.
func NewResult(src Source, out *Output, downloadBase string) Result {
	r := Result{
		OriginalName: src.OriginalName,
		Filename:     out.Filename,
		DownloadURL:  out.URL,
		FileSize:     out.Size,
		Format:       out.Format,
		Dimensions:   out.Dimensions,
		Duration:     out.Duration,
		Success:      true,
		Note:         out.Note,
		ConvertedBy:  out.ConvertedBy,
	}
	if out.Key != "" {
		r.DownloadURL = downloadBase + out.Filename
	}
	if !out.Degraded {
		r.Format = strings.ToUpper(out.Format)
	}
	return r
}

// Failure is reported for files no engine could convert.
type Failure struct {
	OriginalName string   `json:"originalName"`
	Error        string   `json:"error"`
	Tried        []string `json:"tried,omitempty"`
}

func NewFailure(src Source, err error) Failure {
	f := Failure{OriginalName: src.OriginalName, Error: err.Error()}
	if cerr, ok := err.(*ConversionError); ok {
		for _, a := range cerr.Attempts {
			f.Tried = append(f.Tried, a.Engine)
		}
	}
	return f
}
