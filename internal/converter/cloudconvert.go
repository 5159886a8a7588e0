package converter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/storage"
)

// CloudConvertConfig configures the hosted conversion engine.
type CloudConvertConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
	Timeout      time.Duration
}

// CloudConvertEngine runs conversions on cloudconvert.com. The result stays
// hosted there; Output.URL points at the export.
type CloudConvertEngine struct {
	store  storage.Backend
	client *resty.Client
	cfg    CloudConvertConfig
}

func NewCloudConvertEngine(store storage.Backend, cfg CloudConvertConfig) *CloudConvertEngine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloudconvert.com/v2"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 60
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &CloudConvertEngine{store: store, client: client, cfg: cfg}
}

func (e *CloudConvertEngine) Name() string { return "CloudConvert" }

type ccTask struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Result    struct {
		Form *struct {
			URL        string            `json:"url"`
			Parameters map[string]string `json:"parameters"`
		} `json:"form"`
		Files []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
			Size     int64  `json:"size"`
		} `json:"files"`
	} `json:"result"`
}

type ccJob struct {
	Data struct {
		ID     string   `json:"id"`
		Status string   `json:"status"`
		Tasks  []ccTask `json:"tasks"`
	} `json:"data"`
}

func (j *ccJob) task(name string) *ccTask {
	for i := range j.Data.Tasks {
		if j.Data.Tasks[i].Name == name {
			return &j.Data.Tasks[i]
		}
	}
	return nil
}

var errCloudConvertFailed = errors.New("cloudconvert job failed")

func (e *CloudConvertEngine) Convert(ctx context.Context, src Source, req Request) (*Output, error) {
	if e.cfg.APIKey == "" {
		return nil, errors.New("cloudconvert API key not configured")
	}
	kind, ok := KindOf(req.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, req.Format)
	}

	job, err := e.createJob(ctx, kind, req)
	if err != nil {
		return nil, err
	}
	if err := e.upload(ctx, job, src); err != nil {
		return nil, err
	}

	done, err := e.wait(ctx, job.Data.ID)
	if err != nil {
		return nil, err
	}

	export := done.task("export-file")
	if export == nil || len(export.Result.Files) == 0 {
		return nil, fmt.Errorf("%w: export produced no files", errCloudConvertFailed)
	}
	file := export.Result.Files[0]
	logging.Logf("[CONVERT] CloudConvert job %s finished: %s", job.Data.ID, file.Filename)

	return &Output{
		URL:         file.URL,
		Filename:    file.Filename,
		Size:        file.Size,
		Format:      req.Format,
		ConvertedBy: e.Name(),
	}, nil
}

func (e *CloudConvertEngine) createJob(ctx context.Context, kind Kind, req Request) (*ccJob, error) {
	opts := req.Options.Normalize()
	convert := map[string]interface{}{
		"operation":     "convert",
		"input":         "import-file",
		"output_format": req.Format,
	}
	switch kind {
	case KindImage:
		convert["quality"] = opts.Quality
		if opts.Width > 0 {
			convert["width"] = opts.Width
		}
		if opts.Height > 0 {
			convert["height"] = opts.Height
		}
	case KindVideo:
		convert["crf"] = tiers[opts.Tier].crf
		if opts.Width > 0 {
			convert["width"] = opts.Width
		}
		if opts.Height > 0 {
			convert["height"] = opts.Height
		}
	case KindAudio:
		convert["audio_bitrate"] = strings.TrimSuffix(tiers[opts.Tier].audio, "k")
	}

	body := map[string]interface{}{
		"tasks": map[string]interface{}{
			"import-file":  map[string]interface{}{"operation": "import/upload"},
			"convert-file": convert,
			"export-file":  map[string]interface{}{"operation": "export/url", "input": "convert-file"},
		},
	}

	var job ccJob
	resp, err := e.client.R().SetContext(ctx).SetBody(body).ExpectContentType("application/json").SetResult(&job).Post("/jobs")
	if err != nil {
		return nil, fmt.Errorf("create cloudconvert job: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create cloudconvert job: status %s: %s", resp.Status(), truncate(resp.String(), 300))
	}
	return &job, nil
}

func (e *CloudConvertEngine) upload(ctx context.Context, job *ccJob, src Source) error {
	imp := job.task("import-file")
	if imp == nil || imp.Result.Form == nil {
		return fmt.Errorf("%w: no upload form in job", errCloudConvertFailed)
	}

	r, err := e.store.Get(ctx, src.Key)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	defer r.Close()

	// The upload form URL is absolute and must not carry our bearer token.
	resp, err := resty.New().SetTimeout(e.cfg.Timeout*5).R().
		SetContext(ctx).
		SetMultipartFormData(imp.Result.Form.Parameters).
		SetMultipartField("file", storage.Filename(src.OriginalName), src.MIME, r).
		Post(imp.Result.Form.URL)
	if err != nil {
		return fmt.Errorf("upload to cloudconvert: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("upload to cloudconvert: status %s", resp.Status())
	}
	return nil
}

func (e *CloudConvertEngine) wait(ctx context.Context, id string) (*ccJob, error) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for i := 0; i < e.cfg.MaxPolls; i++ {
		var job ccJob
		resp, err := e.client.R().SetContext(ctx).ExpectContentType("application/json").SetResult(&job).Get("/jobs/" + id)
		if err != nil {
			return nil, fmt.Errorf("poll cloudconvert job: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("poll cloudconvert job: status %s", resp.Status())
		}

		switch job.Data.Status {
		case "finished":
			return &job, nil
		case "error":
			msg := "unknown error"
			for _, t := range job.Data.Tasks {
				if t.Status == "error" && t.Message != "" {
					msg = t.Message
					break
				}
			}
			return nil, fmt.Errorf("%w: %s", errCloudConvertFailed, msg)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, fmt.Errorf("%w: timed out after %d polls", errCloudConvertFailed, e.cfg.MaxPolls)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
