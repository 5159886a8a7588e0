package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rmitchellscott/creativeforge/internal/downloader"
	"github.com/rmitchellscott/creativeforge/internal/logging"
)

// StableHordeProvider submits to the community Stable Horde queue and polls
// until a worker has finished.
type StableHordeProvider struct {
	client       *resty.Client
	images       *downloader.Client
	PollInterval time.Duration
	MaxPolls     int
}

func NewStableHorde(baseURL, apiKey string, interval time.Duration, maxPolls int) *StableHordeProvider {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 20
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/api/v2").
		SetTimeout(30*time.Second).
		SetHeader("apikey", apiKey).
		SetHeader("Client-Agent", "creativeforge:1:anonymous")
	return &StableHordeProvider{
		client:       client,
		images:       downloader.New(60 * time.Second),
		PollInterval: interval,
		MaxPolls:     maxPolls,
	}
}

func (p *StableHordeProvider) Name() string { return StableHorde }

type hordeSubmit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type hordeStatus struct {
	Done        bool `json:"done"`
	Faulted     bool `json:"faulted"`
	Generations []struct {
		Img string `json:"img"`
	} `json:"generations"`
}

func (p *StableHordeProvider) Generate(ctx context.Context, prompt string) (*Image, error) {
	body := map[string]interface{}{
		"prompt": prompt,
		"params": map[string]interface{}{
			"sampler_name":       "k_euler_a",
			"cfg_scale":          7.5,
			"denoising_strength": 0.75,
			"seed":               fmt.Sprint(rand.Intn(1000000)),
			"height":             1024,
			"width":              1024,
			"steps":              20,
		},
		"nsfw":            false,
		"trusted_workers": true,
		"r2":              true,
	}

	var submit hordeSubmit
	resp, err := p.client.R().SetContext(ctx).SetBody(body).ExpectContentType("application/json").SetResult(&submit).Post("/generate/async")
	if err != nil {
		return nil, fmt.Errorf("stablehorde submit: %w", err)
	}
	if resp.IsError() || submit.ID == "" {
		return nil, fmt.Errorf("stablehorde submit: status %s: %s", resp.Status(), submit.Message)
	}
	logging.Logf("[GENERATE] Stable Horde job submitted: %s", submit.ID)

	img, err := p.wait(ctx, submit.ID)
	if err != nil {
		return nil, err
	}
	return p.decode(ctx, img)
}

func (p *StableHordeProvider) wait(ctx context.Context, id string) (string, error) {
	for i := 0; i < p.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.PollInterval):
		}

		var status hordeStatus
		resp, err := p.client.R().SetContext(ctx).ExpectContentType("application/json").SetResult(&status).Get("/generate/status/" + id)
		if err != nil {
			return "", fmt.Errorf("stablehorde status: %w", err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("stablehorde status: %s", resp.Status())
		}
		if status.Faulted {
			return "", errors.New("stablehorde job faulted")
		}
		if status.Done {
			if len(status.Generations) == 0 || status.Generations[0].Img == "" {
				return "", errors.New("stablehorde returned no generations")
			}
			return status.Generations[0].Img, nil
		}
	}
	return "", fmt.Errorf("stablehorde timeout after %d polls", p.MaxPolls)
}

// decode handles both r2 download links and inline base64 results.
func (p *StableHordeProvider) decode(ctx context.Context, img string) (*Image, error) {
	if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
		payload, err := p.images.FetchImage(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("stablehorde download: %w", err)
		}
		return fromPayload(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(img)
	if err != nil {
		return nil, fmt.Errorf("stablehorde image: %w", err)
	}
	return asImage(data)
}
