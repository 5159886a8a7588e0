package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vincent-petithory/dataurl"
)

// DalleMiniProvider calls a hosted DALL·E Mini endpoint that answers with
// base64 images, sometimes wrapped as data URLs.
type DalleMiniProvider struct {
	client *resty.Client
}

func NewDalleMini(baseURL string) *DalleMiniProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(45 * time.Second)
	return &DalleMiniProvider{client: client}
}

func (p *DalleMiniProvider) Name() string { return DalleMini }

type dalleResponse struct {
	Images []string `json:"images"`
}

func (p *DalleMiniProvider) Generate(ctx context.Context, prompt string) (*Image, error) {
	var out dalleResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"prompt": prompt}).
		ExpectContentType("application/json").
		SetResult(&out).
		Post("/generate")
	if err != nil {
		return nil, fmt.Errorf("dallemini: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("dallemini: status %s", resp.Status())
	}
	if len(out.Images) == 0 {
		return nil, errors.New("dallemini: no images returned")
	}

	data, err := decodeImageString(out.Images[0])
	if err != nil {
		return nil, fmt.Errorf("dallemini: %w", err)
	}
	return asImage(data)
}

func decodeImageString(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		du, err := dataurl.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return du.Data, nil
	}
	// Some deployments strip padding or use the URL alphabet.
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, errors.New("image is neither base64 nor a data URL")
}
