package downloader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/rmitchellscott/creativeforge/internal/config"
	"github.com/rmitchellscott/creativeforge/internal/security"
)

// DefaultMaxBytes caps a single remote fetch.
const DefaultMaxBytes = 100 << 20

var (
	ErrTooLarge       = errors.New("remote file exceeds size limit")
	ErrUnexpectedType = errors.New("remote file has unexpected content type")
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// PickUA returns a browser-like User-Agent. Some image hosts refuse the Go
// default.
func PickUA() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Payload is a fully buffered remote object.
type Payload struct {
	Data []byte
	MIME string
	// Ext includes the leading dot, e.g. ".png".
	Ext string
}

// Client fetches remote results (provider images, converted exports).
type Client struct {
	http     *resty.Client
	maxBytes int64
	policy   *security.URLPolicy
}

// Option customises a Client.
type Option func(*Client)

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(c *Client) { c.maxBytes = n }
}

// WithURLPolicy rejects destinations the policy forbids.
func WithURLPolicy(p security.URLPolicy) Option {
	return func(c *Client) { c.policy = &p }
}

// New builds a Client with the given per-request timeout.
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:     resty.New().SetTimeout(timeout).SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)),
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromEnv reads DOWNLOAD_TIMEOUT (default 60s).
func NewFromEnv(opts ...Option) *Client {
	return New(config.GetDuration("DOWNLOAD_TIMEOUT", 60*time.Second), opts...)
}

// Fetch downloads url into memory and sniffs its content type.
func (c *Client) Fetch(ctx context.Context, url string) (*Payload, error) {
	if c.policy != nil {
		if err := c.policy.Validate(url); err != nil {
			return nil, fmt.Errorf("URL validation failed: %w", err)
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("User-Agent", PickUA()).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status())
	}
	if resp.RawResponse.ContentLength > c.maxBytes {
		return nil, ErrTooLarge
	}

	data, err := readLimited(body, c.maxBytes)
	if err != nil {
		return nil, err
	}

	mt := mimetype.Detect(data)
	return &Payload{Data: data, MIME: mt.String(), Ext: mt.Extension()}, nil
}

// FetchImage is Fetch restricted to image/* payloads.
func (c *Client) FetchImage(ctx context.Context, url string) (*Payload, error) {
	p, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if !IsImage(p.MIME) {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedType, p.MIME)
	}
	return p, nil
}

// IsImage reports whether a sniffed MIME type is a raster or vector image.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}
