package qr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/skip2/go-qrcode"
	"github.com/vincent-petithory/dataurl"
)

const (
	DownloadBase = "/api/qr/download/"
	MinSize      = 64
	MaxSize      = 2048
	DefaultSize  = 512
	MaxBatch     = 50
)

// Content types.
const (
	TypeText     = "text"
	TypeURL      = "url"
	TypeEmail    = "email"
	TypePhone    = "phone"
	TypeSMS      = "sms"
	TypeWiFi     = "wifi"
	TypeVCard    = "vcard"
	TypeLocation = "location"
)

var ErrEmptyContent = errors.New("content is required for QR code generation")

// InputError is a request the caller must fix.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

// Options controls rendering.
type Options struct {
	Size            int    `json:"size"`
	ErrorCorrection string `json:"errorCorrectionLevel"`
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
	// Margin of zero drops the quiet zone; any other value keeps the
	// standard four-module border.
	Margin *int `json:"margin,omitempty"`
}

func (o Options) normalize() Options {
	if o.Size == 0 {
		o.Size = DefaultSize
	}
	if o.Size < MinSize {
		o.Size = MinSize
	}
	if o.Size > MaxSize {
		o.Size = MaxSize
	}
	o.ErrorCorrection = strings.ToUpper(o.ErrorCorrection)
	if o.ErrorCorrection == "" {
		o.ErrorCorrection = "M"
	}
	if o.Color == "" {
		o.Color = "#000000"
	}
	if o.BackgroundColor == "" {
		o.BackgroundColor = "#FFFFFF"
	}
	return o
}

// RecoveryLevel maps L/M/Q/H onto go-qrcode levels.
func RecoveryLevel(level string) (qrcode.RecoveryLevel, error) {
	switch strings.ToUpper(level) {
	case "L":
		return qrcode.Low, nil
	case "M", "":
		return qrcode.Medium, nil
	case "Q":
		return qrcode.High, nil
	case "H":
		return qrcode.Highest, nil
	}
	return 0, &InputError{Message: fmt.Sprintf("Invalid error correction level: %s", level)}
}

// ParseColor accepts #rgb and #rrggbb.
func ParseColor(s string) (color.Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return nil, &InputError{Message: fmt.Sprintf("Invalid color: %s", s)}
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, &InputError{Message: fmt.Sprintf("Invalid color: %s", s)}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

type wifiContent struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	Security string `json:"security"`
}

type vcardContent struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
}

type locationContent struct {
	Latitude  json.Number `json:"latitude"`
	Longitude json.Number `json:"longitude"`
}

// Payload shapes content into the string encoded for its type. The wifi,
// vcard and location types take JSON objects.
func Payload(kind, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}

	switch kind {
	case TypeText, "":
		return content, nil
	case TypeURL:
		if !strings.HasPrefix(content, "http://") && !strings.HasPrefix(content, "https://") {
			content = "https://" + content
		}
		return content, nil
	case TypeEmail:
		return "mailto:" + content, nil
	case TypePhone:
		return "tel:" + content, nil
	case TypeSMS:
		return "sms:" + content, nil
	case TypeWiFi:
		var w wifiContent
		if err := json.Unmarshal([]byte(content), &w); err != nil {
			return "", &InputError{Message: "WiFi content must be a JSON object with ssid and password"}
		}
		if w.Security == "" {
			w.Security = "WPA"
		}
		return fmt.Sprintf("WIFI:T:%s;S:%s;P:%s;;", w.Security, escapeWiFi(w.SSID), escapeWiFi(w.Password)), nil
	case TypeVCard:
		var v vcardContent
		if err := json.Unmarshal([]byte(content), &v); err != nil {
			return "", &InputError{Message: "vCard content must be a JSON object"}
		}
		return fmt.Sprintf("BEGIN:VCARD\nVERSION:3.0\nFN:%s\nTEL:%s\nEMAIL:%s\nORG:%s\nEND:VCARD",
			v.Name, v.Phone, v.Email, v.Organization), nil
	case TypeLocation:
		var l locationContent
		if err := json.Unmarshal([]byte(content), &l); err != nil || l.Latitude == "" || l.Longitude == "" {
			return "", &InputError{Message: "Location content must be a JSON object with latitude and longitude"}
		}
		return fmt.Sprintf("geo:%s,%s", l.Latitude, l.Longitude), nil
	}
	return "", &InputError{Message: fmt.Sprintf("Unsupported QR type: %s", kind)}
}

var wifiEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, `:`, `\:`, `"`, `\"`)

func escapeWiFi(s string) string {
	return wifiEscaper.Replace(s)
}

// Render encodes payload as a PNG.
func Render(payload string, opts Options) ([]byte, error) {
	opts = opts.normalize()
	level, err := RecoveryLevel(opts.ErrorCorrection)
	if err != nil {
		return nil, err
	}
	fg, err := ParseColor(opts.Color)
	if err != nil {
		return nil, err
	}
	bg, err := ParseColor(opts.BackgroundColor)
	if err != nil {
		return nil, err
	}

	code, err := qrcode.New(payload, level)
	if err != nil {
		return nil, &InputError{Message: fmt.Sprintf("Content cannot be encoded: %v", err)}
	}
	code.ForegroundColor = fg
	code.BackgroundColor = bg
	code.DisableBorder = opts.Margin != nil && *opts.Margin == 0

	var buf bytes.Buffer
	if err := code.Write(opts.Size, &buf); err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	return buf.Bytes(), nil
}

// Result is one generated code.
type Result struct {
	QRCode      string  `json:"qrCode"`
	DownloadURL string  `json:"downloadUrl"`
	Filename    string  `json:"filename"`
	FileSize    int64   `json:"fileSize"`
	Content     string  `json:"content"`
	Type        string  `json:"type"`
	Options     Options `json:"options"`
}

// Service renders codes and keeps them in the blob store.
type Service struct {
	store storage.Backend
	now   func() time.Time
}

func NewService(store storage.Backend) *Service {
	return &Service{store: store, now: time.Now}
}

// Generate renders one code and stores it as qr-<ms>.png.
func (s *Service) Generate(ctx context.Context, kind, content string, opts Options) (*Result, error) {
	payload, err := Payload(kind, content)
	if err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("qr-%s.png", storage.Stamp(s.now()))
	return s.save(ctx, payload, kind, filename, opts)
}

func (s *Service) save(ctx context.Context, payload, kind, filename string, opts Options) (*Result, error) {
	opts = opts.normalize()
	png, err := Render(payload, opts)
	if err != nil {
		return nil, err
	}
	if err := storage.PutBytes(ctx, s.store, storage.Join(storage.PrefixQRCodes, filename), png); err != nil {
		return nil, fmt.Errorf("failed to store QR code: %w", err)
	}
	if kind == "" {
		kind = TypeText
	}
	logging.Logf("[QR] Generated %s (%s, %d bytes)", filename, kind, len(png))
	return &Result{
		QRCode:      dataurl.New(png, "image/png").String(),
		DownloadURL: DownloadBase + filename,
		Filename:    filename,
		FileSize:    int64(len(png)),
		Content:     payload,
		Type:        kind,
		Options:     opts,
	}, nil
}

// BatchItem is one entry of a batch request.
type BatchItem struct {
	Content string `json:"content"`
	Label   string `json:"label"`
}

// BatchResult is a rendered batch entry.
type BatchResult struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	*Result
}

// BatchError is a failed batch entry.
type BatchError struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

// Batch renders every item as plain text. Failed items are reported without
// aborting the batch.
func (s *Service) Batch(ctx context.Context, items []BatchItem, opts Options) ([]BatchResult, []BatchError, error) {
	if len(items) == 0 {
		return nil, nil, &InputError{Message: "Items array is required for batch generation"}
	}
	if len(items) > MaxBatch {
		return nil, nil, &InputError{Message: fmt.Sprintf("Too many items (max %d)", MaxBatch)}
	}

	stamp := storage.Stamp(s.now())
	var results []BatchResult
	var failures []BatchError
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return results, failures, err
		}
		label := item.Label
		if label == "" {
			label = fmt.Sprintf("QR Code %d", i+1)
		}

		payload, err := Payload(TypeText, item.Content)
		var res *Result
		if err == nil {
			res, err = s.save(ctx, payload, TypeText, fmt.Sprintf("batch-qr-%d-%s.png", i+1, stamp), opts)
		}
		if err != nil {
			failures = append(failures, BatchError{Index: i, Content: item.Content, Error: err.Error()})
			continue
		}
		results = append(results, BatchResult{Index: i, Label: label, Result: res})
	}
	return results, failures, nil
}
