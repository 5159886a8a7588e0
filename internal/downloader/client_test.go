package downloader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFetchImage(t *testing.T) {
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	}))
	defer srv.Close()

	p, err := New(time.Second).FetchImage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MIME)
	assert.Equal(t, ".png", p.Ext)
	assert.Equal(t, data, p.Data)
}

func TestFetchImageRejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>rate limited</body></html>"))
	}))
	defer srv.Close()

	_, err := New(time.Second).FetchImage(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, ErrUnexpectedType), err)
}

func TestFetchStatusAndLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write(bytes.Repeat([]byte("a"), 64))
	}))
	defer srv.Close()

	c := New(time.Second, WithMaxBytes(16))
	_, err := c.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)

	_, err = c.Fetch(context.Background(), srv.URL+"/big")
	assert.True(t, errors.Is(err, ErrTooLarge), err)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := New(50 * time.Millisecond).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetchHonoursURLPolicy(t *testing.T) {
	c := New(time.Second, WithURLPolicy(security.URLPolicy{BlockPrivateIPs: true}))
	_, err := c.Fetch(context.Background(), "http://127.0.0.1:1/x")
	assert.True(t, errors.Is(err, security.ErrPrivateIP), err)
}
