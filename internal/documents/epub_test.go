package documents

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rmitchellscott/creativeforge/internal/downloader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubImages struct {
	calls []string
}

func (s *stubImages) FetchImage(ctx context.Context, url string) (*downloader.Payload, error) {
	s.calls = append(s.calls, url)
	if strings.Contains(url, "missing") {
		return nil, errors.New("404")
	}
	var buf bytes.Buffer
	png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)))
	return &downloader.Payload{Data: buf.Bytes(), MIME: "image/png", Ext: ".png"}, nil
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = string(data)
	}
	return out
}

func TestBuildEPUBEmbedsImages(t *testing.T) {
	out := filepath.Join(t.TempDir(), "doc.epub")
	images := &stubImages{}
	body := `<p>Intro</p><img src="https://img.example/a.png"/><img src='https://img.example/missing.png'/><img src="local.png"/>`

	err := BuildEPUB(context.Background(), body, out, EPUBOptions{Title: "Doc"}, images)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/a.png", "https://img.example/missing.png"}, images.calls)

	files := readZip(t, out)
	var section string
	var embedded bool
	for name, content := range files {
		if strings.Contains(name, "images/img_") {
			embedded = true
		}
		if strings.Contains(content, "Intro") {
			section = content
		}
	}
	assert.True(t, embedded)
	require.NotEmpty(t, section)
	assert.NotContains(t, section, "https://img.example/a.png")
	assert.Contains(t, section, "https://img.example/missing.png")
}

func TestImageSources(t *testing.T) {
	got := imageSources(`<IMG SRC="a.png"><img alt="x" src='b.jpg' /><img src=c.png><img src="">`)
	assert.Equal(t, []string{"a.png", "b.jpg"}, got)
}
