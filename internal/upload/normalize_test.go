package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct {
	field, name, body string
}

func multipartRequest(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.name == "" {
			require.NoError(t, mw.WriteField(p.field, p.body))
			continue
		}
		fw, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestNormalizeStrategies(t *testing.T) {
	tests := []struct {
		name     string
		parts    []part
		strategy string
		count    int
	}{
		{"files field", []part{{"files", "a.txt", "a"}, {"files", "b.txt", "b"}}, "files", 2},
		{"files brackets", []part{{"files[]", "a.txt", "a"}}, "files", 1},
		{"single file", []part{{"file", "a.txt", "a"}}, "file", 1},
		{"arbitrary field", []part{{"upload", "a.txt", "a"}, {"other", "b.txt", "b"}}, "any", 2},
		{"files beats file", []part{{"file", "a.txt", "a"}, {"files", "b.txt", "b"}}, "files", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryBackend()
			n := NewNormalizer(store, Options{})

			batch, err := n.Normalize(httptest.NewRecorder(), multipartRequest(t, tt.parts...))
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, batch.Strategy)
			require.Len(t, batch.Files, tt.count)

			for _, f := range batch.Files {
				assert.True(t, strings.HasPrefix(f.Key, storage.PrefixUploads), f.Key)
				ok, _ := store.Exists(context.Background(), f.Key)
				assert.True(t, ok)
			}

			batch.Cleanup(context.Background())
			keys, _ := store.List(context.Background(), storage.PrefixUploads)
			assert.Empty(t, keys)
		})
	}
}

func TestNormalizeNoFiles(t *testing.T) {
	n := NewNormalizer(storage.NewMemoryBackend(), Options{})

	_, err := n.Normalize(httptest.NewRecorder(), multipartRequest(t, part{field: "format", body: "png"}))
	var uerr *UploadError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "No files found in request", uerr.Message)
	assert.Equal(t, []string{"files", "file", "any"}, uerr.Tried)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	_, err = n.Normalize(httptest.NewRecorder(), req)
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "No files found in request", uerr.Message)
}

func TestNormalizeLimits(t *testing.T) {
	store := storage.NewMemoryBackend()
	n := NewNormalizer(store, Options{MaxFiles: 2, MaxFileSize: 8})

	_, err := n.Normalize(httptest.NewRecorder(), multipartRequest(t,
		part{"files", "a.txt", "a"}, part{"files", "b.txt", "b"}, part{"files", "c.txt", "c"}))
	var uerr *UploadError
	require.True(t, errors.As(err, &uerr))
	assert.Contains(t, uerr.Message, "Too many files")

	_, err = n.Normalize(httptest.NewRecorder(), multipartRequest(t, part{"file", "big.txt", "0123456789"}))
	require.True(t, errors.As(err, &uerr))
	assert.Contains(t, uerr.Message, "File too large")

	keys, _ := store.List(context.Background(), "")
	assert.Empty(t, keys)
}

func TestNormalizeCapsChunkedBody(t *testing.T) {
	store := storage.NewMemoryBackend()
	n := NewNormalizer(store, Options{MaxFiles: 1, MaxFileSize: 8})

	big := multipartRequest(t, part{"file", "huge.bin", strings.Repeat("x", 2<<20)})
	body, err := io.ReadAll(big.Body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/upload", io.MultiReader(bytes.NewReader(body)))
	req.Header.Set("Content-Type", big.Header.Get("Content-Type"))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}

	_, err = n.Normalize(httptest.NewRecorder(), req)
	var uerr *UploadError
	require.True(t, errors.As(err, &uerr), "%v", err)
	assert.Contains(t, uerr.Message, "Request too large")

	keys, _ := store.List(context.Background(), "")
	assert.Empty(t, keys)
}

func TestNormalizeAcceptFilterCleansUpPartialBatch(t *testing.T) {
	store := storage.NewMemoryBackend()
	n := NewNormalizer(store, Options{Accept: AcceptDocuments})

	_, err := n.Normalize(httptest.NewRecorder(), multipartRequest(t,
		part{"files", "ok.txt", "hello"}, part{"files", "evil.exe", "MZ\x90\x00binary"}))
	var uerr *UploadError
	require.True(t, errors.As(err, &uerr))
	assert.Contains(t, uerr.Message, "evil.exe")

	keys, _ := store.List(context.Background(), "")
	assert.Empty(t, keys)
}

func TestNormalizeSniffsMime(t *testing.T) {
	n := NewNormalizer(storage.NewMemoryBackend(), Options{})

	batch, err := n.Normalize(httptest.NewRecorder(), multipartRequest(t, part{"file", "doc.pdf", "%PDF-1.4\n%%EOF"}))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", batch.Files[0].MIME)
	assert.Equal(t, "pdf", batch.Files[0].Ext())
	assert.True(t, strings.HasSuffix(batch.Files[0].Key, ".pdf"))
}

func TestAcceptMedia(t *testing.T) {
	assert.True(t, AcceptMedia("clip.mov", "application/octet-stream"))
	assert.True(t, AcceptMedia("x", "audio/mpeg"))
	assert.False(t, AcceptMedia("x.txt", "text/plain"))
}
