package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	return map[string]Backend{
		"filesystem": NewFilesystemBackend(t.TempDir()),
		"memory":     NewMemoryBackend(),
	}
}

func TestBackendContract(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, b.Put(ctx, "converted/a.png", strings.NewReader("png-bytes")))
			require.NoError(t, b.Put(ctx, "converted/b.mp4", strings.NewReader("mp4")))
			require.NoError(t, b.Put(ctx, "documents/c.pdf", strings.NewReader("pdf")))

			ok, err := b.Exists(ctx, "converted/a.png")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = b.Exists(ctx, "converted/missing.png")
			require.NoError(t, err)
			assert.False(t, ok)

			r, err := b.Get(ctx, "converted/a.png")
			require.NoError(t, err)
			data, _ := io.ReadAll(r)
			r.Close()
			assert.Equal(t, "png-bytes", string(data))

			_, err = b.Get(ctx, "converted/missing.png")
			assert.True(t, errors.Is(err, ErrNotFound))

			keys, err := b.List(ctx, PrefixConverted)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"converted/a.png", "converted/b.mp4"}, keys)

			infos, err := b.ListWithInfo(ctx, "converted/a")
			require.NoError(t, err)
			require.Len(t, infos, 1)
			assert.Equal(t, int64(9), infos[0].Size)
			assert.False(t, infos[0].LastModified.IsZero())

			require.NoError(t, b.Copy(ctx, "converted/a.png", "converted/copy.png"))
			info, err := b.GetInfo(ctx, "converted/copy.png")
			require.NoError(t, err)
			assert.Equal(t, int64(9), info.Size)

			assert.Error(t, b.Copy(ctx, "converted/none.png", "converted/x.png"))

			require.NoError(t, b.Delete(ctx, "converted/a.png"))
			require.NoError(t, b.Delete(ctx, "converted/a.png"))
			_, err = b.GetInfo(ctx, "converted/a.png")
			assert.True(t, errors.Is(err, ErrNotFound))

			keys, err = b.List(ctx, "qr-codes/")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestBackendRejectsTraversal(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := b.Put(context.Background(), "../escape.txt", strings.NewReader("x"))
			assert.Error(t, err)
		})
	}
}

func TestPutReplacesExisting(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, PutBytes(ctx, b, "uploads/x.txt", []byte("one")))
			require.NoError(t, PutBytes(ctx, b, "uploads/x.txt", []byte("two")))

			data, err := ReadAll(ctx, b, "uploads/x.txt")
			require.NoError(t, err)
			assert.Equal(t, "two", string(data))
		})
	}
}

func TestCleanupPrefixAndTotalSize(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, PutBytes(ctx, b, "uploads/1", []byte("12345")))
	require.NoError(t, PutBytes(ctx, b, "uploads/2", []byte("123")))
	require.NoError(t, PutBytes(ctx, b, "converted/3", []byte("1")))

	total, err := TotalSize(ctx, b, "")
	require.NoError(t, err)
	assert.Equal(t, int64(9), total)

	n, err := CleanupPrefix(ctx, b, PrefixUploads)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, _ := b.List(ctx, "")
	assert.Equal(t, []string{"converted/3"}, keys)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, Options{Backend: "memory"}.Validate())
	assert.NoError(t, Options{Backend: "filesystem", DataDir: "/tmp"}.Validate())
	assert.Error(t, Options{Backend: "filesystem"}.Validate())
	assert.Error(t, Options{Backend: "s3", S3Region: "us-east-1"}.Validate())
	assert.NoError(t, Options{Backend: "s3", S3Bucket: "b", S3Region: "us-east-1"}.Validate())
	assert.Error(t, Options{Backend: "ftp"}.Validate())
}

func TestNewMemory(t *testing.T) {
	b, err := New(context.Background(), Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)
}
