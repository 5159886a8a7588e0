package documents

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/pdfprocessor"
	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/rmitchellscott/creativeforge/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, storage.Backend) {
	t.Helper()
	store := storage.NewMemoryBackend()
	svc := NewService(store, Settings{})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, store
}

func putFile(t *testing.T, store storage.Backend, key, name, mime string, data []byte) upload.File {
	t.Helper()
	require.NoError(t, storage.PutBytes(context.Background(), store, key, data))
	return upload.File{Key: key, OriginalName: name, MIME: mime, Size: int64(len(data))}
}

func storedPageCount(t *testing.T, store storage.Backend, filename string) int {
	t.Helper()
	dir := t.TempDir()
	p, err := storage.FetchToDir(context.Background(), store, storage.Join(storage.PrefixDocuments, filename), dir)
	require.NoError(t, err)
	n, err := pdfprocessor.PageCount(p)
	require.NoError(t, err)
	return n
}

func TestMergeTwoPDFs(t *testing.T) {
	svc, store := newTestService(t)
	a := putFile(t, store, "uploads/input-1-a.pdf", "a.pdf", "application/pdf", pdfprocessor.TestPDF(1))
	b := putFile(t, store, "uploads/input-2-b.pdf", "b.pdf", "application/pdf", pdfprocessor.TestPDF(1))

	res, err := svc.Merge(context.Background(), []upload.File{a, b})
	require.NoError(t, err)
	assert.Regexp(t, `^merged-1700000000000-[0-9a-f]{8}\.pdf$`, res.Filename)
	assert.Equal(t, "/api/documents/download/"+res.Filename, res.DownloadURL)
	assert.Equal(t, 2, res.PagesCount)
	assert.Equal(t, 2, storedPageCount(t, store, res.Filename))
}

func TestMergeRequiresTwoPDFs(t *testing.T) {
	svc, store := newTestService(t)
	a := putFile(t, store, "uploads/a.pdf", "a.pdf", "application/pdf", pdfprocessor.TestPDF(1))
	txt := putFile(t, store, "uploads/b.txt", "b.txt", "text/plain", []byte("hi"))

	_, err := svc.Merge(context.Background(), []upload.File{a, txt})
	var ierr *InputError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "At least 2 PDF files are required", ierr.Message)
}

func TestSplitIntoPages(t *testing.T) {
	svc, store := newTestService(t)
	f := putFile(t, store, "uploads/in.pdf", "in.pdf", "application/pdf", pdfprocessor.TestPDF(3))

	res, err := svc.Split(context.Background(), f, SplitOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, SplitPages, res.SplitType)
	require.Len(t, res.Files, 3)
	for i, sf := range res.Files {
		assert.Equal(t, i+1, sf.PageNumber)
		assert.Equal(t, 1, storedPageCount(t, store, sf.Filename))
	}
	assert.Regexp(t, `^page-2-1700000000000-[0-9a-f]{8}\.pdf$`, res.Files[1].Filename)
}

func TestSplitRange(t *testing.T) {
	svc, store := newTestService(t)
	f := putFile(t, store, "uploads/in.pdf", "in.pdf", "application/pdf", pdfprocessor.TestPDF(5))

	res, err := svc.Split(context.Background(), f, SplitOptions{Type: SplitRange, Start: 2, End: 4})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "2-4", res.Files[0].PageRange)
	assert.Regexp(t, `^split-2-4-1700000000000-[0-9a-f]{8}\.pdf$`, res.Files[0].Filename)
	assert.Equal(t, 3, storedPageCount(t, store, res.Files[0].Filename))

	_, err = svc.Split(context.Background(), f, SplitOptions{Type: SplitRange, Start: 4, End: 9})
	var ierr *InputError
	assert.True(t, errors.As(err, &ierr))
}

func TestCompressKeepsSmallerFile(t *testing.T) {
	stubTools(t)
	svc, store := newTestService(t)
	f := putFile(t, store, "uploads/big.pdf", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 100))

	res, err := svc.Compress(context.Background(), f, "/screen")
	require.NoError(t, err)
	assert.Regexp(t, `^compressed-1700000000000-[0-9a-f]{8}-big\.pdf$`, res.Filename)
	assert.Equal(t, int64(100), res.OriginalSize)
	assert.Equal(t, int64(4), res.CompressedSize)
	assert.Equal(t, 96.0, res.CompressionRatio)

	_, err = svc.Compress(context.Background(), f, "screen")
	var ierr *InputError
	assert.True(t, errors.As(err, &ierr))
}

func TestPDFToDOCX(t *testing.T) {
	stubTools(t)
	svc, store := newTestService(t)
	f := putFile(t, store, "uploads/in.pdf", "report.pdf", "application/pdf", pdfprocessor.TestPDF(1))

	res, err := svc.PDFToDOCX(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "DOCX", res.ConvertedFormat)
	assert.Regexp(t, `^document-1700000000000-[0-9a-f]{8}-report\.docx$`, res.Filename)

	data, err := storage.ReadAll(context.Background(), store, storage.Join(storage.PrefixDocuments, res.Filename))
	require.NoError(t, err)
	text, err := ReadDOCXText(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, "First line of the PDF\nSecond line & more", text)
}

func TestToPDFFromDOCX(t *testing.T) {
	stubTools(t)
	svc, store := newTestService(t)

	var docx bytes.Buffer
	require.NoError(t, WriteDOCX(&docx, []string{"Hello from Word"}))
	f := putFile(t, store, "uploads/in.docx", "letter.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", docx.Bytes())

	res, err := svc.ToPDF(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "PDF", res.ConvertedFormat)
	assert.Equal(t, "letter.docx", res.OriginalName)

	ok, err := store.Exists(context.Background(), storage.Join(storage.PrefixDocuments, res.Filename))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestToPDFRejectsPDF(t *testing.T) {
	svc, store := newTestService(t)
	f := putFile(t, store, "uploads/in.pdf", "in.pdf", "application/pdf", pdfprocessor.TestPDF(1))
	_, err := svc.ToPDF(context.Background(), f)
	var ierr *InputError
	assert.True(t, errors.As(err, &ierr))
}

func TestExtractTextFromPlainText(t *testing.T) {
	svc, store := newTestService(t)
	f := putFile(t, store, "uploads/notes.txt", "notes.txt", "text/plain; charset=utf-8", []byte("one two three"))

	res, err := svc.ExtractText(context.Background(), f)
	require.NoError(t, err)
	assert.Regexp(t, `^extracted-text-1700000000000-[0-9a-f]{8}\.txt$`, res.Filename)
	assert.Equal(t, 3, res.WordCount)
	assert.Equal(t, 13, res.CharacterCount)
	assert.Equal(t, "one two three", res.FullText)
}

func TestExtractTextFromPDF(t *testing.T) {
	stubTools(t)
	svc, store := newTestService(t)
	f := putFile(t, store, "uploads/in.pdf", "in.pdf", "application/pdf", pdfprocessor.TestPDF(1))

	res, err := svc.ExtractText(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 9, res.WordCount)
}

func TestExtractTextUnsupported(t *testing.T) {
	svc, store := newTestService(t)
	f := putFile(t, store, "uploads/x.bin", "x.bin", "application/octet-stream", []byte{0, 1})
	_, err := svc.ExtractText(context.Background(), f)
	var ierr *InputError
	assert.True(t, errors.As(err, &ierr))
}

func TestWorkdirIsRemoved(t *testing.T) {
	dir, cleanup, err := workdir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0644))
	cleanup()
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
