package documents

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadDOCXText(t *testing.T) {
	data := buildDOCX(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Tom &amp; Jerry</w:t></w:r></w:p>
</w:body></w:document>`)

	text, err := ReadDOCXText(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, "Hello world\na\tb\nc\nTom & Jerry", text)
}

func TestReadDOCXTextRejectsOtherArchives(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.Create("readme.txt")
	zw.Close()

	_, err := ReadDOCXText(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.True(t, errors.Is(err, ErrNotDOCX))

	_, err = ReadDOCXText(bytes.NewReader([]byte("plain")), 5)
	assert.True(t, errors.Is(err, ErrNotDOCX))
}

func TestWriteDOCXIsReadable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOCX(&buf, []string{"  Line <one>  ", "", "Line two"}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"}, names)

	text, err := ReadDOCXText(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, "Line <one>\nLine two", text)
}
