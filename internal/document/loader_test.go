package document

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{input: "pdf", want: TypePDF},
		{input: "PDF", want: TypePDF},
		{input: " docx ", want: TypeDOCX},
		{input: MIMEPDF, want: TypePDF},
		{input: MIMEDOCX, want: TypeDOCX},
		{input: "txt", wantErr: true},
		{input: "", wantErr: true},
		{input: "doc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeMIME(t *testing.T) {
	assert.Equal(t, MIMEPDF, TypePDF.MIME())
	assert.Equal(t, MIMEDOCX, TypeDOCX.MIME())
}

func TestLoadMissingFile(t *testing.T) {
	l := NewFileLoader()
	_, err := l.Load(filepath.Join(t.TempDir(), "nope.pdf"), TypePDF)
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoadUnsupportedType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	l := NewFileLoader()
	_, err := l.Load(path, Type("txt"))
	require.ErrorIs(t, err, ErrUnsupportedType)
}

// writeDOCX builds a minimal DOCX archive containing the given document XML.
func writeDOCX(t *testing.T, documentXML string) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "test.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestLoadDOCX(t *testing.T) {
	path := writeDOCX(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:p></w:p>
  </w:body>
</w:document>`)

	l := NewFileLoader()
	segments, err := l.Load(path, TypeDOCX)
	require.NoError(t, err)
	require.Len(t, segments, 1)

	assert.Equal(t, "First paragraph.\nSecond paragraph.", segments[0].Text)
	assert.Equal(t, 1, segments[0].Page)
	assert.Equal(t, path, segments[0].Source)
}

func TestLoadDOCXEmpty(t *testing.T) {
	path := writeDOCX(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body><w:p></w:p></w:body>
</w:document>`)

	l := NewFileLoader()
	_, err := l.Load(path, TypeDOCX)
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestLoadDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "broken.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	l := NewFileLoader()
	_, err = l.Load(path, TypeDOCX)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml missing")
}

func TestLoadDOCXNotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))

	l := NewFileLoader()
	_, err := l.Load(path, TypeDOCX)
	require.Error(t, err)
}

func TestLoadCorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-garbage"), 0o644))

	l := NewFileLoader()
	_, err := l.Load(path, TypePDF)
	require.Error(t, err)
}
