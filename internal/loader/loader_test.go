package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docxXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>The sky</w:t></w:r><w:r><w:t xml:space="preserve"> is blue.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Grass</w:t><w:tab/><w:t>is green.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeDocx(t *testing.T, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestForExtension(t *testing.T) {
	assert.IsType(t, PDFLoader{}, ForExtension("a.PDF"))
	assert.IsType(t, DocxLoader{}, ForExtension("report.docx"))
	assert.IsType(t, TextLoader{}, ForExtension("notes.txt"))
	assert.IsType(t, TextLoader{}, ForExtension("data.csv"))
	assert.IsType(t, TextLoader{}, ForExtension("README"))
}

func TestLoadText(t *testing.T) {
	path := writeFile(t, "upload.txt", []byte("The sky is blue."))

	docs, err := Load(path, "notes.txt")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "The sky is blue.", docs[0].Content)
	assert.Equal(t, "notes.txt", docs[0].Source)
}

func TestLoadTextRejectsBinary(t *testing.T) {
	path := writeFile(t, "upload.txt", []byte{0xff, 0xfe, 0x00, 0x81})

	_, err := Load(path, "blob.bin")
	assert.Error(t, err)
}

func TestLoadEmpty(t *testing.T) {
	path := writeFile(t, "upload.txt", []byte("   \n\t"))

	_, err := Load(path, "empty.txt")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestLoadDocx(t *testing.T) {
	path := writeDocx(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   docxXML,
	})

	docs, err := Load(path, "report.docx")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "The sky is blue.\n\nGrass\tis green.", docs[0].Content)
}

func TestLoadDocxMissingBody(t *testing.T) {
	path := writeDocx(t, map[string]string{"other.xml": "<x/>"})

	_, err := Load(path, "report.docx")
	assert.ErrorContains(t, err, "missing word/document.xml")
}

func TestLoadCorruptDocx(t *testing.T) {
	path := writeFile(t, "upload.docx", []byte("definitely not a zip"))

	_, err := Load(path, "report.docx")
	assert.Error(t, err)
}

func TestLoadCorruptPDF(t *testing.T) {
	path := writeFile(t, "upload.pdf", []byte("not a pdf at all"))

	_, err := Load(path, "paper.pdf")
	assert.Error(t, err)
}
