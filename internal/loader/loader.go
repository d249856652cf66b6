// Package loader extracts plain text from uploaded files.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"slmchat/internal/domain"
)

// ErrEmptyDocument is returned when a file yields no text at all.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Loader reads a file on disk into one or more documents.
type Loader interface {
	Load(path, source string) ([]domain.Document, error)
}

// ForExtension selects a loader by file extension. Anything that is not
// .pdf or .docx is read as plain text.
func ForExtension(name string) Loader {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return PDFLoader{}
	case ".docx":
		return DocxLoader{}
	default:
		return TextLoader{}
	}
}

// Load picks a loader for source's extension and reads path with it.
func Load(path, source string) ([]domain.Document, error) {
	docs, err := ForExtension(source).Load(path, source)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if strings.TrimSpace(d.Content) != "" {
			return docs, nil
		}
	}
	return nil, ErrEmptyDocument
}

// TextLoader reads UTF-8 text.
type TextLoader struct{}

func (TextLoader) Load(path, source string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("error loading %s: file is not valid UTF-8 text", source)
	}
	return []domain.Document{{ID: documentID(source, 0), Source: source, Content: string(data)}}, nil
}

func documentID(source string, page int) string {
	return fmt.Sprintf("%s#%d", source, page)
}
