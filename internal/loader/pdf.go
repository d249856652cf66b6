package loader

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"slmchat/internal/domain"
)

// PDFLoader extracts text page by page.
type PDFLoader struct{}

func (PDFLoader) Load(path, source string) (docs []domain.Document, err error) {
	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("malformed pdf %s: %v", source, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", source, err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d of %s: %w", i, source, err)
		}
		docs = append(docs, domain.Document{
			ID:      documentID(source, i),
			Source:  source,
			Page:    i,
			Content: text,
		})
	}
	return docs, nil
}
