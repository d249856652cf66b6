package loader

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"slmchat/internal/domain"
)

const docxBody = "word/document.xml"

// DocxLoader extracts the main document part of a .docx file.
type DocxLoader struct{}

func (DocxLoader) Load(path, source string) ([]domain.Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx %s: %w", source, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in %s: %w", docxBody, source, err)
		}
		text, err := docxText(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", source, err)
		}
		return []domain.Document{{ID: documentID(source, 0), Source: source, Content: text}}, nil
	}
	return nil, fmt.Errorf("parse %s: missing %s", source, docxBody)
}

// docxText walks WordprocessingML and keeps run text, tabs and breaks.
// Paragraphs are separated by a blank line.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		para   strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if b.Len() > 0 {
					b.WriteString("\n\n")
				}
				b.WriteString(para.String())
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
