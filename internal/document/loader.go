package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Loader reads supported document files from disk.
type Loader interface {
	// Load converts a file into an ordered sequence of page segments.
	// A missing file fails with ErrFileNotFound; types other than PDF and
	// DOCX fail with ErrUnsupportedType.
	Load(path string, docType Type) ([]PageSegment, error)
}

// FileLoader implements Loader for local files.
type FileLoader struct{}

// NewFileLoader creates a FileLoader.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load reads the file and extracts page segments for the given type.
func (l *FileLoader) Load(path string, docType Type) ([]PageSegment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	switch docType {
	case TypePDF:
		return loadPDF(path, content)
	case TypeDOCX:
		return loadDOCX(path, content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, docType)
	}
}

// loadPDF extracts text page by page, preserving page boundaries as reported
// by the parser. Unreadable or empty pages are skipped.
func loadPDF(path string, content []byte) ([]PageSegment, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", path, err)
	}

	var segments []PageSegment
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // skip unreadable pages
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		segments = append(segments, PageSegment{
			Text:   text,
			Page:   i,
			Source: path,
		})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}
	return segments, nil
}

// docx XML skeleton for word/document.xml. Paragraphs become line breaks;
// only text runs are extracted.
type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Texts []string `xml:"t"`
}

// loadDOCX extracts the whole document as a single segment. DOCX has no
// native page boundaries, so pagination is not reconstructed.
func loadDOCX(path string, content []byte) ([]PageSegment, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening docx %s: %w", path, err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening word/document.xml in %s: %w", path, err)
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading word/document.xml in %s: %w", path, err)
		}
		break
	}
	if docXML == nil {
		return nil, fmt.Errorf("opening docx %s: word/document.xml missing", path)
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return nil, fmt.Errorf("parsing docx %s: %w", path, err)
	}

	var b strings.Builder
	for _, p := range doc.Body.Paragraphs {
		var para strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Texts {
				para.WriteString(t)
			}
		}
		if para.Len() == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(para.String())
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, path)
	}

	return []PageSegment{{Text: text, Page: 1, Source: path}}, nil
}
