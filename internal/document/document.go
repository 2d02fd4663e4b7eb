// Package document converts raw PDF and DOCX files into ordered page-level
// text segments for chunking.
package document

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedType is returned for document types other than PDF and DOCX.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrFileNotFound is returned when the source file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrEmptyDocument is returned when a file yields no extractable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// Type identifies a supported document format.
type Type string

const (
	// TypePDF is a PDF document.
	TypePDF Type = "pdf"
	// TypeDOCX is an Office Open XML word-processing document.
	TypeDOCX Type = "docx"
)

// MIME content types for the supported formats, as stored in file records.
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ParseType maps a user-supplied type string to a Type. It accepts the short
// form ("pdf", "docx", case-insensitive) and the corresponding MIME type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf", MIMEPDF:
		return TypePDF, nil
	case "docx", MIMEDOCX:
		return TypeDOCX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, s)
	}
}

// MIME returns the MIME content type for t.
func (t Type) MIME() string {
	if t == TypeDOCX {
		return MIMEDOCX
	}
	return MIMEPDF
}

// PageSegment is one page worth of extracted text. Segments are intermediate
// loader output: produced by Load, consumed by a chunker, never persisted.
type PageSegment struct {
	// Text is the extracted page text.
	Text string

	// Page is the 1-based page number. DOCX documents have no native page
	// boundaries and load as a single segment with Page 1.
	Page int

	// Source is the path of the file the segment came from.
	Source string
}
