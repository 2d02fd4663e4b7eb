package chunker

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Default window parameters for the fixed-size strategy.
const (
	DefaultChunkSize    = 750
	DefaultChunkOverlap = 100
)

// Fixed is a deterministic fixed-size splitter with overlap.
//
// Each segment is cut into windows of at most Size characters; consecutive
// windows within a segment share exactly Overlap characters (or the whole
// previous chunk when it is shorter than Overlap). Windows never cross
// segment boundaries.
type Fixed struct {
	Size    int
	Overlap int
}

// NewFixed creates a Fixed splitter, applying defaults for zero values.
// Overlap must be smaller than Size.
func NewFixed(size, overlap int) (*Fixed, error) {
	if size == 0 {
		size = DefaultChunkSize
	}
	if overlap == 0 {
		overlap = DefaultChunkOverlap
	}
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d", overlap)
	}
	return &Fixed{Size: size, Overlap: overlap}, nil
}

// Split cuts every segment into overlapping windows.
func (f *Fixed) Split(_ context.Context, segments []document.PageSegment) ([]vectorstore.Document, error) {
	var chunks []vectorstore.Document
	for _, seg := range segments {
		for _, piece := range f.splitText(seg.Text) {
			chunks = append(chunks, newChunk(piece, seg))
		}
	}
	return chunks, nil
}

// splitText slides a window of Size characters over text with a step of
// Size-Overlap. The final window absorbs the remainder.
func (f *Fixed) splitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= f.Size {
		return []string{text}
	}

	step := f.Size - f.Overlap
	var pieces []string
	for start := 0; start < len(runes); start += step {
		end := start + f.Size
		if end >= len(runes) {
			pieces = append(pieces, string(runes[start:]))
			break
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}
