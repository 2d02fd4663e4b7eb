// Package chunker splits page segments into retrieval-sized chunks.
//
// Two strategies exist: Fixed produces deterministic fixed-size chunks with
// overlap, Semantic places boundaries where embedding similarity between
// adjacent sentences drops. Both preserve segment (page) boundaries.
package chunker

import (
	"context"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Splitter converts page segments into store-ready document chunks.
type Splitter interface {
	Split(ctx context.Context, segments []document.PageSegment) ([]vectorstore.Document, error)
}

// newChunk builds a chunk document carrying source and page metadata.
// The ingestion pipeline adds its own pipeline tag before upserting.
func newChunk(text string, seg document.PageSegment) vectorstore.Document {
	return vectorstore.Document{
		ID:      uuid.New().String(),
		Content: text,
		Metadata: map[string]interface{}{
			vectorstore.MetaSource: seg.Source,
			vectorstore.MetaPage:   seg.Page,
		},
	}
}
