// Package ingest orchestrates the dual document ingestion pipelines and the
// fan-out query path across their vector stores.
//
// A Pipeline is a {Loader, Splitter, Store} triple plus a batching policy.
// ragd runs two: pipeline A (fixed-size chunks, Qdrant, batches of 16, with
// generated descriptions) and pipeline B (semantic chunks, pgvector, one
// unbounded upsert). Both share one generic control flow.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// ID identifies an ingestion pipeline.
type ID string

// The two configured pipelines.
const (
	PipelineA ID = "A"
	PipelineB ID = "B"
)

// Describer generates a textual description from document content.
// Implemented by describe.Generator.
type Describer interface {
	Describe(ctx context.Context, content string) (string, error)
}

// Result is the outcome of one ingestion call.
type Result struct {
	// Pipeline is the pipeline that ran.
	Pipeline ID

	// Description is the generated file description. Empty for pipeline B
	// and when description generation failed (non-fatal).
	Description string

	// Chunks is the number of chunks stored.
	Chunks int
}

// Pipeline is one self-contained chunking+embedding+storage configuration.
type Pipeline struct {
	id       ID
	loader   document.Loader
	splitter chunker.Splitter
	store    vectorstore.Store

	// batchSize bounds upsert batches to respect provider request-size
	// limits. Zero means a single unbounded call.
	batchSize int

	// describer is optional; only pipeline A generates descriptions.
	describer Describer

	logger *zap.Logger
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	ID        ID
	Loader    document.Loader
	Splitter  chunker.Splitter
	Store     vectorstore.Store
	BatchSize int
	Describer Describer
	Logger    *zap.Logger
}

// NewPipeline creates a Pipeline from explicitly injected collaborators.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.ID != PipelineA && opts.ID != PipelineB {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPipeline, opts.ID)
	}
	if opts.Loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if opts.Splitter == nil {
		return nil, fmt.Errorf("splitter is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pipeline{
		id:        opts.ID,
		loader:    opts.Loader,
		splitter:  opts.Splitter,
		store:     opts.Store,
		batchSize: opts.BatchSize,
		describer: opts.Describer,
		logger:    opts.Logger.Named("pipeline_" + strings.ToLower(string(opts.ID))),
	}, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() ID {
	return p.id
}

// Store returns the pipeline's vector store.
func (p *Pipeline) Store() vectorstore.Store {
	return p.store
}

// Ingest loads the file, chunks it, and upserts the chunks into the
// pipeline's vector store in sequential batches.
//
// Batches are not atomic across the file: when batch i of n fails, batches
// 0..i-1 remain committed and the failure surfaces as *PartialIngestionError.
// Description generation (pipeline A) is best-effort; its failure never
// fails the ingestion.
func (p *Pipeline) Ingest(ctx context.Context, path string, docType document.Type) (Result, error) {
	result := Result{Pipeline: p.id}

	segments, err := p.loader.Load(path, docType)
	if err != nil {
		return result, err
	}

	chunks, err := p.splitter.Split(ctx, segments)
	if err != nil {
		return result, fmt.Errorf("splitting %s: %w", path, err)
	}
	for i := range chunks {
		chunks[i].Metadata[vectorstore.MetaPipeline] = string(p.id)
	}

	batches := batchChunks(chunks, p.batchSize)
	for i, batch := range batches {
		if _, err := p.store.AddDocuments(ctx, batch); err != nil {
			p.logger.Error("batch upsert failed",
				zap.String("path", path),
				zap.Int("batch", i),
				zap.Int("batches", len(batches)),
				zap.Error(err))
			return result, &PartialIngestionError{Batch: i, Batches: len(batches), Err: err}
		}
		result.Chunks += len(batch)
	}

	p.logger.Info("ingested file",
		zap.String("path", path),
		zap.String("type", string(docType)),
		zap.Int("segments", len(segments)),
		zap.Int("chunks", result.Chunks))

	if p.describer != nil {
		texts := make([]string, len(segments))
		for i, seg := range segments {
			texts[i] = seg.Text
		}
		description, err := p.describer.Describe(ctx, strings.Join(texts, "\n"))
		if err != nil {
			// Vector storage succeeded; the description is enrichment only.
			p.logger.Warn("description generation failed",
				zap.String("path", path),
				zap.Error(err))
		} else {
			result.Description = description
		}
	}

	return result, nil
}

// batchChunks partitions chunks into batches of at most size elements.
// size <= 0 yields a single batch.
func batchChunks(chunks []vectorstore.Document, size int) [][]vectorstore.Document {
	if len(chunks) == 0 {
		return nil
	}
	if size <= 0 || len(chunks) <= size {
		return [][]vectorstore.Document{chunks}
	}
	var batches [][]vectorstore.Document
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}
