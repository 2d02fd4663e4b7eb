package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

func newTestService(t *testing.T, storeA, storeB *fakeStore) *Service {
	t.Helper()

	loader := &fakeLoader{segments: []document.PageSegment{{Text: "page", Page: 1, Source: "doc.pdf"}}}

	a, err := NewPipeline(PipelineOptions{
		ID:        PipelineA,
		Loader:    loader,
		Splitter:  &fakeSplitter{n: 2},
		Store:     storeA,
		BatchSize: 16,
	})
	require.NoError(t, err)

	b, err := NewPipeline(PipelineOptions{
		ID:       PipelineB,
		Loader:   loader,
		Splitter: &fakeSplitter{n: 2},
		Store:    storeB,
	})
	require.NoError(t, err)

	svc, err := NewService(a, b, nil)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresBothPipelines(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)
}

func TestServiceEnsureCollections(t *testing.T) {
	storeA, storeB := newFakeStore(), newFakeStore()
	svc := newTestService(t, storeA, storeB)

	require.NoError(t, svc.EnsureCollections(context.Background()))
	assert.Equal(t, 1, storeA.ensured)
	assert.Equal(t, 1, storeB.ensured)
}

func TestServiceIngestFileRoutesToPipeline(t *testing.T) {
	storeA, storeB := newFakeStore(), newFakeStore()
	svc := newTestService(t, storeA, storeB)

	result, err := svc.IngestFile(context.Background(), "doc.pdf", "pdf", "A")
	require.NoError(t, err)
	assert.Equal(t, PipelineA, result.Pipeline)
	assert.Len(t, storeA.batches, 1)
	assert.Empty(t, storeB.batches)

	result, err = svc.IngestFile(context.Background(), "doc.docx", "docx", "B")
	require.NoError(t, err)
	assert.Equal(t, PipelineB, result.Pipeline)
	assert.Len(t, storeB.batches, 1)
}

func TestServiceIngestFileInvalidPipeline(t *testing.T) {
	storeA, storeB := newFakeStore(), newFakeStore()
	svc := newTestService(t, storeA, storeB)

	_, err := svc.IngestFile(context.Background(), "doc.pdf", "pdf", "C")
	require.ErrorIs(t, err, ErrInvalidPipeline)
	require.ErrorIs(t, err, vectorstore.ErrInvalidArgument)

	// Nothing was upserted anywhere.
	assert.Empty(t, storeA.batches)
	assert.Empty(t, storeB.batches)
}

func TestServiceIngestFileInvalidType(t *testing.T) {
	storeA, storeB := newFakeStore(), newFakeStore()
	svc := newTestService(t, storeA, storeB)

	_, err := svc.IngestFile(context.Background(), "doc.txt", "txt", "A")
	require.ErrorIs(t, err, document.ErrUnsupportedType)
	assert.Empty(t, storeA.batches)
}

func TestServiceQueryConcatenatesAThenB(t *testing.T) {
	storeA, storeB := newFakeStore(), newFakeStore()
	storeA.searchOut = []vectorstore.SearchResult{
		{ID: "a1", Content: "alpha", Score: 0.9},
		{ID: "a2", Content: "beta", Score: 0.5},
	}
	storeB.searchOut = []vectorstore.SearchResult{
		{ID: "b1", Content: "gamma", Score: 0.99},
	}
	svc := newTestService(t, storeA, storeB)

	results, err := svc.Query(context.Background(), "question", 10)
	require.NoError(t, err)

	// Pipeline A results come first even when B scores higher; each
	// sub-list keeps its own ranking and no global re-rank happens.
	require.Len(t, results, 3)
	assert.Equal(t, "a1", results[0].ID)
	assert.Equal(t, "a2", results[1].ID)
	assert.Equal(t, "b1", results[2].ID)
}

func TestServiceQueryDegradesToPartialResults(t *testing.T) {
	storeA, storeB := newFakeStore(), newFakeStore()
	storeA.searchErr = errors.New("qdrant down")
	storeB.searchOut = []vectorstore.SearchResult{{ID: "b1", Content: "gamma"}}
	svc := newTestService(t, storeA, storeB)

	results, err := svc.Query(context.Background(), "question", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b1", results[0].ID)
}

func TestServiceQueryFailsWhenAllPipelinesFail(t *testing.T) {
	storeA, storeB := newFakeStore(), newFakeStore()
	storeA.searchErr = errors.New("qdrant down")
	storeB.searchErr = errors.New("postgres down")
	svc := newTestService(t, storeA, storeB)

	_, err := svc.Query(context.Background(), "question", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all pipelines failed")
}

func TestServiceQueryValidation(t *testing.T) {
	svc := newTestService(t, newFakeStore(), newFakeStore())

	_, err := svc.Query(context.Background(), "", 10)
	require.ErrorIs(t, err, vectorstore.ErrInvalidArgument)

	_, err = svc.Query(context.Background(), "question", 0)
	require.ErrorIs(t, err, vectorstore.ErrInvalidArgument)

	_, err = svc.Query(context.Background(), "question", -4)
	require.ErrorIs(t, err, vectorstore.ErrInvalidArgument)
}

func TestPartialIngestionErrorMessage(t *testing.T) {
	underlying := errors.New("boom")
	err := &PartialIngestionError{Batch: 2, Batches: 5, Err: underlying}

	assert.Equal(t, "ingestion failed at batch 3 of 5: boom", err.Error())
	assert.ErrorIs(t, err, underlying)
}
