package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// DefaultK is the number of results returned per pipeline when the caller
// does not specify k.
const DefaultK = 10

// Service fronts both ingestion pipelines and the fan-out query path.
type Service struct {
	pipelines map[ID]*Pipeline
	order     []ID
	logger    *zap.Logger
}

// NewService creates a Service over the two configured pipelines.
func NewService(a, b *Pipeline, logger *zap.Logger) (*Service, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("both pipelines are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pipelines: map[ID]*Pipeline{a.ID(): a, b.ID(): b},
		order:     []ID{PipelineA, PipelineB},
		logger:    logger.Named("ingest"),
	}, nil
}

// EnsureCollections bootstraps both stores' collections. Called once at
// startup; re-running against existing collections is a no-op.
func (s *Service) EnsureCollections(ctx context.Context) error {
	for _, id := range s.order {
		if err := s.pipelines[id].Store().EnsureCollection(ctx); err != nil {
			return fmt.Errorf("pipeline %s: %w", id, err)
		}
	}
	return nil
}

// IngestFile ingests the file at path through the named pipeline.
//
// docType must parse to PDF or DOCX and pipeline must be "A" or "B";
// anything else fails before any store is touched.
func (s *Service) IngestFile(ctx context.Context, path, docType, pipeline string) (Result, error) {
	t, err := document.ParseType(docType)
	if err != nil {
		return Result{}, err
	}

	p, ok := s.pipelines[ID(pipeline)]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q (use %q or %q)", ErrInvalidPipeline, pipeline, PipelineA, PipelineB)
	}

	return p.Ingest(ctx, path, t)
}

// Query fans the same (text, k) out to both pipelines' stores concurrently
// and concatenates the ranked results: pipeline A first, then pipeline B,
// each sub-list keeping its own ranking. No global re-ranking is applied.
//
// Each pipeline is independently best-effort: when one store fails the query
// degrades to the surviving store's results. Only both stores failing fails
// the query.
func (s *Service) Query(ctx context.Context, text string, k int) ([]vectorstore.SearchResult, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", vectorstore.ErrInvalidArgument)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", vectorstore.ErrInvalidArgument, k)
	}

	results := make([][]vectorstore.SearchResult, len(s.order))
	errs := make([]error, len(s.order))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range s.order {
		g.Go(func() error {
			results[i], errs[i] = s.pipelines[id].Store().Search(gctx, text, k)
			return nil
		})
	}
	_ = g.Wait()

	var merged []vectorstore.SearchResult
	failed := 0
	for i, id := range s.order {
		if errs[i] != nil {
			failed++
			s.logger.Warn("pipeline search failed, degrading to partial results",
				zap.String("pipeline", string(id)),
				zap.Error(errs[i]))
			continue
		}
		merged = append(merged, results[i]...)
	}

	if failed == len(s.order) {
		return nil, fmt.Errorf("all pipelines failed: %w", errs[0])
	}
	return merged, nil
}
