package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PgvectorConfig holds configuration for the PostgreSQL/pgvector store.
type PgvectorConfig struct {
	// CollectionName is the table backing the collection.
	// Must satisfy the same naming rules as Qdrant collections since it is
	// interpolated into DDL.
	CollectionName string

	// VectorSize is the dimensionality of embeddings. When set, the table
	// uses vector(N), which catches dimension mismatches at insert time.
	VectorSize int
}

// Validate validates the configuration.
func (c PgvectorConfig) Validate() error {
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// PgvectorStore is a Store implementation backed by PostgreSQL with the
// pgvector extension. Unlike Qdrant, the schema is flexible: metadata is a
// JSONB column, so chunks with heterogeneous metadata coexist in one table.
//
// The pool is owned by the caller; Close releases it.
type PgvectorStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
	config   PgvectorConfig
}

// NewPgvectorStore creates a PgvectorStore using an existing pgxpool.Pool.
func NewPgvectorStore(pool *pgxpool.Pool, config PgvectorConfig, embedder Embedder) (*PgvectorStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := ValidateCollectionName(config.CollectionName); err != nil {
		return nil, fmt.Errorf("validating collection name: %w", err)
	}
	return &PgvectorStore{
		pool:     pool,
		embedder: embedder,
		config:   config,
	}, nil
}

// Close releases the underlying connection pool.
func (s *PgvectorStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// EnsureCollection creates the pgvector extension, the collection table, and
// its HNSW cosine index. Every statement is idempotent, so repeated calls
// leave the collection usable and raise no error.
func (s *PgvectorStore) EnsureCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "PgvectorStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.Int("vector_size", s.config.VectorSize),
	)

	table := s.config.CollectionName
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d)
		)`, table, s.config.VectorSize),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, table, table),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: ensuring collection %s: %v", ErrStoreUnavailable, table, err)
		}
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// AddDocuments embeds the documents and upserts them into the table.
func (s *PgvectorStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := tracer.Start(ctx, "PgvectorStore.AddDocuments")
	defer span.End()

	span.SetAttributes(
		attribute.Int("document_count", len(docs)),
		attribute.String("collection", s.config.CollectionName),
	)

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: documents cannot be empty", ErrEmptyDocuments)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(docs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(embeddings), len(docs))
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding)
		 VALUES ($1, $2, $3, $4::vector)
		 ON CONFLICT (id) DO UPDATE SET
		   content = EXCLUDED.content,
		   metadata = EXCLUDED.metadata,
		   embedding = EXCLUDED.embedding`, s.config.CollectionName)

	ids := make([]string, len(docs))
	for i, doc := range docs {
		if len(embeddings[i]) != s.config.VectorSize {
			return nil, fmt.Errorf("%w: embedding dimension %d does not match collection dimension %d",
				ErrInvalidConfig, len(embeddings[i]), s.config.VectorSize)
		}

		id := doc.ID
		if id == "" {
			id = uuid.New().String()
		}
		ids[i] = id

		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata for %s: %w", id, err)
		}

		if _, err := s.pool.Exec(ctx, query, id, doc.Content, meta, SerializeVector(embeddings[i])); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%w: upserting into %s: %v", ErrStoreUnavailable, s.config.CollectionName, err)
		}
	}

	span.SetAttributes(attribute.Int("points_added", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// Search performs cosine similarity search using pgvector's distance
// operator. Score is 1 - cosine distance, so higher means more similar.
func (s *PgvectorStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "PgvectorStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidArgument)
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	sql := fmt.Sprintf(`SELECT id, content, metadata,
		        1 - (embedding <=> $1::vector) AS score
		 FROM %s
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1::vector
		 LIMIT $2`, s.config.CollectionName)

	rows, err := s.pool.Query(ctx, sql, SerializeVector(queryVector), k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: searching %s: %v", ErrStoreUnavailable, s.config.CollectionName, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var meta []byte
		if err := rows.Scan(&r.ID, &r.Content, &meta, &r.Score); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ErrStoreUnavailable, err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for %s: %w", r.ID, err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: reading rows: %v", ErrStoreUnavailable, err)
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// SerializeVector renders an embedding as a pgvector literal: [0.1,0.2,...].
func SerializeVector(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Ensure PgvectorStore implements Store interface.
var _ Store = (*PgvectorStore)(nil)
