// Package vectorstore defines the interface for vector storage operations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidArgument indicates a caller-supplied parameter is out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrStoreUnavailable indicates the backing vector database could not be reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder generates vector embeddings from text.
//
// Embeddings are dense numerical representations that capture semantic
// meaning, enabling similarity search. Implementations wrap remote APIs
// (OpenAI-compatible, TEI) or local models.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns a slice of embeddings (one per input text) or an error.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage operations.
//
// The interface is transport-agnostic - implementations can use gRPC,
// SQL, or any other protocol. Each store owns exactly one collection with
// a fixed embedding dimensionality and cosine distance; the dimensionality
// must match the configured Embedder's output size for every vector ever
// inserted.
//
// Implementations:
//   - QdrantStore: external Qdrant gRPC client (pipeline A)
//   - PgvectorStore: PostgreSQL with pgvector (pipeline B)
type Store interface {
	// EnsureCollection creates the store's collection if it does not
	// already exist. Calling it against an existing collection is not an
	// error; the operation is idempotent.
	EnsureCollection(ctx context.Context) error

	// AddDocuments embeds and stores documents with their metadata.
	//
	// Re-adding overlapping documents is tolerated; no deduplication is
	// guaranteed. Returns the IDs of the stored documents.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search performs cosine similarity search and returns up to k results
	// ordered by similarity score (highest first).
	//
	// k must be positive; k <= 0 fails with ErrInvalidArgument.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// Close closes the vector store connection and releases resources.
	Close() error
}
