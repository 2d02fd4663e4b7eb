// Ragd is a document ingestion and retrieval-augmented chat server.
//
// It runs two ingestion pipelines side by side: pipeline A splits documents
// into fixed-size chunks stored in Qdrant, pipeline B splits on semantic
// boundaries and stores in Postgres/pgvector. Queries fan out to both stores
// and the chat agent can search and ingest on its own.
//
// Usage:
//
//	# Start with defaults plus environment overrides
//	ragd
//
//	# Start with a config file
//	ragd -config config.yaml
//
//	# Show version information
//	ragd version
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chat"
	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/describe"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/ragd/internal/http"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/registry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// pipelineABatchSize bounds upsert batches for the fixed-size pipeline.
const pipelineABatchSize = 16

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  ragd           Start the ragd server\n")
			fmt.Fprintf(os.Stderr, "  ragd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("ragd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires all dependencies and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting ragd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("qdrant_collection", cfg.Qdrant.CollectionName),
		zap.String("pgvector_collection", cfg.Postgres.CollectionName))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer deps.Close(logger)

	service, err := initIngestService(cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("initializing ingest service: %w", err)
	}

	// Collections are created up front so the first request never races
	// schema setup.
	if err := service.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("ensuring collections: %w", err)
	}

	files, err := initRegistry(cfg)
	if err != nil {
		return fmt.Errorf("initializing registry: %w", err)
	}

	history, err := chat.NewHistoryStore(cfg.Chat.HistoryPath)
	if err != nil {
		return fmt.Errorf("initializing chat history: %w", err)
	}

	agent, err := chat.NewAgent(chat.Config{
		BaseURL: cfg.Chat.BaseURL,
		Model:   cfg.Chat.Model,
		APIKey:  cfg.Chat.APIKey.Value(),
	}, service, history, logger)
	if err != nil {
		return fmt.Errorf("initializing chat agent: %w", err)
	}

	srv, err := httpserver.NewServer(httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:   cfg.Server.WriteTimeout.Duration(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		UploadsDir:     cfg.Uploads.Dir,
		Version:        version,
	}, service, files, agent, history, logger)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// dependencies holds the infrastructure clients with explicit lifecycle.
type dependencies struct {
	embedderA *embeddings.Service
	embedderB *embeddings.Service
	storeA    *vectorstore.QdrantStore
	storeB    *vectorstore.PgvectorStore
}

// Close releases infrastructure resources in reverse construction order.
func (d *dependencies) Close(logger *zap.Logger) {
	if d.storeB != nil {
		if err := d.storeB.Close(); err != nil {
			logger.Warn("closing pgvector store", zap.Error(err))
		}
	}
	if d.storeA != nil {
		if err := d.storeA.Close(); err != nil {
			logger.Warn("closing qdrant store", zap.Error(err))
		}
	}
	if d.embedderB != nil {
		_ = d.embedderB.Close()
	}
	if d.embedderA != nil {
		_ = d.embedderA.Close()
	}
}

// initDependencies builds the embedding providers and both vector stores.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	embedderA, err := embeddings.NewService(embeddings.Config{
		BaseURL:   cfg.Embeddings.A.BaseURL,
		Model:     cfg.Embeddings.A.Model,
		APIKey:    cfg.Embeddings.A.APIKey.Value(),
		Dimension: cfg.Embeddings.A.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider A: %w", err)
	}

	embedderB, err := embeddings.NewService(embeddings.Config{
		BaseURL:   cfg.Embeddings.B.BaseURL,
		Model:     cfg.Embeddings.B.Model,
		APIKey:    cfg.Embeddings.B.APIKey.Value(),
		Dimension: cfg.Embeddings.B.Dimension,
	})
	if err != nil {
		_ = embedderA.Close()
		return nil, fmt.Errorf("creating embedding provider B: %w", err)
	}

	deps := &dependencies{embedderA: embedderA, embedderB: embedderB}

	deps.storeA, err = vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		Host:           cfg.Qdrant.Host,
		Port:           cfg.Qdrant.Port,
		CollectionName: cfg.Qdrant.CollectionName,
		VectorSize:     cfg.Qdrant.VectorSize,
		UseTLS:         cfg.Qdrant.UseTLS,
		MaxRetries:     cfg.Qdrant.MaxRetries,
		RetryBackoff:   cfg.Qdrant.RetryBackoff.Duration(),
	}, embedderA)
	if err != nil {
		deps.Close(logger)
		return nil, fmt.Errorf("creating qdrant store: %w", err)
	}
	logger.Info("connected to qdrant",
		zap.String("host", cfg.Qdrant.Host),
		zap.Int("port", cfg.Qdrant.Port))

	poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(poolCtx, cfg.Postgres.DSN.Value())
	if err != nil {
		deps.Close(logger)
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	deps.storeB, err = vectorstore.NewPgvectorStore(pool, vectorstore.PgvectorConfig{
		CollectionName: cfg.Postgres.CollectionName,
		VectorSize:     cfg.Postgres.VectorSize,
	}, embedderB)
	if err != nil {
		pool.Close()
		deps.Close(logger)
		return nil, fmt.Errorf("creating pgvector store: %w", err)
	}
	logger.Info("connected to postgres",
		zap.String("collection", cfg.Postgres.CollectionName))

	return deps, nil
}

// initIngestService assembles the two pipelines around the shared loader.
func initIngestService(cfg *config.Config, deps *dependencies, logger *zap.Logger) (*ingest.Service, error) {
	loader := document.NewFileLoader()

	fixed, err := chunker.NewFixed(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("creating fixed chunker: %w", err)
	}

	semantic, err := chunker.NewSemantic(deps.embedderB)
	if err != nil {
		return nil, fmt.Errorf("creating semantic chunker: %w", err)
	}

	describer, err := describe.NewGenerator(describe.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating description generator: %w", err)
	}

	pipelineA, err := ingest.NewPipeline(ingest.PipelineOptions{
		ID:        ingest.PipelineA,
		Loader:    loader,
		Splitter:  fixed,
		Store:     deps.storeA,
		BatchSize: pipelineABatchSize,
		Describer: describer,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline A: %w", err)
	}

	pipelineB, err := ingest.NewPipeline(ingest.PipelineOptions{
		ID:       ingest.PipelineB,
		Loader:   loader,
		Splitter: semantic,
		Store:    deps.storeB,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline B: %w", err)
	}

	return ingest.NewService(pipelineA, pipelineB, logger)
}

// initRegistry selects the configured repository backend.
func initRegistry(cfg *config.Config) (registry.Repository, error) {
	switch cfg.Registry.Backend {
	case "memory":
		return registry.NewMemory(), nil
	default:
		return registry.NewFile(cfg.Registry.Path)
	}
}
