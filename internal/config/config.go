// Package config provides configuration loading for ragd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the ragd server.
type Config struct {
	Server     ServerConfig    `koanf:"server"`
	Uploads    UploadsConfig   `koanf:"uploads"`
	Registry   RegistryConfig  `koanf:"registry"`
	Chat       ChatConfig      `koanf:"chat"`
	Qdrant     QdrantConfig    `koanf:"qdrant"`
	Postgres   PostgresConfig  `koanf:"postgres"`
	Embeddings EmbeddingConfig `koanf:"embeddings"`
	LLM        LLMConfig       `koanf:"llm"`
	Logging    LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ReadTimeout     Duration `koanf:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64    `koanf:"max_upload_bytes"`
}

// UploadsConfig holds settings for uploaded file storage.
type UploadsConfig struct {
	// Dir is where uploaded documents are written before ingestion.
	Dir string `koanf:"dir"`
}

// RegistryConfig holds settings for the uploaded-file registry.
type RegistryConfig struct {
	// Backend selects the repository implementation: "file" or "memory".
	Backend string `koanf:"backend"`

	// Path is the JSON state file for the file backend.
	Path string `koanf:"path"`
}

// ChatConfig holds settings for the chat agent and its history store.
type ChatConfig struct {
	BaseURL     string `koanf:"base_url"`
	Model       string `koanf:"model"`
	APIKey      Secret `koanf:"api_key"`
	HistoryPath string `koanf:"history_path"`
}

// QdrantConfig holds Qdrant connection settings for the fixed-size pipeline.
type QdrantConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	CollectionName string   `koanf:"collection_name"`
	VectorSize     uint64   `koanf:"vector_size"`
	UseTLS         bool     `koanf:"use_tls"`
	MaxRetries     int      `koanf:"max_retries"`
	RetryBackoff   Duration `koanf:"retry_backoff"`
}

// PostgresConfig holds Postgres/pgvector settings for the semantic pipeline.
type PostgresConfig struct {
	DSN            Secret `koanf:"dsn"`
	CollectionName string `koanf:"collection_name"`
	VectorSize     int    `koanf:"vector_size"`
}

// EmbeddingConfig holds settings for one embedding endpoint. Each pipeline
// carries its own endpoint so the two can use different models.
type EmbeddingConfig struct {
	A EmbeddingEndpoint `koanf:"a"`
	B EmbeddingEndpoint `koanf:"b"`
}

// EmbeddingEndpoint describes one OpenAI-compatible embedding API.
type EmbeddingEndpoint struct {
	BaseURL   string `koanf:"base_url"`
	Model     string `koanf:"model"`
	APIKey    Secret `koanf:"api_key"`
	Dimension int    `koanf:"dimension"`
}

// LLMConfig holds settings for the description-generation model.
type LLMConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(2 * time.Minute)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 50 * 1024 * 1024
	}

	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = "data/uploads"
	}

	if cfg.Registry.Backend == "" {
		cfg.Registry.Backend = "file"
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "data/registry.json"
	}

	if cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4o-mini"
	}
	if cfg.Chat.HistoryPath == "" {
		cfg.Chat.HistoryPath = "data/chat_history.json"
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.CollectionName == "" {
		cfg.Qdrant.CollectionName = "documents_a"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 768
	}
	if cfg.Qdrant.MaxRetries == 0 {
		cfg.Qdrant.MaxRetries = 3
	}
	if cfg.Qdrant.RetryBackoff == 0 {
		cfg.Qdrant.RetryBackoff = Duration(time.Second)
	}

	if cfg.Postgres.CollectionName == "" {
		cfg.Postgres.CollectionName = "documents_b"
	}
	if cfg.Postgres.VectorSize == 0 {
		cfg.Postgres.VectorSize = 768
	}

	applyEndpointDefaults(&cfg.Embeddings.A, cfg.Qdrant.VectorSize)
	applyEndpointDefaults(&cfg.Embeddings.B, uint64(cfg.Postgres.VectorSize))

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = cfg.Chat.BaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = cfg.Chat.Model
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEndpointDefaults(ep *EmbeddingEndpoint, vectorSize uint64) {
	if ep.BaseURL == "" {
		ep.BaseURL = "http://localhost:8080/v1"
	}
	if ep.Model == "" {
		ep.Model = "nomic-embed-text"
	}
	if ep.Dimension == 0 {
		ep.Dimension = int(vectorSize)
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}

	switch c.Registry.Backend {
	case "file", "memory":
	default:
		return fmt.Errorf("registry.backend must be \"file\" or \"memory\", got %q", c.Registry.Backend)
	}
	if c.Registry.Backend == "file" && c.Registry.Path == "" {
		return fmt.Errorf("registry.path required for the file backend")
	}

	if c.Qdrant.Host == "" {
		return fmt.Errorf("qdrant.host cannot be empty")
	}
	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("qdrant.port must be between 1 and 65535, got %d", c.Qdrant.Port)
	}
	if c.Qdrant.VectorSize == 0 {
		return fmt.Errorf("qdrant.vector_size must be positive")
	}

	if !c.Postgres.DSN.IsSet() {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Postgres.VectorSize <= 0 {
		return fmt.Errorf("postgres.vector_size must be positive, got %d", c.Postgres.VectorSize)
	}

	if err := validateEndpoint("embeddings.a", c.Embeddings.A); err != nil {
		return err
	}
	if err := validateEndpoint("embeddings.b", c.Embeddings.B); err != nil {
		return err
	}

	if c.Chat.BaseURL == "" {
		return fmt.Errorf("chat.base_url cannot be empty")
	}
	if c.Chat.Model == "" {
		return fmt.Errorf("chat.model cannot be empty")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"console\", got %q", c.Logging.Format)
	}

	return nil
}

func validateEndpoint(section string, ep EmbeddingEndpoint) error {
	if ep.BaseURL == "" {
		return fmt.Errorf("%s.base_url cannot be empty", section)
	}
	if ep.Model == "" {
		return fmt.Errorf("%s.model cannot be empty", section)
	}
	if ep.Dimension <= 0 {
		return fmt.Errorf("%s.dimension must be positive, got %d", section, ep.Dimension)
	}
	return nil
}
