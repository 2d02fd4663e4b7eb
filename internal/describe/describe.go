// Package describe generates short textual descriptions of uploaded files
// using a chat LLM. Descriptions are enrichment only: ingestion succeeds
// even when generation fails.
package describe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxInputWords bounds the content sent to the model. Only the first 1000
// whitespace-delimited words of a document inform its description.
const maxInputWords = 1000

const systemPrompt = "Generate a concise description of the provided file content."

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds configuration for the description generator.
type Config struct {
	// BaseURL is the base URL of the OpenAI-compatible chat API.
	BaseURL string

	// Model is the chat model to use.
	Model string

	// APIKey is the API key (optional for self-hosted endpoints).
	APIKey string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Generator produces file descriptions.
type Generator struct {
	llm    llms.Model
	config Config
}

// NewGenerator creates a Generator with the given configuration.
func NewGenerator(config Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &Generator{llm: llm, config: config}, nil
}

// NewGeneratorWithModel creates a Generator around an existing model.
// Used by tests to inject a fake.
func NewGeneratorWithModel(model llms.Model) *Generator {
	return &Generator{llm: model}
}

// Describe generates a description for the given content. The content is
// truncated to the first 1000 whitespace-delimited words before being sent.
func (g *Generator) Describe(ctx context.Context, content string) (string, error) {
	truncated := TruncateWords(content, maxInputWords)
	if truncated == "" {
		return "", fmt.Errorf("content is empty")
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, "File content:\n"+truncated),
	}

	resp, err := g.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(512),
	)
	if err != nil {
		return "", fmt.Errorf("generating description: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// TruncateWords returns the first n whitespace-delimited words of s.
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
