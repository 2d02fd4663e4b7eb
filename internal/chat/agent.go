package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/ingest"
)

// maxToolIterations bounds the tool-calling loop so a misbehaving model
// cannot spin forever.
const maxToolIterations = 5

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds configuration for the chat agent's LLM.
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

// Agent answers chat messages with an LLM that can autonomously call the
// retrieval and ingestion tools. Conversations are persisted through a
// HistoryStore in the canonical role/content/timestamp envelope.
type Agent struct {
	llm     llms.Model
	service *ingest.Service
	history *HistoryStore
	logger  *zap.Logger
}

// NewAgent creates an Agent from the given configuration.
func NewAgent(cfg Config, service *ingest.Service, history *HistoryStore, logger *zap.Logger) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return newAgent(llm, service, history, logger), nil
}

// NewAgentWithModel creates an Agent around an existing model.
// Used by tests to inject a fake.
func NewAgentWithModel(model llms.Model, service *ingest.Service, history *HistoryStore, logger *zap.Logger) *Agent {
	return newAgent(model, service, history, logger)
}

func newAgent(model llms.Model, service *ingest.Service, history *HistoryStore, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		llm:     model,
		service: service,
		history: history,
		logger:  logger.Named("chat"),
	}
}

// agentTools declares the tools the model may invoke autonomously.
func agentTools() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "search_knowledge_base",
				Description: "Search the internal knowledge base of ingested documents using a query.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Search query string",
						},
						"k": map[string]any{
							"type":        "integer",
							"description": "Number of similar chunks to retrieve (default 10)",
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "ingest_file",
				Description: "Ingest a PDF or DOCX file into the knowledge base using pipeline A or B.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"file_path": map[string]any{
							"type":        "string",
							"description": "Path to the document file",
						},
						"document_type": map[string]any{
							"type":        "string",
							"enum":        []string{"pdf", "docx"},
							"description": "Type of document",
						},
						"pipeline": map[string]any{
							"type":        "string",
							"enum":        []string{"A", "B"},
							"description": "Which ingestion pipeline to use",
						},
					},
					"required": []string{"file_path", "document_type"},
				},
			},
		},
	}
}

// Chat answers message in the context of the conversation's history and
// persists both the user turn and the model turn.
func (a *Agent) Chat(ctx context.Context, conversationID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message cannot be empty")
	}

	past, err := a.history.Messages(conversationID)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	contents := make([]llms.MessageContent, 0, len(past)+1)
	for _, m := range past {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleModel {
			role = llms.ChatMessageTypeAI
		}
		contents = append(contents, llms.TextParts(role, m.Content))
	}
	contents = append(contents, llms.TextParts(llms.ChatMessageTypeHuman, message))

	userTurn := Message{Role: RoleUser, Content: message, Timestamp: time.Now().UTC()}

	response, err := a.run(ctx, contents)
	if err != nil {
		return "", err
	}

	modelTurn := Message{Role: RoleModel, Content: response, Timestamp: time.Now().UTC()}
	if err := a.history.Append(conversationID, userTurn, modelTurn); err != nil {
		return "", fmt.Errorf("saving history: %w", err)
	}

	return response, nil
}

// run drives the generate/tool-call loop until the model produces text.
func (a *Agent) run(ctx context.Context, contents []llms.MessageContent) (string, error) {
	tools := agentTools()

	for i := 0; i < maxToolIterations; i++ {
		resp, err := a.llm.GenerateContent(ctx, contents, llms.WithTools(tools))
		if err != nil {
			return "", fmt.Errorf("generating response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("model returned no choices")
		}

		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			return strings.TrimSpace(choice.Content), nil
		}

		// Echo the assistant's tool calls back into the transcript, then
		// append one tool response per call.
		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, tc := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, tc)
		}
		contents = append(contents, assistant)

		for _, tc := range choice.ToolCalls {
			result := a.executeTool(ctx, tc)
			contents = append(contents, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	return "", fmt.Errorf("tool loop exceeded %d iterations", maxToolIterations)
}

// executeTool dispatches one tool call. Tool failures are reported back to
// the model as content rather than failing the chat turn.
func (a *Agent) executeTool(ctx context.Context, tc llms.ToolCall) string {
	if tc.FunctionCall == nil {
		return `{"error": "malformed tool call"}`
	}

	a.logger.Debug("executing tool",
		zap.String("tool", tc.FunctionCall.Name),
		zap.String("arguments", tc.FunctionCall.Arguments))

	switch tc.FunctionCall.Name {
	case "search_knowledge_base":
		return a.toolSearch(ctx, tc.FunctionCall.Arguments)
	case "ingest_file":
		return a.toolIngest(ctx, tc.FunctionCall.Arguments)
	default:
		return fmt.Sprintf(`{"error": "unknown tool %q"}`, tc.FunctionCall.Name)
	}
}

func (a *Agent) toolSearch(ctx context.Context, arguments string) string {
	var args struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return toolError(fmt.Errorf("parsing arguments: %w", err))
	}
	if args.K <= 0 {
		args.K = ingest.DefaultK
	}

	results, err := a.service.Query(ctx, args.Query, args.K)
	if err != nil {
		return toolError(err)
	}

	type hit struct {
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}
	hits := make([]hit, len(results))
	for i, r := range results {
		hits[i] = hit{Content: r.Content, Metadata: r.Metadata}
	}

	data, err := json.Marshal(hits)
	if err != nil {
		return toolError(err)
	}
	return string(data)
}

func (a *Agent) toolIngest(ctx context.Context, arguments string) string {
	var args struct {
		FilePath     string `json:"file_path"`
		DocumentType string `json:"document_type"`
		Pipeline     string `json:"pipeline"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return toolError(fmt.Errorf("parsing arguments: %w", err))
	}
	if args.Pipeline == "" {
		args.Pipeline = string(ingest.PipelineA)
	}

	result, err := a.service.IngestFile(ctx, args.FilePath, args.DocumentType, args.Pipeline)
	if err != nil {
		return toolError(err)
	}

	data, err := json.Marshal(map[string]any{
		"status":      "ingested",
		"pipeline":    result.Pipeline,
		"chunks":      result.Chunks,
		"description": result.Description,
	})
	if err != nil {
		return toolError(err)
	}
	return string(data)
}

// toolError renders an error as a JSON payload the model can read.
func toolError(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}
