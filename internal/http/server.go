// Package http exposes the ragd REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chat"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/registry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	UploadsDir     string
	Version        string
}

// Server provides the REST endpoints for ingestion, retrieval, and chat.
type Server struct {
	echo     *echo.Echo
	config   Config
	logger   *zap.Logger
	metrics  *Metrics
	ingester *ingest.Service
	files    registry.Repository
	agent    *chat.Agent
	history  *chat.HistoryStore
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg Config, ingester *ingest.Service, files registry.Repository, agent *chat.Agent, history *chat.HistoryStore, logger *zap.Logger) (*Server, error) {
	if ingester == nil {
		return nil, fmt.Errorf("ingest service cannot be nil")
	}
	if files == nil {
		return nil, fmt.Errorf("file repository cannot be nil")
	}
	if agent == nil || history == nil {
		return nil, fmt.Errorf("chat agent and history cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UploadsDir == "" {
		return nil, fmt.Errorf("uploads directory cannot be empty")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.ReadTimeout > 0 {
		e.Server.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		e.Server.WriteTimeout = cfg.WriteTimeout
	}

	s := &Server{
		echo:     e,
		config:   cfg,
		logger:   logger.Named("http"),
		metrics:  NewMetrics(),
		ingester: ingester,
		files:    files,
		agent:    agent,
		history:  history,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			s.logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})
	if cfg.MaxUploadBytes > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%d", cfg.MaxUploadBytes)))
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/metrics", s.metrics.Handler())

	s.echo.POST("/upload", s.handleUpload)
	s.echo.POST("/query", s.handleQuery)
	s.echo.GET("/files", s.handleListFiles)
	s.echo.GET("/files/:id", s.handleGetFile)

	s.echo.POST("/chat", s.handleChat)
	s.echo.GET("/chat", s.handleChatHistory)
	s.echo.DELETE("/chat", s.handleChatClear)
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Pipelines []string `json:"pipelines"`
}

// UploadResponse is the body of POST /upload.
type UploadResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Description string `json:"description,omitempty"`
	Pipeline    string `json:"pipeline"`
	Chunks      int    `json:"chunks"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// QueryResult is one retrieved chunk.
type QueryResult struct {
	Content  string         `json:"content"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// QueryResponse is the body of POST /query.
type QueryResponse struct {
	Results []QueryResult `json:"results"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// ChatResponse is the body of POST /chat.
type ChatResponse struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:    "running",
		Version:   s.config.Version,
		Pipelines: []string{string(ingest.PipelineA), string(ingest.PipelineB)},
	})
}

func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	docType, err := detectType(fileHeader.Filename, contentType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("unsupported document type for %q", fileHeader.Filename))
	}

	pipeline := c.FormValue("pipeline")
	if pipeline == "" {
		pipeline = string(ingest.PipelineA)
	}

	id := uuid.NewString()
	storedPath := filepath.Join(s.config.UploadsDir, id+strings.ToLower(filepath.Ext(fileHeader.Filename)))
	size, err := s.saveUpload(fileHeader, storedPath)
	if err != nil {
		s.logger.Error("saving upload", zap.String("filename", fileHeader.Filename), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}
	s.metrics.AddUploadBytes(size)

	result, err := s.ingester.IngestFile(c.Request().Context(), storedPath, string(docType), pipeline)
	if err != nil {
		return s.mapError(c, err)
	}

	rec := registry.FileRecord{
		ID:          id,
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Size:        size,
		Description: result.Description,
		UploadedAt:  time.Now().UTC(),
		Path:        storedPath,
	}
	if err := s.files.Register(c.Request().Context(), rec); err != nil {
		s.logger.Error("registering upload", zap.String("id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to register upload")
	}

	return c.JSON(http.StatusCreated, UploadResponse{
		ID:          id,
		Filename:    rec.Filename,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		Description: rec.Description,
		Pipeline:    string(result.Pipeline),
		Chunks:      result.Chunks,
	})
}

// saveUpload streams the multipart part to disk and returns the byte count.
func (s *Server) saveUpload(fileHeader *multipart.FileHeader, path string) (int64, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return 0, fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating uploads dir: %w", err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating upload file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("writing upload: %w", err)
	}
	return n, nil
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.K == 0 {
		req.K = ingest.DefaultK
	}

	results, err := s.ingester.Query(c.Request().Context(), req.Query, req.K)
	if err != nil {
		return s.mapError(c, err)
	}

	resp := QueryResponse{Results: make([]QueryResult, len(results))}
	for i, r := range results {
		resp.Results[i] = QueryResult{Content: r.Content, Score: r.Score, Metadata: r.Metadata}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListFiles(c echo.Context) error {
	records, err := s.files.List(c.Request().Context())
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleGetFile(c echo.Context) error {
	rec, err := s.files.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}
	if req.ConversationID == "" {
		req.ConversationID = chat.DefaultConversationID
	}

	response, err := s.agent.Chat(c.Request().Context(), req.ConversationID, req.Message)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, ChatResponse{Response: response, Timestamp: time.Now().UTC()})
}

func (s *Server) handleChatHistory(c echo.Context) error {
	conversationID := c.QueryParam("conversation_id")
	if conversationID == "" {
		conversationID = chat.DefaultConversationID
	}

	msgs, err := s.history.Messages(conversationID)
	if err != nil {
		return s.mapError(c, err)
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleChatClear(c echo.Context) error {
	conversationID := c.QueryParam("conversation_id")
	if conversationID == "" {
		conversationID = chat.DefaultConversationID
	}
	if err := s.history.Clear(conversationID); err != nil {
		return s.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// mapError translates domain errors to HTTP status codes. Anything
// unrecognized becomes a generic 500 so internals never leak to clients.
func (s *Server) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ingest.ErrInvalidPipeline),
		errors.Is(err, document.ErrUnsupportedType),
		errors.Is(err, vectorstore.ErrInvalidArgument):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrFileNotFound), errors.Is(err, registry.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// detectType resolves the document type from the declared content type,
// falling back to the filename extension.
func detectType(filename, contentType string) (document.Type, error) {
	if contentType != "" {
		if t, err := document.ParseType(contentType); err == nil {
			return t, nil
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return document.ParseType(ext)
}
