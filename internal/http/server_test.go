package http

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/ragd/internal/chat"
	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/registry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// stubStore is an in-memory vectorstore.Store for handler tests.
type stubStore struct {
	docs      []vectorstore.Document
	searchOut []vectorstore.SearchResult
	searchErr error
}

func (s *stubStore) EnsureCollection(context.Context) error { return nil }

func (s *stubStore) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	s.docs = append(s.docs, docs...)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *stubStore) Search(context.Context, string, int) ([]vectorstore.SearchResult, error) {
	return s.searchOut, s.searchErr
}

func (s *stubStore) Close() error { return nil }

// stubModel always answers with the same text.
type stubModel struct {
	reply string
}

func (m *stubModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *stubModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return m.reply, nil
}

type fixture struct {
	server *Server
	storeA *stubStore
	storeB *stubStore
	files  registry.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	storeA, storeB := &stubStore{}, &stubStore{}
	fixed, err := chunker.NewFixed(0, 0)
	require.NoError(t, err)
	loader := document.NewFileLoader()

	a, err := ingest.NewPipeline(ingest.PipelineOptions{
		ID: ingest.PipelineA, Loader: loader, Splitter: fixed, Store: storeA, BatchSize: 16,
	})
	require.NoError(t, err)
	b, err := ingest.NewPipeline(ingest.PipelineOptions{
		ID: ingest.PipelineB, Loader: loader, Splitter: fixed, Store: storeB,
	})
	require.NoError(t, err)
	svc, err := ingest.NewService(a, b, nil)
	require.NoError(t, err)

	files := registry.NewMemory()
	history, err := chat.NewHistoryStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)
	agent := chat.NewAgentWithModel(&stubModel{reply: "agent says hi"}, svc, history, nil)

	server, err := NewServer(Config{
		Host:       "localhost",
		Port:       0,
		UploadsDir: t.TempDir(),
		Version:    "test",
	}, svc, files, agent, history, nil)
	require.NoError(t, err)

	return &fixture{server: server, storeA: storeA, storeB: storeB, files: files}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func docxBytes(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body>
</w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func multipartUpload(t *testing.T, filename, contentType string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, []string{"A", "B"}, resp.Pipelines)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ragd_http_requests_total")
}

func TestUploadDOCX(t *testing.T) {
	f := newFixture(t)
	req := multipartUpload(t, "report.docx", document.MIMEDOCX, docxBytes(t, "Quarterly numbers improved."), nil)
	rec := f.do(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "report.docx", resp.Filename)
	assert.Equal(t, "A", resp.Pipeline)
	assert.Equal(t, 1, resp.Chunks)

	// Chunks landed in pipeline A's store only.
	require.Len(t, f.storeA.docs, 1)
	assert.Empty(t, f.storeB.docs)
	assert.Contains(t, f.storeA.docs[0].Content, "Quarterly numbers improved.")

	// And the file shows up in the registry.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/files/"+resp.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var record registry.FileRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "report.docx", record.Filename)
}

func TestUploadPipelineB(t *testing.T) {
	f := newFixture(t)
	req := multipartUpload(t, "report.docx", document.MIMEDOCX, docxBytes(t, "Some text."), map[string]string{"pipeline": "B"})
	rec := f.do(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, f.storeA.docs)
	assert.Len(t, f.storeB.docs, 1)
}

func TestUploadInvalidPipeline(t *testing.T) {
	f := newFixture(t)
	req := multipartUpload(t, "report.docx", document.MIMEDOCX, docxBytes(t, "Some text."), map[string]string{"pipeline": "C"})
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.storeA.docs)
	assert.Empty(t, f.storeB.docs)
}

func TestUploadUnsupportedType(t *testing.T) {
	f := newFixture(t)
	req := multipartUpload(t, "notes.txt", "text/plain", []byte("plain text"), nil)
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMissingFileField(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("pipeline", "A"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuery(t *testing.T) {
	f := newFixture(t)
	f.storeA.searchOut = []vectorstore.SearchResult{
		{ID: "a1", Content: "alpha", Score: 0.9, Metadata: map[string]any{"source": "doc.pdf"}},
	}
	f.storeB.searchOut = []vectorstore.SearchResult{
		{ID: "b1", Content: "beta", Score: 0.8},
	}

	rec := f.do(jsonRequest(http.MethodPost, "/query", QueryRequest{Query: "question"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "alpha", resp.Results[0].Content)
	assert.Equal(t, "beta", resp.Results[1].Content)
}

func TestQueryEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(jsonRequest(http.MethodPost, "/query", QueryRequest{Query: ""}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryNegativeK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(jsonRequest(http.MethodPost, "/query", QueryRequest{Query: "q", K: -1}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryDegradedStillOK(t *testing.T) {
	f := newFixture(t)
	f.storeA.searchErr = errors.New("qdrant down")
	f.storeB.searchOut = []vectorstore.SearchResult{{ID: "b1", Content: "beta"}}

	rec := f.do(jsonRequest(http.MethodPost, "/query", QueryRequest{Query: "question"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "beta", resp.Results[0].Content)
}

func TestQueryAllStoresDown(t *testing.T) {
	f := newFixture(t)
	f.storeA.searchErr = errors.New("qdrant down")
	f.storeB.searchErr = errors.New("postgres down")

	rec := f.do(jsonRequest(http.MethodPost, "/query", QueryRequest{Query: "question"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internals never leak to clients.
	assert.NotContains(t, rec.Body.String(), "postgres")
}

func TestListFilesEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/files", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestGetFileNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/files/unknown-id", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/chat", ChatRequest{Message: "hello"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "agent says hi", resp.Response)
	assert.False(t, resp.Timestamp.IsZero())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/chat", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []chat.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "agent says hi", msgs[1].Content)

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/chat", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/chat", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestChatEmptyMessage(t *testing.T) {
	f := newFixture(t)
	rec := f.do(jsonRequest(http.MethodPost, "/chat", ChatRequest{Message: "  "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSeparateConversations(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/chat", ChatRequest{Message: "hello", ConversationID: "42"}))
	require.Equal(t, http.StatusOK, rec.Code)

	// The default conversation stays empty.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/chat", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/chat?conversation_id=42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []chat.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 2)
}

func TestGetFileAfterMultipleUploads(t *testing.T) {
	f := newFixture(t)

	first := multipartUpload(t, "a.docx", document.MIMEDOCX, docxBytes(t, "First doc."), nil)
	second := multipartUpload(t, "b.docx", document.MIMEDOCX, docxBytes(t, "Second doc."), nil)
	require.Equal(t, http.StatusCreated, f.do(first).Code)
	require.Equal(t, http.StatusCreated, f.do(second).Code)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []registry.FileRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 2)
}
