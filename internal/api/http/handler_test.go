package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/vecstore/internal/domain"
	"github.com/Zereker/vecstore/internal/store"
	"github.com/Zereker/vecstore/pkg/mq"
	"github.com/Zereker/vecstore/pkg/vector"
)

const testTopic = "vecstore.documents"

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 0}, nil
}

func newTestHandler(t *testing.T) (*Handler, *mq.InMemoryQueue) {
	t.Helper()

	engine, err := vector.NewMemoryEngine("")
	require.NoError(t, err)

	s, err := store.New(context.Background(), store.Config{}, engine)
	require.NoError(t, err)
	s.SetEmbedder(fixedEmbedder{})

	queue := mq.NewInMemoryQueue()
	return NewHandler(s, queue, testTopic), queue
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandlerAddAndGet(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/vectors", domain.VectorEntry{
		ID:        "doc-1",
		Content:   "hello",
		Embedding: []float32{1, 0, 0},
		Metadata:  map[string]any{"category": "greeting"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/v1/vectors/doc-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var entry domain.VectorEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello", entry.Content)
	assert.Equal(t, "greeting", entry.Metadata["category"])
}

func TestHandlerAddGeneratesID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/vectors", domain.VectorEntry{
		Content:   "anonymous",
		Embedding: []float32{1, 0},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	ids, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, ids["id"])
}

func TestHandlerGetMissing(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/vectors/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
}

func TestHandlerSearch(t *testing.T) {
	h, _ := newTestHandler(t)

	entries := []domain.VectorEntry{
		{ID: "same", Content: "same", Embedding: []float32{1, 0}},
		{ID: "far", Content: "far", Embedding: []float32{-1, 0}},
	}
	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/vectors/batch", entries)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/vectors/search", domain.SearchRequest{
		Vector: []float32{1, 0},
		Limit:  10,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var results []domain.SearchResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 2)
	assert.Equal(t, "same", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHandlerSearchValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/vectors/search", domain.SearchRequest{Limit: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, h, http.MethodPost, "/api/v1/vectors/search", domain.SearchRequest{
		Vector: []float32{1, 0},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerScanAndCount(t *testing.T) {
	h, _ := newTestHandler(t)

	entries := []domain.VectorEntry{
		{ID: "a1", Embedding: []float32{1, 0}, Metadata: map[string]any{"category": "A"}},
		{ID: "a2", Embedding: []float32{0, 1}, Metadata: map[string]any{"category": "A"}},
		{ID: "b1", Embedding: []float32{1, 1}, Metadata: map[string]any{"category": "B"}},
	}
	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/vectors/batch", entries)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/vectors/scan", domain.ScanRequest{
		Filters: map[string]any{"category": "A"},
		Limit:   10,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var results []domain.SearchResult
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Len(t, results, 2)

	rec, resp = doRequest(t, h, http.MethodPost, "/api/v1/vectors/count",
		map[string]any{"filters": map[string]any{"category": "B"}})
	require.Equal(t, http.StatusOK, rec.Code)

	counts, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), counts["count"])
}

func TestHandlerDelete(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/vectors", domain.VectorEntry{
		ID: "a", Embedding: []float32{1, 0},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doRequest(t, h, http.MethodDelete, "/api/v1/vectors/a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deleted, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, deleted["deleted"])

	// 再删一次：仍然 200，deleted=false
	rec, resp = doRequest(t, h, http.MethodDelete, "/api/v1/vectors/a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deleted, ok = resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, deleted["deleted"])
}

func TestHandlerIngestSync(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/documents/ingest", domain.IngestRequest{
		Documents: []domain.Document{
			{Content: "first document"},
			{Content: "second document"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	processed, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), processed["processed"])

	rec, resp = doRequest(t, h, http.MethodPost, "/api/v1/vectors/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counts, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), counts["count"])
}

func TestHandlerIngestAsync(t *testing.T) {
	h, queue := newTestHandler(t)

	docs := make([]domain.Document, 3)
	for i := range docs {
		docs[i] = domain.Document{ID: fmt.Sprintf("doc-%d", i), Content: fmt.Sprintf("content %d", i)}
	}

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/documents/ingest", domain.IngestRequest{
		Documents: docs,
		Async:     true,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, resp.Success)

	// 异步请求只入队，不直接写存储
	messages := queue.GetMessages(testTopic)
	require.Len(t, messages, 3)

	var doc domain.Document
	require.NoError(t, json.Unmarshal(messages[0], &doc))
	assert.Equal(t, "doc-0", doc.ID)

	rec, resp = doRequest(t, h, http.MethodPost, "/api/v1/vectors/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counts, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), counts["count"])
}

func TestHandlerIngestEmpty(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/documents/ingest", domain.IngestRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerStatsAndClear(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/vectors", domain.VectorEntry{
		ID: "a", Embedding: []float32{1, 0, 0, 0},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var stats domain.StoreStats
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, 1, stats.TotalVectors)
	assert.Equal(t, 4, stats.VectorDimension)
	assert.Equal(t, domain.IndexTypeApproximate, stats.IndexType)

	rec, _ = doRequest(t, h, http.MethodPost, "/api/v1/collection/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = doRequest(t, h, http.MethodPost, "/api/v1/vectors/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counts, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), counts["count"])
}

func TestHandlerHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := doRequest(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}
