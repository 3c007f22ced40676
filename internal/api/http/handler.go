package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Zereker/vecstore/internal/domain"
	"github.com/Zereker/vecstore/internal/store"
	"github.com/Zereker/vecstore/pkg/log"
	"github.com/Zereker/vecstore/pkg/mq"
)

// Handler handles HTTP API requests
type Handler struct {
	logger *slog.Logger
	store  *store.Store

	// queue and topic are optional: without them async ingestion is
	// rejected, synchronous ingestion still works.
	queue mq.MessageQueue
	topic string
}

// NewHandler creates a new HTTP handler
func NewHandler(s *store.Store, queue mq.MessageQueue, topic string) *Handler {
	return &Handler{
		logger: log.Logger("http.handler"),
		store:  s,
		queue:  queue,
		topic:  topic,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Vector operations
	mux.HandleFunc("POST /api/v1/vectors", h.AddVector)
	mux.HandleFunc("POST /api/v1/vectors/batch", h.AddVectors)
	mux.HandleFunc("POST /api/v1/vectors/search", h.Search)
	mux.HandleFunc("POST /api/v1/vectors/scan", h.Scan)
	mux.HandleFunc("POST /api/v1/vectors/count", h.Count)
	mux.HandleFunc("GET /api/v1/vectors/{id}", h.GetVector)
	mux.HandleFunc("PUT /api/v1/vectors/{id}", h.UpdateVector)
	mux.HandleFunc("DELETE /api/v1/vectors/{id}", h.DeleteVector)

	// Collection operations
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/collection/clear", h.Clear)

	// Document ingestion
	mux.HandleFunc("POST /api/v1/documents/ingest", h.Ingest)

	// Health check
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// AddVector handles POST /api/v1/vectors
func (h *Handler) AddVector(w http.ResponseWriter, r *http.Request) {
	var entry domain.VectorEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	id, err := h.store.AddVector(r.Context(), entry)
	if err != nil {
		h.logger.Error("add vector failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"id": id},
	})
}

// AddVectors handles POST /api/v1/vectors/batch
func (h *Handler) AddVectors(w http.ResponseWriter, r *http.Request) {
	var entries []domain.VectorEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}

	ids, err := h.store.AddVectors(r.Context(), entries)
	if err != nil {
		h.logger.Error("batch add failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]any{"ids": ids},
	})
}

// Search handles POST /api/v1/vectors/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if len(req.Vector) == 0 {
		h.writeError(w, http.StatusBadRequest, "vector is required")
		return
	}
	if req.Limit <= 0 {
		h.writeError(w, http.StatusBadRequest, "limit must be positive")
		return
	}

	results, err := h.store.SearchSimilar(r.Context(), req.Vector, req.Limit, req.Threshold, req.Filters)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    results,
	})
}

// Scan handles POST /api/v1/vectors/scan
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}

	results, err := h.store.SearchByMetadata(r.Context(), req.Filters, req.Limit)
	if err != nil {
		h.logger.Error("scan failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    results,
	})
}

// Count handles POST /api/v1/vectors/count
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filters map[string]any `json:"filters,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	count, err := h.store.CountVectors(r.Context(), req.Filters)
	if err != nil {
		h.logger.Error("count failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]int{"count": count},
	})
}

// GetVector handles GET /api/v1/vectors/{id}
func (h *Handler) GetVector(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "vector id is required")
		return
	}

	entry, err := h.store.GetVector(r.Context(), id)
	if err != nil {
		h.logger.Error("get vector failed", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		h.writeError(w, http.StatusNotFound, "vector not found: "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    entry,
	})
}

// UpdateVector handles PUT /api/v1/vectors/{id}
func (h *Handler) UpdateVector(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "vector id is required")
		return
	}

	var entry domain.VectorEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	entry.ID = id

	if err := h.store.UpdateVector(r.Context(), entry); err != nil {
		h.logger.Error("update vector failed", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"id": id},
	})
}

// DeleteVector handles DELETE /api/v1/vectors/{id}
func (h *Handler) DeleteVector(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "vector id is required")
		return
	}

	deleted := h.store.DeleteVector(r.Context(), id)

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]any{"id": id, "deleted": deleted},
	})
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		h.logger.Error("stats failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    stats,
	})
}

// Clear handles POST /api/v1/collection/clear
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		h.logger.Error("clear failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"collection": h.store.Collection()},
	})
}

// Ingest handles POST /api/v1/documents/ingest. Synchronous requests
// run the embedding pipeline inline; async requests publish each
// document to the queue and return immediately.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req domain.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		h.writeError(w, http.StatusBadRequest, "documents are required")
		return
	}

	for i := range req.Documents {
		if req.Documents[i].ID == "" {
			req.Documents[i].ID = uuid.NewString()
		}
	}

	if req.Async {
		if h.queue == nil {
			h.writeError(w, http.StatusServiceUnavailable, "async ingestion is not configured")
			return
		}
		for _, doc := range req.Documents {
			payload, err := json.Marshal(doc)
			if err != nil {
				h.writeError(w, http.StatusBadRequest, "invalid document: "+err.Error())
				return
			}
			if err := h.queue.Publish(h.topic, payload); err != nil {
				h.logger.Error("publish failed", "id", doc.ID, "error", err)
				h.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		h.writeJSON(w, http.StatusAccepted, Response{
			Success: true,
			Data:    map[string]any{"queued": len(req.Documents)},
		})
		return
	}

	processed, err := h.store.ProcessAll(r.Context(), req.Documents)
	if err != nil {
		h.logger.Error("ingest failed", "processed", len(processed), "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrEmbedderNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		h.writeJSON(w, status, Response{
			Success: false,
			Data:    map[string]any{"processed": len(processed)},
			Error:   err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]any{"processed": len(processed)},
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]string{
			"status":     "healthy",
			"collection": h.store.Collection(),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}
