package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"askdocs-ai/internal/contextutil"
	"askdocs-ai/internal/indexer"
	"askdocs-ai/internal/storage"
)

// DocumentHandler manages the indexed document collection.
type DocumentHandler struct {
	pipeline       *indexer.Pipeline
	documents      storage.DocumentStore
	embeddingModel string
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(pipeline *indexer.Pipeline, documents storage.DocumentStore, embeddingModel string) *DocumentHandler {
	return &DocumentHandler{
		pipeline:       pipeline,
		documents:      documents,
		embeddingModel: embeddingModel,
	}
}

// UploadDocumentRequest represents the payload for indexing a document.
//
// swagger:model UploadDocumentRequest
type UploadDocumentRequest struct {
	// Unique document name, typically the file name.
	Name string `json:"name"`
	// Raw document content (markdown or plain text).
	Content string `json:"content"`
}

// DocumentResponse represents one indexed document.
//
// swagger:model DocumentResponse
type DocumentResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ChunkCount int    `json:"chunk_count"`
	SizeBytes  int    `json:"size_bytes"`
	IndexedAt  string `json:"indexed_at"`
}

// DocumentListResponse lists indexed documents with corpus statistics.
//
// swagger:model DocumentListResponse
type DocumentListResponse struct {
	Documents []DocumentResponse  `json:"documents"`
	Stats     *indexer.IndexStats `json:"stats,omitempty"`
}

// Create indexes an uploaded document: clean, chunk, embed, upsert vectors.
// Re-uploading identical content is a no-op thanks to the content hash.
//
// swagger:route POST /api/v1/documents uploadDocument
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req UploadDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		h.writeError(w, http.StatusBadRequest, "Content is required")
		return
	}

	record, err := h.pipeline.IndexDocument(ctx, req.Name, []byte(req.Content))
	if err != nil {
		logger.ErrorContext(ctx, "failed to index document", "name", req.Name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to index document")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(documentResponse(record))
}

// List returns all indexed documents plus chunk and token statistics.
//
// swagger:route GET /api/v1/documents listDocuments
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	docs, err := h.documents.List(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list documents", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	resp := DocumentListResponse{
		Documents: make([]DocumentResponse, 0, len(docs)),
	}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, documentResponse(&doc))
	}

	// Stats are best-effort; the listing is still useful without them.
	stats, err := h.pipeline.Stats(ctx, h.embeddingModel)
	if err != nil {
		logger.WarnContext(ctx, "failed to compute index stats", "error", err)
	} else {
		resp.Stats = stats
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Get returns one document by ID.
//
// swagger:route GET /api/v1/documents/{id} getDocument
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id := chi.URLParam(r, "id")
	doc, err := h.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load document", "document", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load document")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(documentResponse(doc))
}

// Delete removes a document's rows and vectors.
//
// swagger:route DELETE /api/v1/documents/{id} deleteDocument
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id := chi.URLParam(r, "id")
	if err := h.pipeline.RemoveDocument(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		logger.ErrorContext(ctx, "failed to remove document", "document", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to remove document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func documentResponse(doc *storage.DocumentRecord) DocumentResponse {
	return DocumentResponse{
		ID:         doc.ID,
		Name:       doc.Name,
		ChunkCount: doc.ChunkCount,
		SizeBytes:  doc.SizeBytes,
		IndexedAt:  doc.IndexedAt.UTC().Format(time.RFC3339),
	}
}

// writeError writes an error response.
func (h *DocumentHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
