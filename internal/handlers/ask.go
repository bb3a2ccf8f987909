package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"askdocs-ai/internal/contextutil"
	"askdocs-ai/internal/rag"
	"askdocs-ai/internal/service"
)

// AskDefaults seeds answer options the client did not supply.
type AskDefaults struct {
	UseExternalFallback bool
	ConfidenceThreshold float64
	MaxSources          int
}

// AskHandler handles question answering requests.
type AskHandler struct {
	engine   rag.Engine
	defaults AskDefaults
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(engine rag.Engine, defaults AskDefaults) *AskHandler {
	return &AskHandler{
		engine:   engine,
		defaults: defaults,
	}
}

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP answers a question against one indexed document.
//
// swagger:route POST /api/v1/ask askQuestion
//
// # Ask a question about an indexed document
//
// Retrieves the most relevant chunks of the document, generates an answer,
// and merges in external web evidence when local confidence falls below the
// gate threshold and fallback is enabled.
//
// Use the `debug=true` query parameter to include retrieval and gating
// detail (candidate chunks with scores, local confidence, gate decision)
// in the response.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Answer with confidence, strategy, and sources
//	'400':
//	  description: Bad request (missing question or document_id)
//	'404':
//	  description: Document not found
//	'502':
//	  description: External service error (model server unavailable)
//	'500':
//	  description: Internal server error
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Seed options with server defaults, then decode over them so absent
	// fields keep the defaults and explicit false/zero values still win.
	req := rag.AnswerRequest{
		Options: rag.AnswerOptions{
			UseExternalFallback: h.defaults.UseExternalFallback,
			ConfidenceThreshold: h.defaults.ConfidenceThreshold,
			MaxSources:          h.defaults.MaxSources,
		},
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		logger.WarnContext(ctx, "empty question in request")
		h.writeError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		logger.WarnContext(ctx, "missing document_id in request")
		h.writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}

	if debugParam := r.URL.Query().Get("debug"); debugParam != "" {
		req.Debug = strings.ToLower(debugParam) == "true" || debugParam == "1"
	}

	resp, err := h.engine.Answer(ctx, req)
	if err != nil {
		h.handleEngineError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// handleEngineError maps engine errors to HTTP status codes via the
// service error sentinels.
func (h *AskHandler) handleEngineError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "answer engine error", "error", err)

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrExternalService):
		h.writeError(w, http.StatusBadGateway, "External service error")
	default:
		h.writeError(w, http.StatusInternalServerError, "Failed to answer question")
	}
}

// writeError writes an error response.
func (h *AskHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
