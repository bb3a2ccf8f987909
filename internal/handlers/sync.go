package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"askdocs-ai/internal/contextutil"
	"askdocs-ai/internal/docsource"
)

// SyncHandler triggers a re-scan of the configured docs directory.
type SyncHandler struct {
	syncer *docsource.Syncer
}

// NewSyncHandler creates a new SyncHandler. syncer may be nil when no docs
// directory is configured.
func NewSyncHandler(syncer *docsource.Syncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

// SyncResponse represents the response from the sync endpoint.
type SyncResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP starts a docs-directory sync in the background and returns
// immediately. Unchanged documents are skipped by the content hash, so
// repeated syncs are cheap.
//
// swagger:route POST /api/v1/sync triggerSync
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.syncer == nil {
		h.writeError(w, http.StatusBadRequest, "No docs directory configured")
		return
	}

	logger.InfoContext(ctx, "document sync triggered via API")

	// Sync in a goroutine with a background context so it outlives the
	// HTTP request.
	go func() {
		syncCtx := context.Background()
		if err := h.syncer.SyncAll(syncCtx); err != nil {
			logger.ErrorContext(syncCtx, "document sync completed with errors", "error", err)
		} else {
			logger.InfoContext(syncCtx, "document sync completed successfully")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(SyncResponse{
		Message: "Sync started. Check server logs for progress.",
		Status:  "accepted",
	})
}

// writeError writes an error response.
func (h *SyncHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
