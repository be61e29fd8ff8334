package handlers

import (
	"encoding/json"
	"net/http"

	"matchbook/internal/contextutil"
	"matchbook/internal/reindex"
)

// ReindexHandler triggers a reconciliation sweep of the search index.
type ReindexHandler struct {
	sweeper *reindex.Sweeper
}

// NewReindexHandler creates a new ReindexHandler.
func NewReindexHandler(sweeper *reindex.Sweeper) *ReindexHandler {
	return &ReindexHandler{sweeper: sweeper}
}

// ReindexResponse wraps the sweep statistics.
type ReindexResponse struct {
	Stats *reindex.Stats `json:"stats"`
}

// ServeHTTP runs the sweep synchronously and reports its statistics.
func (h *ReindexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	stats, err := h.sweeper.Sweep(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "reindex sweep failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Reindex failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ReindexResponse{Stats: stats})
}

// writeError writes an error response.
func (h *ReindexHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
