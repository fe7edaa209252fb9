package handlers

import (
	"net/http"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
)

// StatsHandler handles HTTP requests for store statistics.
type StatsHandler struct {
	retriever Retriever
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(retriever Retriever) *StatsHandler {
	return &StatsHandler{retriever: retriever}
}

// ServeHTTP handles HTTP requests for store statistics.
//
// swagger:route GET /api/stats getStats
//
// # Snapshot both local stores
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	stats, err := h.retriever.Stats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read stats", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to read stats")
		return
	}

	writeJSON(ctx, w, http.StatusOK, stats)
}
