package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
)

// QueryHandler handles HTTP requests for structured local queries.
type QueryHandler struct {
	retriever Retriever
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(retriever Retriever) *QueryHandler {
	return &QueryHandler{retriever: retriever}
}

// QueryRequest represents the HTTP request payload for local queries.
//
// swagger:model QueryRequest
type QueryRequest struct {
	// Filters map projected columns to values: scalars for equality,
	// sub-maps for operators, e.g. {"transaction_amount": {">": 100}}.
	Filters map[string]any `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
	OrderBy string         `json:"order_by,omitempty"`
}

// ServeHTTP handles HTTP requests for local queries.
//
// swagger:route POST /api/query queryLocal
//
// # Query stored transactions
//
// Runs a structured filter query against the local relational store.
// No upstream call is made.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Limit < 0 || req.Offset < 0 {
		writeError(ctx, w, http.StatusBadRequest, "Limit and offset must not be negative")
		return
	}

	result, err := h.retriever.QueryLocal(ctx, req.Filters, req.Limit, req.Offset, req.OrderBy)
	if err != nil {
		// Filter compilation rejects fields outside the projected set;
		// that is a caller mistake, not a server fault.
		if strings.Contains(err.Error(), "unknown filter field") || strings.Contains(err.Error(), "order_by") {
			writeError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		logger.ErrorContext(ctx, "local query failed", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Query failed")
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}
