package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
)

// ClearHandler handles HTTP requests to wipe the local stores.
type ClearHandler struct {
	retriever Retriever
}

// NewClearHandler creates a new ClearHandler.
func NewClearHandler(retriever Retriever) *ClearHandler {
	return &ClearHandler{retriever: retriever}
}

// ClearRequest represents the HTTP request payload for clears. Both
// stores default to true; an empty body clears everything.
//
// swagger:model ClearRequest
type ClearRequest struct {
	Database *bool `json:"database,omitempty"`
	Vectors  *bool `json:"vectors,omitempty"`
}

// ServeHTTP handles HTTP requests for clears.
//
// swagger:route POST /api/clear clearStores
//
// # Clear the local stores
//
// Irreversibly deletes stored transactions, indexed vectors, or both.
func (h *ClearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	clearDatabase := req.Database == nil || *req.Database
	clearVectors := req.Vectors == nil || *req.Vectors
	if !clearDatabase && !clearVectors {
		writeError(ctx, w, http.StatusBadRequest, "Nothing selected to clear")
		return
	}

	result, err := h.retriever.Clear(ctx, clearDatabase, clearVectors)
	if err != nil {
		logger.ErrorContext(ctx, "clear failed", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Clear failed")
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}
