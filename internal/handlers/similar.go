package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/retrieval"
)

// SimilarHandler handles HTTP requests for nearest-neighbor lookups.
type SimilarHandler struct {
	retriever Retriever
}

// NewSimilarHandler creates a new SimilarHandler.
func NewSimilarHandler(retriever Retriever) *SimilarHandler {
	return &SimilarHandler{retriever: retriever}
}

// SimilarResponse represents the HTTP response payload for similarity lookups.
//
// swagger:model SimilarResponse
type SimilarResponse struct {
	Token   string            `json:"transaction_token"`
	Count   int               `json:"count"`
	Results []retrieval.Match `json:"results"`
}

// ServeHTTP handles HTTP requests for similarity lookups.
//
// swagger:route GET /api/transactions/{token}/similar findSimilar
//
// # Find transactions similar to a known one
//
// Looks up the stored embedding for the token and returns its nearest
// neighbors, excluding the transaction itself.
func (h *SimilarHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(ctx, w, http.StatusBadRequest, "Transaction token is required")
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(ctx, w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = min(parsed, maxSearchK)
	}

	matches, err := h.retriever.FindSimilar(ctx, token, k, nil)
	if err != nil {
		if strings.Contains(err.Error(), "not indexed") {
			writeError(ctx, w, http.StatusNotFound, err.Error())
			return
		}
		logger.ErrorContext(ctx, "similarity lookup failed", "token", token, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Similarity lookup failed")
		return
	}

	writeJSON(ctx, w, http.StatusOK, SimilarResponse{
		Token:   token,
		Count:   len(matches),
		Results: matches,
	})
}
