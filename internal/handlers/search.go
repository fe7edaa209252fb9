package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/retrieval"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
)

// maxSearchK bounds user-provided result counts.
const maxSearchK = 100

// Retriever answers search and lookup questions over the synced stores.
type Retriever interface {
	SemanticSearch(ctx context.Context, query string, k int, filter map[string]any, enrich bool) ([]retrieval.Match, error)
	FindSimilar(ctx context.Context, token string, k int, filter map[string]any) ([]retrieval.Match, error)
	QueryLocal(ctx context.Context, filters map[string]any, limit, offset int, orderBy string) (*storage.QueryResult, error)
	Stats(ctx context.Context) (*retrieval.Stats, error)
	Clear(ctx context.Context, clearDatabase, clearVectors bool) (*retrieval.ClearResult, error)
}

// SearchHandler handles HTTP requests for semantic search.
type SearchHandler struct {
	retriever Retriever
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(retriever Retriever) *SearchHandler {
	return &SearchHandler{retriever: retriever}
}

// SearchRequest represents the HTTP request payload for semantic search.
//
// swagger:model SearchRequest
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
	// Filter restricts hits by indexed metadata: exact matches for
	// scalars, range operators in sub-maps.
	Filter map[string]any `json:"filter,omitempty"`
	// Enrich attaches the full stored payload to each hit. Defaults to
	// true; set false to get only the indexed subset back.
	Enrich *bool `json:"enrich,omitempty"`
}

// SearchResponse represents the HTTP response payload for semantic search.
//
// swagger:model SearchResponse
type SearchResponse struct {
	Query   string            `json:"query"`
	Count   int               `json:"count"`
	Results []retrieval.Match `json:"results"`
}

// ServeHTTP handles HTTP requests for semantic search.
//
// swagger:route POST /api/search semanticSearch
//
// # Search transactions by meaning
//
// Embeds the query and returns the closest indexed transactions,
// enriched with their full stored payloads.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Query == "" {
		writeError(ctx, w, http.StatusBadRequest, "Query is required")
		return
	}
	if req.K < 0 {
		req.K = 0
	}
	if req.K > maxSearchK {
		req.K = maxSearchK
	}

	enrich := req.Enrich == nil || *req.Enrich

	matches, err := h.retriever.SemanticSearch(ctx, req.Query, req.K, req.Filter, enrich)
	if err != nil {
		logger.ErrorContext(ctx, "semantic search failed", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Search failed")
		return
	}

	writeJSON(ctx, w, http.StatusOK, SearchResponse{
		Query:   req.Query,
		Count:   len(matches),
		Results: matches,
	})
}
