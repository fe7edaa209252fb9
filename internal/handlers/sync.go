package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/sync"
)

// Syncer runs bounded sync pulls from the reporting API.
type Syncer interface {
	Sync(ctx context.Context, viewName, aggregation string, opts sync.Options) (*sync.Result, error)
	Resync(ctx context.Context, viewName, aggregation string, opts sync.Options) (*sync.Result, error)
}

// SyncHandler handles HTTP requests to pull a view into the local stores.
type SyncHandler struct {
	syncer Syncer
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncer Syncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

// SyncRequest represents the HTTP request payload for sync runs.
//
// swagger:model SyncRequest
type SyncRequest struct {
	// View is the reporting view name, e.g. "authorizations".
	View string `json:"view"`
	// Aggregation is the view granularity, e.g. "detail".
	Aggregation string `json:"aggregation"`
	// Filters are upstream data-field filters passed through verbatim.
	Filters map[string]any `json:"filters,omitempty"`
	// Fields limits the fetched projection.
	Fields []string `json:"fields,omitempty"`
	// SortBy is the upstream sort field; prefix with "-" for descending.
	SortBy string `json:"sort_by,omitempty"`
	// MaxRecords caps the fetch; 0 means the full bound of 10000.
	MaxRecords int `json:"max_records,omitempty"`
	// Resync clears the view's stored rows before syncing.
	Resync bool `json:"resync,omitempty"`
}

// ServeHTTP handles HTTP requests for sync runs.
//
// swagger:route POST /api/sync runSync
//
// # Sync a reporting view into the local stores
//
// Fetches up to max_records transactions from the named view and writes
// them to the relational store and the vector index.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.View == "" {
		writeError(ctx, w, http.StatusBadRequest, "View is required")
		return
	}
	if req.Aggregation == "" {
		req.Aggregation = "detail"
	}

	opts := sync.Options{
		Filters:    req.Filters,
		Fields:     req.Fields,
		SortBy:     req.SortBy,
		MaxRecords: req.MaxRecords,
	}

	var (
		result *sync.Result
		err    error
	)
	if req.Resync {
		result, err = h.syncer.Resync(ctx, req.View, req.Aggregation, opts)
	} else {
		result, err = h.syncer.Sync(ctx, req.View, req.Aggregation, opts)
	}
	if err != nil {
		writeUpstreamError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}
