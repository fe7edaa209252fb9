package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/diva"
)

// ViewsAPI exposes the upstream view catalog.
type ViewsAPI interface {
	GetViewsList(ctx context.Context) (map[string]any, error)
	GetViewSchema(ctx context.Context, viewName, aggregation string) ([]diva.SchemaField, error)
}

// ViewsHandler handles HTTP requests for the upstream view catalog.
type ViewsHandler struct {
	api ViewsAPI
}

// NewViewsHandler creates a new ViewsHandler.
func NewViewsHandler(api ViewsAPI) *ViewsHandler {
	return &ViewsHandler{api: api}
}

// ServeHTTP handles HTTP requests for the view catalog.
//
// swagger:route GET /api/views listViews
//
// # List the available reporting views
func (h *ViewsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	views, err := h.api.GetViewsList(ctx)
	if err != nil {
		writeUpstreamError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, views)
}

// SchemaHandler handles HTTP requests for view schemas.
type SchemaHandler struct {
	api ViewsAPI
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(api ViewsAPI) *SchemaHandler {
	return &SchemaHandler{api: api}
}

// SchemaResponse represents the HTTP response payload for view schemas.
//
// swagger:model SchemaResponse
type SchemaResponse struct {
	View        string             `json:"view"`
	Aggregation string             `json:"aggregation"`
	Fields      []diva.SchemaField `json:"fields"`
}

// ServeHTTP handles HTTP requests for view schemas.
//
// swagger:route GET /api/views/{view}/{aggregation}/schema getViewSchema
//
// # Describe the fields of one view scope
func (h *SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	view := chi.URLParam(r, "view")
	aggregation := chi.URLParam(r, "aggregation")
	if view == "" || aggregation == "" {
		writeError(ctx, w, http.StatusBadRequest, "View and aggregation are required")
		return
	}

	fields, err := h.api.GetViewSchema(ctx, view, aggregation)
	if err != nil {
		logger.WarnContext(ctx, "schema fetch failed", "view", view, "aggregation", aggregation, "error", err)
		writeUpstreamError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, SchemaResponse{
		View:        view,
		Aggregation: aggregation,
		Fields:      fields,
	})
}
