package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/diva"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response body.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := contextutil.LoggerFromContext(ctx)
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, message string) {
	writeJSON(ctx, w, statusCode, ErrorResponse{Error: message})
}

// writeUpstreamError maps reporting API errors to HTTP status codes:
// caller mistakes surface as 400, upstream throttling as 429, and
// everything else upstream-side as 502.
func writeUpstreamError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "upstream error", "error", err)

	apiErr, ok := diva.AsAPIError(err)
	if !ok {
		writeError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch {
	case apiErr.Kind == diva.KindValidation:
		writeError(ctx, w, http.StatusBadRequest, apiErr.Message)
	case diva.IsRateLimited(err):
		writeError(ctx, w, http.StatusTooManyRequests, "Upstream rate limit exceeded")
	default:
		writeError(ctx, w, http.StatusBadGateway, apiErr.Message)
	}
}
