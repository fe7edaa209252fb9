package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/export"
)

// Dumper writes stored transactions to a stream.
type Dumper interface {
	Export(ctx context.Context, w io.Writer, opts export.Options) (*export.Summary, error)
}

// ExportHandler handles HTTP requests to dump stored transactions.
type ExportHandler struct {
	dumper Dumper
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(dumper Dumper) *ExportHandler {
	return &ExportHandler{dumper: dumper}
}

// ExportRequest represents the HTTP request payload for exports.
//
// swagger:model ExportRequest
type ExportRequest struct {
	// Format is "csv" or "json"; defaults to json.
	Format  string         `json:"format,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	OrderBy string         `json:"order_by,omitempty"`
}

// ServeHTTP handles HTTP requests for exports. The response body is the
// export itself, streamed in the requested format.
//
// swagger:route POST /api/export exportTransactions
//
// # Export stored transactions
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	format := export.Format(strings.ToLower(req.Format))
	if format == "" {
		format = export.FormatJSON
	}
	switch format {
	case export.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	case export.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		writeError(ctx, w, http.StatusBadRequest, fmt.Sprintf("Unsupported format %q", req.Format))
		return
	}

	summary, err := h.dumper.Export(ctx, w, export.Options{
		Format:  format,
		Filters: req.Filters,
		Limit:   req.Limit,
		OrderBy: req.OrderBy,
	})
	if err != nil {
		logger.ErrorContext(ctx, "export failed", "error", err)
		// The query runs before any body bytes go out, so a clean error
		// response is still possible here unless the stream write itself
		// failed partway.
		if strings.Contains(err.Error(), "unknown filter field") || strings.Contains(err.Error(), "order_by") {
			writeError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(ctx, w, http.StatusInternalServerError, "Export failed")
		return
	}

	logger.InfoContext(ctx, "export complete",
		"format", summary.Format,
		"exported", summary.Exported,
		"truncated", summary.Truncated,
	)
}
