package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

const defaultExportLimit = 10000

// Options scopes one export run.
type Options struct {
	Format  Format
	Filters map[string]any
	Limit   int
	OrderBy string
}

// Summary reports what an export wrote.
type Summary struct {
	Format     Format `json:"format"`
	Exported   int    `json:"exported"`
	Total      int    `json:"total"`
	Truncated  bool   `json:"truncated"`
	ExportedAt string `json:"exported_at"`
}

// jsonEnvelope wraps JSON exports with provenance metadata.
type jsonEnvelope struct {
	ExportedAt string           `json:"exported_at"`
	Count      int              `json:"count"`
	Total      int              `json:"total"`
	Records    []map[string]any `json:"records"`
}

// Exporter dumps stored transactions to a writer.
type Exporter struct {
	store storage.TransactionStore
	now   func() time.Time
}

func NewExporter(store storage.TransactionStore) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// Export queries the relational store with the given filters and writes
// the matching payloads to w in the requested format.
func (e *Exporter) Export(ctx context.Context, w io.Writer, opts Options) (*Summary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultExportLimit
	}

	result, err := e.store.Query(ctx, opts.Filters, limit, 0, opts.OrderBy)
	if err != nil {
		return nil, fmt.Errorf("export query failed: %w", err)
	}

	summary := &Summary{
		Format:     opts.Format,
		Exported:   result.Count,
		Total:      result.Total,
		Truncated:  result.IsMore,
		ExportedAt: e.now().UTC().Format(time.RFC3339),
	}

	switch opts.Format {
	case FormatCSV:
		err = writeCSV(w, result.Data)
	case FormatJSON:
		err = writeJSON(w, result.Data, summary)
	default:
		return nil, fmt.Errorf("unsupported export format %q", opts.Format)
	}
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// writeCSV flattens payloads into a sorted union of columns. Nested
// values serialize as JSON inside their cell.
func writeCSV(w io.Writer, records []map[string]any) error {
	columns := columnUnion(records)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(columns))
	for _, record := range records {
		for i, col := range columns {
			row[i] = cellValue(record[col])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, records []map[string]any, summary *Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonEnvelope{
		ExportedAt: summary.ExportedAt,
		Count:      summary.Exported,
		Total:      summary.Total,
		Records:    records,
	}); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// columnUnion collects every key across the records, sorted, with
// transaction_token pinned first when present.
func columnUnion(records []map[string]any) []string {
	seen := make(map[string]bool)
	for _, record := range records {
		for key := range record {
			seen[key] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for key := range seen {
		if key != "transaction_token" {
			columns = append(columns, key)
		}
	}
	sort.Strings(columns)

	if seen["transaction_token"] {
		columns = append([]string{"transaction_token"}, columns...)
	}
	return columns
}

func cellValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", t)
	}
}
