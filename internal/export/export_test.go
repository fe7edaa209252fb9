package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
)

func newTestStore(t *testing.T) storage.TransactionStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := storage.New(dbPath)
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}

	store := storage.NewTransactionRepo(db, dbPath)
	_, err = store.Upsert(context.Background(), []map[string]any{
		{
			"transaction_token":  "txn-1",
			"merchant_name":      "Blue Bottle Coffee",
			"transaction_amount": 4.75,
			"response":           map[string]any{"code": "00"},
		},
		{
			"transaction_token":  "txn-2",
			"merchant_name":      "Whole Foods",
			"transaction_amount": 92.40,
		},
	}, "authorizations", "detail")
	if err != nil {
		t.Fatalf("seed Upsert() error = %v", err)
	}

	return store
}

func TestExportCSV(t *testing.T) {
	exporter := NewExporter(newTestStore(t))

	var buf bytes.Buffer
	summary, err := exporter.Export(context.Background(), &buf, Options{Format: FormatCSV})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if summary.Exported != 2 || summary.Total != 2 || summary.Truncated {
		t.Errorf("summary = %+v", summary)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 records", len(rows))
	}
	if rows[0][0] != "transaction_token" {
		t.Errorf("header = %v, want transaction_token first", rows[0])
	}

	// Nested payloads serialize as JSON cells.
	joined := strings.Join(rows[1], ",") + strings.Join(rows[2], ",")
	if !strings.Contains(joined, `{"code":"00"}`) {
		t.Errorf("CSV body missing nested JSON cell: %q", joined)
	}
}

func TestExportJSON(t *testing.T) {
	exporter := NewExporter(newTestStore(t))

	var buf bytes.Buffer
	summary, err := exporter.Export(context.Background(), &buf, Options{
		Format:  FormatJSON,
		Filters: map[string]any{"merchant_name": map[string]any{"like": "Coffee"}},
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if summary.Exported != 1 {
		t.Errorf("Exported = %d, want 1", summary.Exported)
	}

	var envelope struct {
		ExportedAt string           `json:"exported_at"`
		Count      int              `json:"count"`
		Records    []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if envelope.Count != 1 || len(envelope.Records) != 1 {
		t.Errorf("envelope = %+v", envelope)
	}
	if envelope.Records[0]["merchant_name"] != "Blue Bottle Coffee" {
		t.Errorf("record = %+v", envelope.Records[0])
	}
	if envelope.ExportedAt == "" {
		t.Error("exported_at missing")
	}
}

func TestExportTruncation(t *testing.T) {
	exporter := NewExporter(newTestStore(t))

	var buf bytes.Buffer
	summary, err := exporter.Export(context.Background(), &buf, Options{Format: FormatJSON, Limit: 1})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if summary.Exported != 1 || summary.Total != 2 || !summary.Truncated {
		t.Errorf("summary = %+v, want 1 of 2 truncated", summary)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	exporter := NewExporter(newTestStore(t))

	var buf bytes.Buffer
	if _, err := exporter.Export(context.Background(), &buf, Options{Format: "xml"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}
