package sync

import (
	"context"
	"fmt"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/diva"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/document"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/vectorstore"
)

// maxSyncRecords bounds a single sync fetch. A sync is one bounded pull,
// not a pagination loop; anything beyond the cap is reported as truncated.
const maxSyncRecords = 10000

// DivaAPI is the upstream reporting surface a sync needs.
type DivaAPI interface {
	GetView(ctx context.Context, viewName, aggregation string, opts diva.QueryOptions) (*diva.ViewResponse, error)
}

// Embedder turns composed transaction documents into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Options tunes one sync run.
type Options struct {
	// Filters are upstream data-field filters, passed through verbatim.
	Filters map[string]any
	// Fields limits the fetched projection. Leave empty to store full
	// payloads, which is what makes local enrichment useful.
	Fields []string
	// SortBy is the upstream sort field; prefix with "-" for descending.
	SortBy string
	// MaxRecords caps the fetch; 0 means the full bound.
	MaxRecords int
}

// Result reports what one sync run did.
type Result struct {
	ViewName    string `json:"view_name"`
	Aggregation string `json:"aggregation"`
	Fetched     int    `json:"fetched"`
	Stored      int    `json:"stored"`
	Indexed     int    `json:"indexed"`
	Cleared     int    `json:"cleared,omitempty"`
	// VectorsDeleted counts index entries removed ahead of a resync.
	VectorsDeleted int `json:"vectors_deleted,omitempty"`
	// Truncated is set when the upstream reported more records beyond the
	// fetch bound, or returned more than the caller's cap and the excess
	// was dropped. Narrow the filters and sync again to pick those up.
	Truncated bool `json:"truncated"`
	// Database and Collection snapshot both stores after the write, so a
	// caller sees the cumulative state alongside this run's counts.
	Database   *storage.Stats              `json:"database,omitempty"`
	Collection *vectorstore.CollectionInfo `json:"collection,omitempty"`
}

// Orchestrator pulls transactions from the reporting API and lands them
// in both local stores. The dual write is not atomic: the relational
// write commits first, and a vector-side failure leaves it in place, to
// be reconciled by a later resync.
type Orchestrator struct {
	api      DivaAPI
	embedder Embedder
	store    storage.TransactionStore
	vectors  vectorstore.VectorStore
}

func NewOrchestrator(api DivaAPI, embedder Embedder, store storage.TransactionStore, vectors vectorstore.VectorStore) *Orchestrator {
	return &Orchestrator{
		api:      api,
		embedder: embedder,
		store:    store,
		vectors:  vectors,
	}
}

// Sync fetches up to the bounded record count from one view scope and
// writes every record to the relational store and the vector index.
// An empty upstream result is not an error.
func (o *Orchestrator) Sync(ctx context.Context, viewName, aggregation string, opts Options) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	count := maxSyncRecords
	if opts.MaxRecords > 0 {
		count = min(opts.MaxRecords, maxSyncRecords)
	}

	resp, err := o.api.GetView(ctx, viewName, aggregation, diva.QueryOptions{
		Filters: opts.Filters,
		Fields:  opts.Fields,
		SortBy:  opts.SortBy,
		Count:   count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%s: %w", viewName, aggregation, err)
	}

	result := &Result{
		ViewName:    viewName,
		Aggregation: aggregation,
		Fetched:     len(resp.Records),
		Truncated:   resp.IsMore,
	}

	if len(resp.Records) == 0 {
		logger.InfoContext(ctx, "sync fetched no records", "view", viewName, "aggregation", aggregation)
		return result, nil
	}

	// The caller's cap is authoritative even when the upstream returns
	// more than it was asked for.
	records := resp.Records
	if opts.MaxRecords > 0 && len(records) > opts.MaxRecords {
		records = records[:opts.MaxRecords]
		result.Truncated = true
	}

	stored, err := o.store.Upsert(ctx, records, viewName, aggregation)
	if err != nil {
		return nil, fmt.Errorf("failed to store records: %w", err)
	}
	result.Stored = stored

	indexed, err := o.index(ctx, records)
	if err != nil {
		// The relational rows are already committed; surface the failure
		// instead of rolling them back so a resync can reconcile.
		return nil, fmt.Errorf("records stored but vector indexing failed: %w", err)
	}
	result.Indexed = indexed

	o.snapshotStats(ctx, result)

	logger.InfoContext(ctx, "sync complete",
		"view", viewName,
		"aggregation", aggregation,
		"fetched", result.Fetched,
		"stored", result.Stored,
		"indexed", result.Indexed,
		"truncated", result.Truncated,
	)

	return result, nil
}

// Resync clears the view scope from both stores and syncs it fresh.
// This is the reconciliation path for the non-atomic dual write: it
// removes index entries for records the upstream no longer returns,
// which a plain sync would leave behind.
func (o *Orchestrator) Resync(ctx context.Context, viewName, aggregation string, opts Options) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	tokens, err := o.viewTokens(ctx, viewName)
	if err != nil {
		return nil, fmt.Errorf("failed to list view %s tokens: %w", viewName, err)
	}

	vectorsDeleted := 0
	if len(tokens) > 0 {
		vectorsDeleted, err = o.vectors.Delete(ctx, tokens)
		if err != nil {
			return nil, fmt.Errorf("failed to clear view %s from the index: %w", viewName, err)
		}
	}

	cleared, err := o.store.Clear(ctx, viewName)
	if err != nil {
		return nil, fmt.Errorf("failed to clear view %s: %w", viewName, err)
	}
	logger.InfoContext(ctx, "cleared view before resync",
		"view", viewName, "rows", cleared, "vectors", vectorsDeleted)

	result, err := o.Sync(ctx, viewName, aggregation, opts)
	if err != nil {
		return nil, err
	}
	result.Cleared = cleared
	result.VectorsDeleted = vectorsDeleted
	return result, nil
}

// snapshotStats attaches both stores' summaries to the result. A stats
// read failing after a completed sync is logged, not fatal.
func (o *Orchestrator) snapshotStats(ctx context.Context, result *Result) {
	logger := contextutil.LoggerFromContext(ctx)

	dbStats, err := o.store.Stats(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to read database stats after sync", "error", err)
	} else {
		result.Database = dbStats
	}

	info, err := o.vectors.Info(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to read collection info after sync", "error", err)
	} else {
		result.Collection = info
	}
}

// viewTokens pages through the view's stored rows and collects their
// tokens, so the matching index entries can be deleted.
func (o *Orchestrator) viewTokens(ctx context.Context, viewName string) ([]string, error) {
	var tokens []string
	filters := map[string]any{"view_name": viewName}

	for offset := 0; ; {
		page, err := o.store.Query(ctx, filters, maxSyncRecords, offset, "")
		if err != nil {
			return nil, err
		}
		for _, row := range page.Data {
			if token, ok := row["transaction_token"].(string); ok && token != "" {
				tokens = append(tokens, token)
			}
		}
		if !page.IsMore || page.Count == 0 {
			return tokens, nil
		}
		offset += page.Count
	}
}

// index composes a document per record, embeds the batch, and upserts
// the resulting points.
func (o *Orchestrator) index(ctx context.Context, records []map[string]any) (int, error) {
	docs := make([]string, len(records))
	for i, record := range records {
		docs[i] = document.Compose(record)
	}

	embeddings, err := o.embedder.EmbedTexts(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to embed documents: %w", err)
	}

	points, err := vectorstore.PointsFromTransactions(records, embeddings)
	if err != nil {
		return 0, err
	}

	if err := o.vectors.Upsert(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}
