package retrieval

import (
	"context"
	"fmt"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/vectorstore"
)

const defaultK = 10

// Embedder turns a search query into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Engine answers retrieval questions over the synced stores: semantic
// search through the vector index, enrichment from the relational
// store, and structured queries straight against it.
type Engine struct {
	embedder Embedder
	store    storage.TransactionStore
	vectors  vectorstore.VectorStore
	model    string
}

// NewEngine creates an Engine. model is the embedding model name,
// reported in stats so callers can tell which model produced the index.
func NewEngine(embedder Embedder, store storage.TransactionStore, vectors vectorstore.VectorStore, model string) *Engine {
	return &Engine{
		embedder: embedder,
		store:    store,
		vectors:  vectors,
		model:    model,
	}
}

// SemanticSearch embeds the query, searches the index, and when enrich
// is set attaches each hit's full stored payload. Hits whose payload is
// missing from the relational store are kept with what the index carries.
func (e *Engine) SemanticSearch(ctx context.Context, query string, k int, filter map[string]any, enrich bool) ([]Match, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if k <= 0 {
		k = defaultK
	}

	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := e.vectors.Search(ctx, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if !enrich {
		return bareMatches(hits), nil
	}
	return e.enrich(ctx, hits)
}

// FindSimilar looks up the stored embedding for a transaction and
// searches for its nearest neighbors, excluding the transaction itself.
func (e *Engine) FindSimilar(ctx context.Context, token string, k int, filter map[string]any) ([]Match, error) {
	if k <= 0 {
		k = defaultK
	}

	point, err := e.vectors.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", token, err)
	}
	if point == nil {
		return nil, fmt.Errorf("transaction %s is not indexed", token)
	}

	// Fetch one extra because the transaction matches itself perfectly.
	hits, err := e.vectors.Search(ctx, point.Vec, k+1, filter)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	neighbors := make([]vectorstore.SearchResult, 0, k)
	for _, hit := range hits {
		if hit.Token == token {
			continue
		}
		neighbors = append(neighbors, hit)
		if len(neighbors) == k {
			break
		}
	}

	return e.enrich(ctx, neighbors)
}

// QueryLocal runs a structured filter query against the relational
// store. No upstream call is made.
func (e *Engine) QueryLocal(ctx context.Context, filters map[string]any, limit, offset int, orderBy string) (*storage.QueryResult, error) {
	return e.store.Query(ctx, filters, limit, offset, orderBy)
}

// Stats snapshots both stores.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	dbStats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read database stats: %w", err)
	}

	info, err := e.vectors.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection info: %w", err)
	}

	return &Stats{Database: dbStats, Collection: info, EmbeddingModel: e.model}, nil
}

// Clear wipes the selected stores. Both default to true at the API
// surface; either side can be targeted alone.
func (e *Engine) Clear(ctx context.Context, clearDatabase, clearVectors bool) (*ClearResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	result := &ClearResult{}

	if clearDatabase {
		deleted, err := e.store.Clear(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to clear database: %w", err)
		}
		result.RowsDeleted = deleted
	}

	if clearVectors {
		if err := e.vectors.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear vector index: %w", err)
		}
		result.VectorsCleared = true
	}

	logger.InfoContext(ctx, "stores cleared",
		"rows_deleted", result.RowsDeleted,
		"vectors_cleared", result.VectorsCleared,
	)
	return result, nil
}

// bareMatches converts index hits without touching the relational store.
func bareMatches(hits []vectorstore.SearchResult) []Match {
	matches := make([]Match, len(hits))
	for i, hit := range hits {
		matches[i] = Match{
			Token:    hit.Token,
			Score:    hit.Score,
			Document: hit.Document,
			Meta:     hit.Meta,
		}
	}
	return matches
}

// enrich joins index hits with their full relational payloads.
func (e *Engine) enrich(ctx context.Context, hits []vectorstore.SearchResult) ([]Match, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(hits) == 0 {
		return []Match{}, nil
	}

	tokens := make([]string, len(hits))
	for i, hit := range hits {
		tokens[i] = hit.Token
	}

	rows, err := e.store.GetByTokens(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich results: %w", err)
	}

	byToken := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		if token, ok := row["transaction_token"].(string); ok {
			byToken[token] = row
		}
	}

	matches := make([]Match, len(hits))
	for i, hit := range hits {
		match := Match{
			Token:    hit.Token,
			Score:    hit.Score,
			Document: hit.Document,
			Meta:     hit.Meta,
		}
		if row, ok := byToken[hit.Token]; ok {
			match.Transaction = row
		} else {
			logger.WarnContext(ctx, "indexed transaction missing from database", "token", hit.Token)
		}
		matches[i] = match
	}

	return matches, nil
}
