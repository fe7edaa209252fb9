package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks github.com/zvika-finally/marqeta-diva-mcp/internal/vectorstore VectorStore

import "context"

// Point is one transaction entry in the vector index: a fixed-length
// embedding plus the filterable metadata subset and the composed
// document text it was embedded from.
type Point struct {
	Token    string
	Vec      []float32
	Meta     map[string]any
	Document string
}

// SearchResult is a ranked similarity hit. Score is the engine's cosine
// similarity, meaningful as a relative ranking only.
type SearchResult struct {
	Token    string
	Score    float32
	Meta     map[string]any
	Document string
}

// StoredPoint is a point lookup result including its embedding.
type StoredPoint struct {
	Token    string
	Vec      []float32
	Meta     map[string]any
	Document string
}

// CollectionInfo summarizes the indexed collection.
type CollectionInfo struct {
	CollectionName string `json:"collection_name"`
	Count          int    `json:"count"`
	Status         string `json:"status"`
}

// VectorStore is the approximate-similarity store over transaction
// embeddings. An entry is keyed by transaction token; writing the same
// token again replaces the prior entry.
type VectorStore interface {
	// Upsert inserts or replaces points.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to k hits ranked by similarity, optionally
	// restricted by an exact-match/range metadata filter. An empty index
	// or zero hits yields an empty slice, never an error.
	Search(ctx context.Context, query []float32, k int, filter map[string]any) ([]SearchResult, error)

	// Get returns the stored point for a token, or nil when absent.
	Get(ctx context.Context, token string) (*StoredPoint, error)

	// Delete removes entries by token and returns how many were requested.
	Delete(ctx context.Context, tokens []string) (int, error)

	// Clear removes every indexed entry. Irreversible.
	Clear(ctx context.Context) error

	// Info reports the collection name, point count, and status.
	Info(ctx context.Context) (*CollectionInfo, error)
}
