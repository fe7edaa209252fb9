package retrieval

import (
	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/vectorstore"
)

// Match is one retrieval hit: the ranked index entry enriched with the
// full stored payload. Score is cosine similarity and only meaningful
// as a relative ranking within one result set. Transaction is nil when
// the index and the relational store have drifted apart; Meta and
// Document still carry the indexed subset.
type Match struct {
	Token       string         `json:"transaction_token"`
	Score       float32        `json:"score"`
	Document    string         `json:"document"`
	Meta        map[string]any `json:"metadata,omitempty"`
	Transaction map[string]any `json:"transaction,omitempty"`
}

// Stats combines both stores' health into one snapshot.
type Stats struct {
	Database       *storage.Stats              `json:"database"`
	Collection     *vectorstore.CollectionInfo `json:"collection"`
	EmbeddingModel string                      `json:"embedding_model,omitempty"`
}

// ClearResult reports what a clear touched.
type ClearResult struct {
	RowsDeleted    int  `json:"rows_deleted"`
	VectorsCleared bool `json:"vectors_cleared"`
}
