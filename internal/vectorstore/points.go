package vectorstore

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/document"
)

// pointNamespace seeds the deterministic point IDs. Qdrant requires UUID
// point IDs, so each transaction token maps to the same UUID on every
// upsert, which is what makes re-syncs replace instead of duplicate.
var pointNamespace = uuid.MustParse("b5e9c6a4-7d2f-4c3e-9b1a-2f8d4e6c0a17")

// PointID derives the stable UUID point ID for a transaction token.
func PointID(token string) string {
	return uuid.NewSHA1(pointNamespace, []byte(token)).String()
}

// metadataFields are the projected attributes denormalized into point
// payloads for filtering, with the same fallback keys the relational
// store uses. Empty values are stripped to keep the index small.
var metadataFields = []struct {
	name string
	keys []string
}{
	{"merchant_name", []string{"merchant_name", "acquirer_merchant_name"}},
	{"transaction_amount", []string{"transaction_amount"}},
	{"transaction_type", []string{"transaction_type"}},
	{"state", []string{"state", "transaction_status"}},
	{"user_token", []string{"user_token", "acting_user_token"}},
	{"card_token", []string{"card_token"}},
	{"created_time", []string{"created_time", "transaction_timestamp"}},
	{"network", []string{"network"}},
}

// PointsFromTransactions pairs transactions with their embeddings and
// builds index points. The slices must align one-to-one; records missing
// a token are skipped together with their embedding. Non-string tokens
// are coerced to their string form.
func PointsFromTransactions(txns []map[string]any, embeddings [][]float32) ([]Point, error) {
	if len(txns) != len(embeddings) {
		return nil, fmt.Errorf("mismatch: %d transactions, %d embeddings", len(txns), len(embeddings))
	}

	points := make([]Point, 0, len(txns))
	for i, txn := range txns {
		token := coerceToken(txn["transaction_token"])
		if token == "" {
			slog.Warn("transaction missing token, skipping vector entry")
			continue
		}

		points = append(points, Point{
			Token:    token,
			Vec:      embeddings[i],
			Meta:     metadataOf(txn),
			Document: document.Compose(txn),
		})
	}

	return points, nil
}

func metadataOf(txn map[string]any) map[string]any {
	meta := make(map[string]any, len(metadataFields))
	for _, field := range metadataFields {
		for _, key := range field.keys {
			v, ok := txn[key]
			if !ok || v == nil {
				continue
			}
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			meta[field.name] = v
			break
		}
	}
	return meta
}

func coerceToken(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
