package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/contextutil"
)

// Payload keys reserved for the entry itself rather than its filterable
// metadata.
const (
	payloadTokenKey    = "transaction_token"
	payloadDocumentKey = "document"
)

// QdrantStore implements VectorStore over one Qdrant collection.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	vectorSize int
}

// NewQdrantStore creates a Qdrant-backed store bound to a collection.
// urlStr should be in the format "http://host:port" (e.g.,
// "http://localhost:6333"); the gRPC port is derived from the HTTP port.
func NewQdrantStore(urlStr, collection string) (*QdrantStore, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	// gRPC port is typically HTTP port + 1
	port := 6334
	if parsedURL.Port() != "" {
		if httpPort, err := strconv.Atoi(parsedURL.Port()); err == nil {
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// EnsureCollection creates the collection with the given vector size if
// absent, or validates the size when it already exists. Cosine distance
// throughout; the similarity score is only a relative ranking.
func (s *QdrantStore) EnsureCollection(ctx context.Context, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)
	s.vectorSize = vectorSize

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		logger.InfoContext(ctx, "collection created", "collection", s.collection, "vector_size", vectorSize)
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	actual := collectionVectorSize(info)
	if actual == 0 {
		return fmt.Errorf("could not determine collection vector size")
	}
	if actual != vectorSize {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, actual)
	}

	return nil
}

// Upsert inserts or replaces points; same token, same point ID, so the
// last write wins.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		payload := make(map[string]any, len(point.Meta)+2)
		for k, v := range point.Meta {
			payload[k] = v
		}
		payload[payloadTokenKey] = point.Token
		if point.Document != "" {
			payload[payloadDocumentKey] = point.Document
		}

		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(point.Token)),
			Vectors: qdrant.NewVectors(point.Vec...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", s.collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", s.collection, "count", len(points))
	return nil
}

// Search performs metadata-filtered similarity search.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k int, filter map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	limit := uint64(k)
	queryReq := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if qf := buildFilter(filter); qf != nil {
		queryReq.Filter = qf
	}

	scoredPoints, err := s.client.Query(ctx, queryReq)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", s.collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		token, meta, doc := splitPayload(point.Payload)
		results = append(results, SearchResult{
			Token:    token,
			Score:    point.Score,
			Meta:     meta,
			Document: doc,
		})
	}

	return results, nil
}

// Get returns the stored point with its embedding, or nil when the
// token is not indexed.
func (s *QdrantStore) Get(ctx context.Context, token string) (*StoredPoint, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(PointID(token))},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get point: %w", err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	point := points[0]
	_, meta, doc := splitPayload(point.Payload)

	var vec []float32
	if vectors := point.Vectors.GetVector(); vectors != nil {
		vec = vectors.Data
	}

	return &StoredPoint{
		Token:    token,
		Vec:      vec,
		Meta:     meta,
		Document: doc,
	}, nil
}

// Delete removes entries by token.
func (s *QdrantStore) Delete(ctx context.Context, tokens []string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(tokens) == 0 {
		return 0, nil
	}

	ids := make([]*qdrant.PointId, 0, len(tokens))
	for _, token := range tokens {
		ids = append(ids, qdrant.NewID(PointID(token)))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", s.collection, "count", len(tokens), "error", err)
		return 0, fmt.Errorf("failed to delete points: %w", err)
	}

	logger.InfoContext(ctx, "deleted points", "collection", s.collection, "count", len(tokens))
	return len(tokens), nil
}

// Clear drops the collection and recreates it empty, keeping the store
// usable without a restart.
func (s *QdrantStore) Clear(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	logger.InfoContext(ctx, "collection cleared", "collection", s.collection)

	if s.vectorSize > 0 {
		return s.EnsureCollection(ctx, s.vectorSize)
	}
	return nil
}

// Info reports point count and status; a missing collection reads as
// not initialized rather than an error.
func (s *QdrantStore) Info(ctx context.Context) (*CollectionInfo, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return &CollectionInfo{CollectionName: s.collection, Status: "not_initialized"}, nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	count := 0
	if info.PointsCount != nil {
		count = int(*info.PointsCount)
	}
	status := "unknown"
	if info.Status != 0 {
		status = info.Status.String()
	}

	return &CollectionInfo{
		CollectionName: s.collection,
		Count:          count,
		Status:         status,
	}, nil
}

// buildFilter translates the loose metadata filter into Qdrant
// conditions. Scalars are exact matches; sub-maps carry range operators
// in either SQL-style (">=") or ChromaDB-style ("$gte") spellings.
func buildFilter(filter map[string]any) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	var must []*qdrant.Condition
	for field, value := range filter {
		subMap, ok := value.(map[string]any)
		if !ok {
			if cond := matchCondition(field, value); cond != nil {
				must = append(must, cond)
			}
			continue
		}

		rng := &qdrant.Range{}
		bounded := false
		for opKey, opValue := range subMap {
			num, isNum := toFloat64(opValue)
			switch opKey {
			case ">", "$gt":
				if isNum {
					rng.Gt = &num
					bounded = true
				}
			case ">=", "$gte":
				if isNum {
					rng.Gte = &num
					bounded = true
				}
			case "<", "$lt":
				if isNum {
					rng.Lt = &num
					bounded = true
				}
			case "<=", "$lte":
				if isNum {
					rng.Lte = &num
					bounded = true
				}
			case "=", "$eq":
				if cond := matchCondition(field, opValue); cond != nil {
					must = append(must, cond)
				}
			}
		}
		if bounded {
			must = append(must, qdrant.NewRange(field, rng))
		}
	}

	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func matchCondition(field string, value any) *qdrant.Condition {
	switch v := value.(type) {
	case string:
		return qdrant.NewMatch(field, v)
	case bool:
		return qdrant.NewMatchBool(field, v)
	default:
		if num, ok := toFloat64(value); ok {
			return qdrant.NewRange(field, &qdrant.Range{Gte: &num, Lte: &num})
		}
		return nil
	}
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// splitPayload separates the reserved entry keys from the filterable
// metadata.
func splitPayload(payload map[string]*qdrant.Value) (token string, meta map[string]any, doc string) {
	meta = make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		switch k {
		case payloadTokenKey:
			token, _ = convertValue(v).(string)
		case payloadDocumentKey:
			doc, _ = convertValue(v).(string)
		default:
			meta[k] = convertValue(v)
		}
	}
	return token, meta, doc
}

// convertValue converts a Qdrant Value to a Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		nested := make(map[string]any, len(val.StructValue.Fields))
		for k, item := range val.StructValue.Fields {
			if item != nil {
				nested[k] = convertValue(item)
			}
		}
		return nested
	default:
		return nil
	}
}

// collectionVectorSize digs the configured vector size out of the
// collection info.
func collectionVectorSize(info *qdrant.CollectionInfo) int {
	config := info.Config
	if config == nil || config.Params == nil {
		return 0
	}
	vectorsConfig := config.Params.GetVectorsConfig()
	if vectorsConfig == nil {
		return 0
	}
	params := vectorsConfig.GetParams()
	if params == nil {
		return 0
	}
	return int(params.Size)
}
