package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/diva"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/export"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/retrieval"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
	syncpkg "github.com/zvika-finally/marqeta-diva-mcp/internal/sync"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/vectorstore"
)

type stubSyncer struct{}

func (stubSyncer) Sync(context.Context, string, string, syncpkg.Options) (*syncpkg.Result, error) {
	return &syncpkg.Result{}, nil
}

func (stubSyncer) Resync(context.Context, string, string, syncpkg.Options) (*syncpkg.Result, error) {
	return &syncpkg.Result{}, nil
}

type stubRetriever struct{}

func (stubRetriever) SemanticSearch(context.Context, string, int, map[string]any, bool) ([]retrieval.Match, error) {
	return []retrieval.Match{}, nil
}

func (stubRetriever) FindSimilar(context.Context, string, int, map[string]any) ([]retrieval.Match, error) {
	return []retrieval.Match{}, nil
}

func (stubRetriever) QueryLocal(context.Context, map[string]any, int, int, string) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}

func (stubRetriever) Stats(context.Context) (*retrieval.Stats, error) {
	return &retrieval.Stats{Database: &storage.Stats{}, Collection: &vectorstore.CollectionInfo{}}, nil
}

func (stubRetriever) Clear(context.Context, bool, bool) (*retrieval.ClearResult, error) {
	return &retrieval.ClearResult{}, nil
}

type stubViewsAPI struct{}

func (stubViewsAPI) GetViewsList(context.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

func (stubViewsAPI) GetViewSchema(context.Context, string, string) ([]diva.SchemaField, error) {
	return []diva.SchemaField{}, nil
}

type stubDumper struct{}

func (stubDumper) Export(_ context.Context, w io.Writer, opts export.Options) (*export.Summary, error) {
	_, _ = io.WriteString(w, "{}")
	return &export.Summary{Format: opts.Format}, nil
}

type stubStore struct{}

func (stubStore) Upsert(context.Context, []map[string]any, string, string) (int, error) {
	return 0, nil
}

func (stubStore) GetByTokens(context.Context, []string) ([]map[string]any, error) { return nil, nil }

func (stubStore) Query(context.Context, map[string]any, int, int, string) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}

func (stubStore) Stats(context.Context) (*storage.Stats, error) { return &storage.Stats{}, nil }

func (stubStore) Clear(context.Context, string) (int, error) { return 0, nil }

type stubVectors struct{}

func (stubVectors) Upsert(context.Context, []vectorstore.Point) error { return nil }

func (stubVectors) Search(context.Context, []float32, int, map[string]any) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (stubVectors) Get(context.Context, string) (*vectorstore.StoredPoint, error) { return nil, nil }

func (stubVectors) Delete(context.Context, []string) (int, error) { return 0, nil }

func (stubVectors) Clear(context.Context) error { return nil }

func (stubVectors) Info(context.Context) (*vectorstore.CollectionInfo, error) {
	return &vectorstore.CollectionInfo{}, nil
}

func testDeps() *Deps {
	return &Deps{
		Syncer:    stubSyncer{},
		Retriever: stubRetriever{},
		ViewsAPI:  stubViewsAPI{},
		Exporter:  stubDumper{},
		Store:     stubStore{},
		Vectors:   stubVectors{},
	}
}

func TestNewRouter(t *testing.T) {
	if NewRouter(testDeps()) == nil {
		t.Fatal("NewRouter() returned nil")
	}
}

func TestRouter_Routes(t *testing.T) {
	router := NewRouter(testDeps())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{
			name:       "POST /api/sync exists",
			method:     http.MethodPost,
			path:       "/api/sync",
			wantStatus: http.StatusBadRequest, // empty body, but the route exists
		},
		{
			name:       "POST /api/search exists",
			method:     http.MethodPost,
			path:       "/api/search",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "POST /api/query exists",
			method:     http.MethodPost,
			path:       "/api/query",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "POST /api/clear exists",
			method:     http.MethodPost,
			path:       "/api/clear",
			wantStatus: http.StatusOK, // empty body defaults to clearing both
		},
		{
			name:       "POST /api/export exists",
			method:     http.MethodPost,
			path:       "/api/export",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "GET /api/stats",
			method:     http.MethodGet,
			path:       "/api/stats",
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /api/views",
			method:     http.MethodGet,
			path:       "/api/views",
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET schema",
			method:     http.MethodGet,
			path:       "/api/views/authorizations/detail/schema",
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET similar",
			method:     http.MethodGet,
			path:       "/api/transactions/txn-1/similar",
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /api/health",
			method:     http.MethodGet,
			path:       "/api/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /api/sync method not allowed",
			method:     http.MethodGet,
			path:       "/api/sync",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/api/nope",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	router := NewRouter(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// Check CORS headers are present
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Router should apply CORS middleware")
	}
}
