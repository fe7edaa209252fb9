package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/diva"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/vectorstore"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/vectorstore/mocks"
)

type fakeAPI struct {
	gotView string
	gotAgg  string
	gotOpts diva.QueryOptions
	resp    *diva.ViewResponse
	err     error
}

func (f *fakeAPI) GetView(_ context.Context, viewName, aggregation string, opts diva.QueryOptions) (*diva.ViewResponse, error) {
	f.gotView = viewName
	f.gotAgg = aggregation
	f.gotOpts = opts
	return f.resp, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{0.1, 0.2, 0.3}
	}
	return vecs, nil
}

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

	return storage.NewTransactionRepo(db, dbPath)
}

func syncRecords() []map[string]any {
	return []map[string]any{
		{
			"transaction_token":  "txn-1",
			"merchant_name":      "Blue Bottle Coffee",
			"transaction_amount": 4.75,
			"state":              "COMPLETION",
		},
		{
			"transaction_token":  "txn-2",
			"merchant_name":      "Whole Foods",
			"transaction_amount": 92.40,
			"state":              "PENDING",
		},
	}
}

func TestSyncWritesBothStores(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	api := &fakeAPI{resp: &diva.ViewResponse{Records: syncRecords(), Count: 2}}
	store := newTestStore(t)
	vectors := mocks.NewMockVectorStore(ctrl)

	vectors.EXPECT().
		Upsert(gomock.Any(), gomock.Len(2)).
		DoAndReturn(func(_ context.Context, points []vectorstore.Point) error {
			if points[0].Token != "txn-1" || points[1].Token != "txn-2" {
				t.Errorf("point tokens = %q, %q", points[0].Token, points[1].Token)
			}
			if points[0].Document == "" {
				t.Error("point document is empty")
			}
			return nil
		})
	vectors.EXPECT().Info(gomock.Any()).Return(&vectorstore.CollectionInfo{
		CollectionName: "marqeta_transactions",
		Count:          2,
		Status:         "green",
	}, nil)

	o := NewOrchestrator(api, &fakeEmbedder{}, store, vectors)
	result, err := o.Sync(ctx, "authorizations", "detail", Options{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if result.Fetched != 2 || result.Stored != 2 || result.Indexed != 2 {
		t.Errorf("result = %+v, want 2 fetched/stored/indexed", result)
	}
	if result.Truncated {
		t.Error("Truncated = true, want false")
	}
	if result.Database == nil || result.Database.TotalTransactions != 2 {
		t.Errorf("Database = %+v, want 2 total transactions", result.Database)
	}
	if result.Collection == nil || result.Collection.Count != 2 {
		t.Errorf("Collection = %+v, want 2 indexed points", result.Collection)
	}

	rows, err := store.GetByTokens(ctx, []string{"txn-1", "txn-2"})
	if err != nil {
		t.Fatalf("GetByTokens() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("relational rows = %d, want 2", len(rows))
	}
}

func TestSyncBoundsFetchCount(t *testing.T) {
	tests := []struct {
		name       string
		maxRecords int
		wantCount  int
	}{
		{"default bound", 0, 10000},
		{"explicit cap", 500, 500},
		{"over the bound", 50000, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			api := &fakeAPI{resp: &diva.ViewResponse{}}
			o := NewOrchestrator(api, &fakeEmbedder{}, newTestStore(t), mocks.NewMockVectorStore(ctrl))

			if _, err := o.Sync(context.Background(), "authorizations", "detail", Options{MaxRecords: tt.maxRecords}); err != nil {
				t.Fatalf("Sync() error = %v", err)
			}
			if api.gotOpts.Count != tt.wantCount {
				t.Errorf("Count = %d, want %d", api.gotOpts.Count, tt.wantCount)
			}
		})
	}
}

func TestSyncEmptyUpstreamIsNotAnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := &fakeAPI{resp: &diva.ViewResponse{}}
	vectors := mocks.NewMockVectorStore(ctrl)
	// No Upsert expectation: nothing should touch the index.

	o := NewOrchestrator(api, &fakeEmbedder{}, newTestStore(t), vectors)
	result, err := o.Sync(context.Background(), "authorizations", "detail", Options{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Fetched != 0 || result.Stored != 0 || result.Indexed != 0 {
		t.Errorf("result = %+v, want all zero", result)
	}
}

func TestSyncReportsTruncation(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := &fakeAPI{resp: &diva.ViewResponse{Records: syncRecords(), IsMore: true}}
	vectors := mocks.NewMockVectorStore(ctrl)
	vectors.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
	vectors.EXPECT().Info(gomock.Any()).Return(&vectorstore.CollectionInfo{}, nil)

	o := NewOrchestrator(api, &fakeEmbedder{}, newTestStore(t), vectors)
	result, err := o.Sync(context.Background(), "authorizations", "detail", Options{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !result.Truncated {
		t.Error("Truncated = false, want true when upstream has more")
	}
}

func TestSyncTruncatesOvershoot(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	overshoot := []map[string]any{
		{"transaction_token": "txn-1", "merchant_name": "Blue Bottle Coffee"},
		{"transaction_token": "txn-2", "merchant_name": "Whole Foods"},
		{"transaction_token": "txn-3", "merchant_name": "Shell"},
		{"transaction_token": "txn-4", "merchant_name": "Target"},
		{"transaction_token": "txn-5", "merchant_name": "Safeway"},
	}
	api := &fakeAPI{resp: &diva.ViewResponse{Records: overshoot, Count: 5}}
	store := newTestStore(t)
	vectors := mocks.NewMockVectorStore(ctrl)
	vectors.EXPECT().Upsert(gomock.Any(), gomock.Len(3)).Return(nil)
	vectors.EXPECT().Info(gomock.Any()).Return(&vectorstore.CollectionInfo{Count: 3}, nil)

	o := NewOrchestrator(api, &fakeEmbedder{}, store, vectors)
	result, err := o.Sync(ctx, "authorizations", "detail", Options{MaxRecords: 3})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if result.Stored != 3 || result.Indexed != 3 {
		t.Errorf("result = %+v, want 3 stored/indexed despite 5 returned", result)
	}
	if !result.Truncated {
		t.Error("Truncated = false, want true when the excess was dropped")
	}

	rows, err := store.GetByTokens(ctx, []string{"txn-1", "txn-2", "txn-3", "txn-4", "txn-5"})
	if err != nil {
		t.Fatalf("GetByTokens() error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("relational rows = %d, want only the capped 3", len(rows))
	}
}

func TestSyncVectorFailureKeepsRelationalRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	api := &fakeAPI{resp: &diva.ViewResponse{Records: syncRecords()}}
	store := newTestStore(t)
	vectors := mocks.NewMockVectorStore(ctrl)
	vectors.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("qdrant down"))

	o := NewOrchestrator(api, &fakeEmbedder{}, store, vectors)
	if _, err := o.Sync(ctx, "authorizations", "detail", Options{}); err == nil {
		t.Fatal("Sync() expected error when indexing fails")
	}

	// The dual write is not atomic: the committed rows stay.
	rows, err := store.GetByTokens(ctx, []string{"txn-1", "txn-2"})
	if err != nil {
		t.Fatalf("GetByTokens() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("relational rows = %d, want 2 kept after vector failure", len(rows))
	}
}

func TestSyncEmbedderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := &fakeAPI{resp: &diva.ViewResponse{Records: syncRecords()}}

	o := NewOrchestrator(api, &fakeEmbedder{err: errors.New("model offline")}, newTestStore(t), mocks.NewMockVectorStore(ctrl))
	if _, err := o.Sync(context.Background(), "authorizations", "detail", Options{}); err == nil {
		t.Fatal("Sync() expected error when embedding fails")
	}
}

func TestSyncUpstreamFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := &fakeAPI{err: errors.New("upstream 500")}

	o := NewOrchestrator(api, &fakeEmbedder{}, newTestStore(t), mocks.NewMockVectorStore(ctrl))
	if _, err := o.Sync(context.Background(), "authorizations", "detail", Options{}); err == nil {
		t.Fatal("Sync() expected error when the fetch fails")
	}
}

func TestResyncClearsViewFirst(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	store := newTestStore(t)
	if _, err := store.Upsert(ctx, []map[string]any{
		{"transaction_token": "stale-1"},
		{"transaction_token": "stale-2"},
	}, "authorizations", "detail"); err != nil {
		t.Fatalf("seed Upsert() error = %v", err)
	}

	api := &fakeAPI{resp: &diva.ViewResponse{Records: syncRecords()}}
	vectors := mocks.NewMockVectorStore(ctrl)
	vectors.EXPECT().
		Delete(gomock.Any(), gomock.InAnyOrder([]string{"stale-1", "stale-2"})).
		Return(2, nil)
	vectors.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
	vectors.EXPECT().Info(gomock.Any()).Return(&vectorstore.CollectionInfo{}, nil)

	o := NewOrchestrator(api, &fakeEmbedder{}, store, vectors)
	result, err := o.Resync(ctx, "authorizations", "detail", Options{})
	if err != nil {
		t.Fatalf("Resync() error = %v", err)
	}
	if result.Cleared != 2 {
		t.Errorf("Cleared = %d, want 2 stale rows", result.Cleared)
	}
	if result.VectorsDeleted != 2 {
		t.Errorf("VectorsDeleted = %d, want 2", result.VectorsDeleted)
	}

	stale, err := store.GetByTokens(ctx, []string{"stale-1", "stale-2"})
	if err != nil {
		t.Fatalf("GetByTokens() error = %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("stale rows = %d, want 0 after resync", len(stale))
	}
}
