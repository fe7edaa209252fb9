package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/config"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/diva"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/export"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/http"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/llm"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/retrieval"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
	syncpkg "github.com/zvika-finally/marqeta-diva-mcp/internal/sync"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API syncs Marqeta DiVA reporting data into local relational and
// vector stores and serves semantic search, similarity lookups, and
// structured queries over the synced transactions.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Marqeta DiVA Transaction Search API
//   description: |
//     Pulls transaction reporting data from the Marqeta DiVA API into a
//     local SQLite store and a Qdrant vector index, then answers
//     semantic and structured queries without further upstream calls.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	store := storage.NewTransactionRepo(db, cfg.DBPath)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectors, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantCollection)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	if err := vectors.EnsureCollection(ctx, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	// Reporting API client with the shared rate-limit budget
	client := diva.NewClient(cfg.MarqetaAppToken, cfg.MarqetaAccessToken, cfg.MarqetaProgram, diva.Options{
		BaseURL:              cfg.DivaBaseURL,
		RateLimit:            cfg.RateLimitMax,
		RateWindow:           cfg.RateLimitWindow,
		ValidateFilterFields: cfg.ValidateFilters,
	})
	slog.Info("Reporting API client ready", "base_url", cfg.DivaBaseURL, "program", cfg.MarqetaProgram)

	syncer := syncpkg.NewOrchestrator(client, embedder, store, vectors)
	retriever := retrieval.NewEngine(embedder, store, vectors, cfg.EmbeddingModelName)
	exporter := export.NewExporter(store)

	// Create router with dependencies
	deps := &http.Deps{
		Syncer:    syncer,
		Retriever: retriever,
		ViewsAPI:  client,
		Exporter:  exporter,
		Store:     store,
		Vectors:   vectors,
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
