package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/handlers"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/storage"
	"github.com/zvika-finally/marqeta-diva-mcp/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Syncer    handlers.Syncer
	Retriever handlers.Retriever
	ViewsAPI  handlers.ViewsAPI
	Exporter  handlers.Dumper
	Store     storage.TransactionStore
	Vectors   vectorstore.VectorStore
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	syncHandler := handlers.NewSyncHandler(deps.Syncer)
	searchHandler := handlers.NewSearchHandler(deps.Retriever)
	similarHandler := handlers.NewSimilarHandler(deps.Retriever)
	queryHandler := handlers.NewQueryHandler(deps.Retriever)
	statsHandler := handlers.NewStatsHandler(deps.Retriever)
	clearHandler := handlers.NewClearHandler(deps.Retriever)
	exportHandler := handlers.NewExportHandler(deps.Exporter)
	viewsHandler := handlers.NewViewsHandler(deps.ViewsAPI)
	schemaHandler := handlers.NewSchemaHandler(deps.ViewsAPI)
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Vectors)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/sync", syncHandler)
		r.Method(http.MethodPost, "/search", searchHandler)
		r.Method(http.MethodPost, "/query", queryHandler)
		r.Method(http.MethodPost, "/clear", clearHandler)
		r.Method(http.MethodPost, "/export", exportHandler)
		r.Method(http.MethodGet, "/transactions/{token}/similar", similarHandler)
		r.Method(http.MethodGet, "/stats", statsHandler)
		r.Method(http.MethodGet, "/views", viewsHandler)
		r.Method(http.MethodGet, "/views/{view}/{aggregation}/schema", schemaHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
