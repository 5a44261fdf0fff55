package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"codeindex/internal/handlers"
	"codeindex/internal/indexer"
	"codeindex/internal/tokens"
	"codeindex/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DB          handlers.Pinger
	VectorStore vectorstore.VectorStore
	Collections *vectorstore.Collections
	Runner      *handlers.IndexRunner
	Indexer     handlers.Indexer
	Searcher    handlers.Searcher
	ModelRouter handlers.ModelRouter
	Roots       handlers.RootManager
	ChunkConfig indexer.Config
	Estimator   tokens.Estimator
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.VectorStore, deps.Collections)
	indexHandler := handlers.NewIndexHandler(deps.Runner)
	statsHandler := handlers.NewStatsHandler(deps.Indexer, deps.Runner)
	routeHandler := handlers.NewRouteHandler(deps.ModelRouter)
	chunkHandler := handlers.NewChunkHandler(deps.ChunkConfig, deps.Estimator)
	searchHandler := handlers.NewSearchHandler(deps.Searcher)
	rootsHandler := handlers.NewRootsHandler(deps.Roots, deps.Runner)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodPost, "/index", indexHandler)
		r.Method(http.MethodGet, "/index/stats", statsHandler)
		r.Method(http.MethodPost, "/route", routeHandler)
		r.Method(http.MethodPost, "/chunk", chunkHandler)
		r.Method(http.MethodPost, "/search", searchHandler)
		r.Method(http.MethodGet, "/roots", rootsHandler)
		r.Method(http.MethodPost, "/roots", rootsHandler)
		r.Method(http.MethodDelete, "/roots", rootsHandler)
	})

	return r
}
