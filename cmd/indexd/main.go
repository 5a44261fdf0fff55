package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeindex/internal/config"
	"codeindex/internal/handlers"
	"codeindex/internal/http"
	"codeindex/internal/indexer"
	"codeindex/internal/llm"
	"codeindex/internal/router"
	"codeindex/internal/search"
	"codeindex/internal/storage"
	"codeindex/internal/tokens"
	"codeindex/internal/vectorstore"
	"codeindex/internal/watcher"
	"codeindex/internal/workspace"
)

// General API information
//
// This API indexes source and documentation trees into per-model vector
// collections, keeps them current as files change, and serves search.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: codeindex API
//   version: 1.0.0
// schemes:
//   - http
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	// Create repository instances
	rootRepo := storage.NewRootRepo(db)
	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	// Initialize Qdrant vector store; collections are created per model on first use
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()
	collections := vectorstore.NewCollections(cfg.QdrantCollection, vectorStore)

	// Embedding backends are created lazily, one per model
	var multiOpts []llm.MultiOption
	if cfg.ForcedModel != nil {
		multiOpts = append(multiOpts, llm.WithForcedModel(*cfg.ForcedModel))
	}
	embedder := llm.NewMultiEmbedder(llm.NewHTTPBackendFactory(cfg.Endpoints()), multiOpts...)

	estimator, err := tokens.New(cfg.Tokenizer)
	if err != nil {
		log.Fatalf("Failed to create tokenizer %q: %v", cfg.Tokenizer, err)
	}
	chunker, err := indexer.NewChunker(cfg.Chunking(), estimator, indexer.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create chunker: %v", err)
	}

	// Watch roots and restore the ones stored by earlier runs
	fileWatcher, err := watcher.New(
		watcher.WithDebounce(cfg.WatchDebounce),
		watcher.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create file watcher: %v", err)
	}
	defer func() {
		_ = fileWatcher.Close()
	}()

	roots, err := workspace.NewManager(ctx, rootRepo, fileWatcher, workspace.NewScanner(fileWatcher.Filter()), cfg.WatchRoots)
	if err != nil {
		log.Fatalf("Failed to initialize workspace: %v", err)
	}
	slog.Info("Workspace initialized", "roots", roots.Paths())

	pipeline := indexer.NewPipeline(
		roots,
		docRepo,
		chunkRepo,
		embedder,
		vectorStore,
		collections,
		chunker,
		indexer.WithWorkers(cfg.IndexWorkers),
	)

	searchEngine := search.NewEngine(embedder, vectorStore, collections, chunkRepo)
	runner := handlers.NewIndexRunner(ctx, pipeline)

	deps := &http.Deps{
		DB:          db,
		VectorStore: vectorStore,
		Collections: collections,
		Runner:      runner,
		Indexer:     pipeline,
		Searcher:    searchEngine,
		ModelRouter: embedder,
		Roots:       roots,
		ChunkConfig: cfg.Chunking(),
		Estimator:   estimator,
	}
	srv := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           http.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Load the model most likely to be needed first so the first query does not pay for it
	go func() {
		model := router.DefaultModel
		if forced, ok := embedder.Forced(); ok {
			model = forced
		}
		if err := embedder.Warmup(ctx, model); err != nil {
			slog.Warn("Embedding model warmup failed", "model", model.String(), "error", err)
		}
	}()

	// Initial full run, then keep the index current from file events
	slog.Info("Starting background indexing of watch roots")
	runner.Start(logger)

	go func() {
		err := fileWatcher.Run(ctx, cfg.WatchPollInterval, func(ctx context.Context, events []watcher.FileEvent) {
			if err := pipeline.HandleEvents(ctx, events); err != nil {
				slog.Error("Failed to apply file events", "events", len(events), "error", err)
			}
		})
		if err != nil {
			slog.Error("File watcher stopped", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	runner.Wait()
}
