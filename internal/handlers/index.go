package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"codeindex/internal/contextutil"
	"codeindex/internal/indexer"
)

// Indexer runs full indexing passes and reports statistics.
type Indexer interface {
	IndexAll(ctx context.Context) error
	Stats(ctx context.Context) (*indexer.IndexingCoverageStats, error)
}

// IndexRunner runs at most one full indexing pass at a time in the
// background. Runs stop when the base context is cancelled.
type IndexRunner struct {
	base    context.Context
	indexer Indexer
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewIndexRunner creates a runner whose runs inherit ctx.
func NewIndexRunner(ctx context.Context, idx Indexer) *IndexRunner {
	return &IndexRunner{base: ctx, indexer: idx}
}

// Start begins a run unless one is in progress and reports whether it did.
func (r *IndexRunner) Start(logger *slog.Logger) bool {
	if !r.running.CompareAndSwap(false, true) {
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)

		ctx := contextutil.WithLogger(r.base, logger)
		if err := r.indexer.IndexAll(ctx); err != nil {
			logger.ErrorContext(ctx, "re-indexing completed with errors", "error", err)
			return
		}
		logger.InfoContext(ctx, "re-indexing completed successfully")
	}()
	return true
}

// Running reports whether a run is in progress.
func (r *IndexRunner) Running() bool {
	return r.running.Load()
}

// Wait blocks until the current run, if any, has finished.
func (r *IndexRunner) Wait() {
	r.wg.Wait()
}

// IndexHandler handles HTTP requests for triggering re-indexing.
type IndexHandler struct {
	runner *IndexRunner
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(runner *IndexRunner) *IndexHandler {
	return &IndexHandler{runner: runner}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP triggers a full re-index and returns immediately.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !h.runner.Start(logger) {
		writeJSON(w, http.StatusConflict, IndexResponse{
			Message: "Indexing is already running.",
			Status:  "running",
		})
		return
	}

	logger.InfoContext(ctx, "re-indexing triggered via API")
	writeJSON(w, http.StatusAccepted, IndexResponse{
		Message: "Indexing started. Check server logs for progress.",
		Status:  "accepted",
	})
}

// StatsHandler serves indexing statistics.
type StatsHandler struct {
	indexer Indexer
	runner  *IndexRunner
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(idx Indexer, runner *IndexRunner) *StatsHandler {
	return &StatsHandler{indexer: idx, runner: runner}
}

// StatsResponse wraps indexing statistics with the run state.
type StatsResponse struct {
	Indexing bool `json:"indexing"`
	*indexer.IndexingCoverageStats
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	stats, err := h.indexer.Stats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Indexing:              h.runner.Running(),
		IndexingCoverageStats: stats,
	})
}
