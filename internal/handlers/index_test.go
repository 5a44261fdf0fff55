package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeindex/internal/indexer"
)

type fakeIndexer struct {
	release  chan struct{}
	calls    int
	err      error
	stats    *indexer.IndexingCoverageStats
	statsErr error
}

func (f *fakeIndexer) IndexAll(ctx context.Context) error {
	f.calls++
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeIndexer) Stats(context.Context) (*indexer.IndexingCoverageStats, error) {
	return f.stats, f.statsErr
}

func TestIndexRunner_SingleRun(t *testing.T) {
	idx := &fakeIndexer{release: make(chan struct{})}
	runner := NewIndexRunner(context.Background(), idx)

	if !runner.Start(slog.Default()) {
		t.Fatal("first Start() should begin a run")
	}
	if runner.Start(slog.Default()) {
		t.Error("second Start() during a run should be refused")
	}
	if !runner.Running() {
		t.Error("Running() should be true during a run")
	}

	close(idx.release)
	runner.Wait()

	if runner.Running() {
		t.Error("Running() should be false after the run")
	}
	if idx.calls != 1 {
		t.Errorf("IndexAll called %d times, want 1", idx.calls)
	}
}

func TestIndexRunner_StopsWithBaseContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	idx := &fakeIndexer{release: make(chan struct{}), err: errors.New("unused")}
	runner := NewIndexRunner(ctx, idx)

	runner.Start(slog.Default())
	cancel()
	runner.Wait()

	if runner.Running() {
		t.Error("run should end when the base context is cancelled")
	}
}

func TestIndexHandler(t *testing.T) {
	idx := &fakeIndexer{release: make(chan struct{})}
	runner := NewIndexRunner(context.Background(), idx)
	handler := NewIndexHandler(runner)

	tests := []struct {
		name       string
		method     string
		wantStatus int
	}{
		{name: "GET not allowed", method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
		{name: "POST starts a run", method: http.MethodPost, wantStatus: http.StatusAccepted},
		{name: "POST while running conflicts", method: http.MethodPost, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, "/api/index", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}

	close(idx.release)
	runner.Wait()
}

func TestStatsHandler(t *testing.T) {
	idx := &fakeIndexer{stats: &indexer.IndexingCoverageStats{DocsProcessed: 3, IndexVersion: "abc"}}
	handler := NewStatsHandler(idx, NewIndexRunner(context.Background(), idx))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/index/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["docs_processed"] != float64(3) || resp["index_version"] != "abc" || resp["indexing"] != false {
		t.Errorf("response = %v", resp)
	}

	idx.statsErr = errors.New("db closed")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/index/stats", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
