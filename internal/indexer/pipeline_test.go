package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"codeindex/internal/router"
	"codeindex/internal/storage"
	storage_mocks "codeindex/internal/storage/mocks"
	"codeindex/internal/tokens"
	"codeindex/internal/vectorstore"
	vectorstore_mocks "codeindex/internal/vectorstore/mocks"
	"codeindex/internal/watcher"
	"codeindex/internal/workspace"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  [][]string
	err    error
	forced *router.EmbeddingModel
}

func (f *fakeEmbedder) ModelForPath(path string) router.EmbeddingModel {
	if f.forced != nil {
		return *f.forced
	}
	return router.RecommendedModel(router.ClassifyPath(path))
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, path string, texts []string) ([][]float32, router.EmbeddingModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.ModelForPath(path), f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i), 1, 0}
	}
	return vecs, f.ModelForPath(path), nil
}

func (f *fakeEmbedder) Forced() (router.EmbeddingModel, bool) {
	if f.forced != nil {
		return *f.forced, true
	}
	return 0, false
}

type fakeEnsurer struct{}

func (fakeEnsurer) EnsureCollection(context.Context, string, int) error { return nil }

type fakeFiles struct {
	files []workspace.ScannedFile
	err   error
}

func (f *fakeFiles) ScanAll(context.Context) ([]workspace.ScannedFile, error) {
	return f.files, f.err
}

type pipelineMocks struct {
	docs     *storage_mocks.MockDocumentStore
	chunks   *storage_mocks.MockChunkStore
	vectors  *vectorstore_mocks.MockVectorStore
	embedder *fakeEmbedder
	files    *fakeFiles
}

func testChunker(t *testing.T) *Chunker {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MinTokens = 0
	c, err := NewChunker(cfg, tokens.Heuristic{})
	if err != nil {
		t.Fatalf("NewChunker() error = %v", err)
	}
	return c
}

func newTestPipeline(t *testing.T, ctrl *gomock.Controller) (*Pipeline, *pipelineMocks) {
	t.Helper()
	m := &pipelineMocks{
		docs:     storage_mocks.NewMockDocumentStore(ctrl),
		chunks:   storage_mocks.NewMockChunkStore(ctrl),
		vectors:  vectorstore_mocks.NewMockVectorStore(ctrl),
		embedder: &fakeEmbedder{},
		files:    &fakeFiles{},
	}
	p := NewPipeline(
		m.files,
		m.docs,
		m.chunks,
		m.embedder,
		m.vectors,
		vectorstore.NewCollections("chunks", fakeEnsurer{}),
		testChunker(t),
		WithWorkers(2),
	)
	return p, m
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func sha(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}

func TestNewPipeline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, _ := newTestPipeline(t, ctrl)
	if pipeline == nil {
		t.Fatal("NewPipeline() returned nil")
	}
	if pipeline.chunker == nil {
		t.Error("NewPipeline() chunker should not be nil")
	}
	if pipeline.workers != 2 {
		t.Errorf("NewPipeline() workers = %d, want 2", pipeline.workers)
	}

	defaults := NewPipeline(nil, nil, nil, nil, nil, nil, testChunker(t), WithWorkers(0))
	if defaults.workers != DefaultWorkers {
		t.Errorf("WithWorkers(0) workers = %d, want %d", defaults.workers, DefaultWorkers)
	}
}

func TestPipeline_IndexFile_NewDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	content := "# Notes\n\nFirst paragraph.\n\nSecond paragraph.\n"
	path := writeFile(t, t.TempDir(), "notes.md", content)
	ctx := context.Background()

	var upserts []storage.DocumentRecord
	var stored []storage.ChunkRecord

	gomock.InOrder(
		m.docs.EXPECT().GetByPath(gomock.Any(), path).Return(nil, storage.ErrNotFound),
		m.docs.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, doc *storage.DocumentRecord) error {
			upserts = append(upserts, *doc)
			return nil
		}),
		m.vectors.EXPECT().Upsert(gomock.Any(), "chunks_xtr", gomock.Len(2)).DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
			for _, pt := range points {
				if pt.Meta[vectorstore.PayloadPath] != path {
					t.Errorf("point path = %v, want %s", pt.Meta[vectorstore.PayloadPath], path)
				}
			}
			return nil
		}),
		m.chunks.EXPECT().ReplaceForDocument(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, _ string, chunks []storage.ChunkRecord) error {
			stored = chunks
			return nil
		}),
		m.docs.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, doc *storage.DocumentRecord) error {
			upserts = append(upserts, *doc)
			return nil
		}),
	)

	if err := pipeline.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile() error = %v", err)
	}

	if len(upserts) != 2 {
		t.Fatalf("document upserts = %d, want 2", len(upserts))
	}
	if upserts[0].Hash != "" {
		t.Error("placeholder document should have an empty hash")
	}
	final := upserts[1]
	if final.Hash != sha(content) || final.Model != "xtr" || final.ChunkCount != 2 || final.Title != "Notes" {
		t.Errorf("final document = %+v", final)
	}
	if final.ID != upserts[0].ID {
		t.Error("document ID should be stable across both upserts")
	}

	if len(stored) != 2 {
		t.Fatalf("stored %d chunks, want 2", len(stored))
	}
	for i, c := range stored {
		if c.DocumentID != final.ID || c.ChunkIndex != i || c.HeaderContext != "# Notes" {
			t.Errorf("chunk[%d] = %+v", i, c)
		}
	}
	if len(m.embedder.calls) != 1 || m.embedder.calls[0][0] != "# Notes\n\nFirst paragraph." {
		t.Errorf("embedded texts = %v", m.embedder.calls)
	}
}

func TestPipeline_IndexFile_Unchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	content := "package main\n\nfunc main() {}\n"
	path := writeFile(t, t.TempDir(), "main.go", content)

	m.docs.EXPECT().GetByPath(gomock.Any(), path).Return(&storage.DocumentRecord{
		ID:    "doc-1",
		Path:  path,
		Hash:  sha(content),
		Model: "unixcoder",
	}, nil)

	if err := pipeline.IndexFile(context.Background(), path); err != nil {
		t.Fatalf("IndexFile() error = %v", err)
	}
	if len(m.embedder.calls) != 0 {
		t.Error("unchanged file should not be embedded")
	}

	m.docs.EXPECT().Count(gomock.Any()).Return(1, nil)
	stats, err := pipeline.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.DocsUnchanged != 1 || stats.TotalDocuments != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestPipeline_IndexFile_ReusesStoredVectors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	oldContent := "# Notes\n\nFirst paragraph.\n\nSecond paragraph.\n"
	newContent := "# Notes\n\nFirst paragraph.\n\nSecond paragraph, edited.\n"
	path := writeFile(t, t.TempDir(), "notes.md", newContent)

	old := chunkRecords("doc-1", path, pipeline.chunker.Chunk(oldContent))

	m.docs.EXPECT().GetByPath(gomock.Any(), path).Return(&storage.DocumentRecord{
		ID: "doc-1", Path: path, Hash: sha(oldContent), Model: "xtr",
	}, nil)
	m.chunks.EXPECT().ListByDocument(gomock.Any(), "doc-1").Return(old, nil)
	m.vectors.EXPECT().Upsert(gomock.Any(), "chunks_xtr", gomock.Len(1)).Return(nil)
	m.chunks.EXPECT().ReplaceForDocument(gomock.Any(), "doc-1", gomock.Len(2)).DoAndReturn(func(_ context.Context, _ string, chunks []storage.ChunkRecord) error {
		if chunks[0].ID != old[0].ID {
			t.Error("unchanged chunk should keep its ID")
		}
		if chunks[1].ID == old[1].ID {
			t.Error("edited chunk should get a new ID")
		}
		return nil
	})
	m.vectors.EXPECT().Delete(gomock.Any(), "chunks_xtr", []string{old[1].ID}).Return(nil)
	m.docs.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	if err := pipeline.IndexFile(context.Background(), path); err != nil {
		t.Fatalf("IndexFile() error = %v", err)
	}

	if len(m.embedder.calls) != 1 || len(m.embedder.calls[0]) != 1 {
		t.Fatalf("embedded batches = %v, want one text", m.embedder.calls)
	}
	if m.embedder.calls[0][0] != "# Notes\n\nSecond paragraph, edited." {
		t.Errorf("embedded text = %q", m.embedder.calls[0][0])
	}

	stats := pipeline.stats.snapshot()
	if stats.ChunksEmbedded != 1 || stats.ChunksReused != 1 || stats.ChunksDeleted != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPipeline_IndexFile_ModelChangeReembedsEverything(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	content := "# Notes\n\nOnly paragraph.\n"
	path := writeFile(t, t.TempDir(), "notes.md", content)
	old := chunkRecords("doc-1", path, pipeline.chunker.Chunk(content))

	m.docs.EXPECT().GetByPath(gomock.Any(), path).Return(&storage.DocumentRecord{
		ID: "doc-1", Path: path, Hash: sha(content), Model: "unixcoder",
	}, nil)
	m.chunks.EXPECT().ListByDocument(gomock.Any(), "doc-1").Return(old, nil)
	m.vectors.EXPECT().Upsert(gomock.Any(), "chunks_xtr", gomock.Len(1)).Return(nil)
	m.chunks.EXPECT().ReplaceForDocument(gomock.Any(), "doc-1", gomock.Len(1)).Return(nil)
	m.vectors.EXPECT().Delete(gomock.Any(), "chunks_unixcoder", []string{old[0].ID}).Return(errors.New("unavailable"))
	m.docs.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	// a failed stale delete is logged, not returned
	if err := pipeline.IndexFile(context.Background(), path); err != nil {
		t.Fatalf("IndexFile() error = %v", err)
	}
}

func TestPipeline_IndexFile_EmbeddingError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	path := writeFile(t, t.TempDir(), "notes.md", "Some text.\n")
	m.embedder.err = errors.New("backend down")

	m.docs.EXPECT().GetByPath(gomock.Any(), path).Return(nil, storage.ErrNotFound)
	m.docs.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)

	if err := pipeline.IndexFile(context.Background(), path); err == nil {
		t.Fatal("IndexFile() should return the embedding error")
	}
	if got := pipeline.stats.snapshot().DocsFailed; got != 1 {
		t.Errorf("DocsFailed = %d, want 1", got)
	}
}

func TestPipeline_IndexFile_SkipsBinary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, _ := newTestPipeline(t, ctrl)
	path := writeFile(t, t.TempDir(), "blob.txt", "\xff\xfe\x00binary")

	if err := pipeline.IndexFile(context.Background(), path); err != nil {
		t.Fatalf("IndexFile() error = %v", err)
	}
	if got := pipeline.stats.snapshot().DocsSkipped; got != 1 {
		t.Errorf("DocsSkipped = %d, want 1", got)
	}
}

func TestPipeline_IndexFile_MissingFileIsRemoved(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	path := filepath.Join(t.TempDir(), "gone.go")

	m.docs.EXPECT().GetByPath(gomock.Any(), path).Return(&storage.DocumentRecord{ID: "doc-9", Path: path, Model: "unixcoder"}, nil)
	m.chunks.EXPECT().ListByDocument(gomock.Any(), "doc-9").Return([]storage.ChunkRecord{{ID: "a"}, {ID: "b"}}, nil)
	m.vectors.EXPECT().Delete(gomock.Any(), "chunks_unixcoder", []string{"a", "b"}).Return(nil)
	m.docs.EXPECT().DeleteByPath(gomock.Any(), path).Return(nil)

	if err := pipeline.IndexFile(context.Background(), path); err != nil {
		t.Fatalf("IndexFile() error = %v", err)
	}
	if got := pipeline.stats.snapshot().DocsRemoved; got != 1 {
		t.Errorf("DocsRemoved = %d, want 1", got)
	}
}

func TestPipeline_RemoveFile_NotIndexed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	m.docs.EXPECT().GetByPath(gomock.Any(), "/repo/none.md").Return(nil, storage.ErrNotFound)

	if err := pipeline.RemoveFile(context.Background(), "/repo/none.md"); err != nil {
		t.Errorf("RemoveFile() error = %v, want nil", err)
	}
}

func TestPipeline_HandleEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	dir := t.TempDir()
	content := "package main\n"
	kept := writeFile(t, dir, "kept.go", content)
	deleted := filepath.Join(dir, "deleted.go")

	m.docs.EXPECT().GetByPath(gomock.Any(), deleted).Return(nil, errors.New("db locked"))
	m.docs.EXPECT().GetByPath(gomock.Any(), kept).Return(&storage.DocumentRecord{
		ID: "doc-1", Path: kept, Hash: sha(content), Model: "unixcoder",
	}, nil)

	err := pipeline.HandleEvents(context.Background(), []watcher.FileEvent{
		{Path: deleted, Kind: watcher.Deleted},
		{Path: kept, Kind: watcher.Modified},
	})
	if err == nil {
		t.Fatal("HandleEvents() should report the failed event")
	}
	stats := pipeline.stats.snapshot()
	if stats.DocsFailed != 1 || stats.DocsUnchanged != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPipeline_IndexAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	dir := t.TempDir()

	var files []workspace.ScannedFile
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("f%d.go", i)
		content := fmt.Sprintf("package f%d\n", i)
		path := writeFile(t, dir, name, content)
		files = append(files, workspace.ScannedFile{Root: dir, RelPath: name, AbsPath: path})
		m.docs.EXPECT().GetByPath(gomock.Any(), path).Return(&storage.DocumentRecord{
			ID: name, Path: path, Hash: sha(content), Model: "unixcoder",
		}, nil)
	}
	m.files.files = files

	stale := filepath.Join(dir, "old.go")
	paths := []string{stale}
	for _, f := range files {
		paths = append(paths, f.AbsPath)
	}
	sort.Strings(paths)
	m.docs.EXPECT().ListPaths(gomock.Any()).Return(paths, nil)
	m.docs.EXPECT().GetByPath(gomock.Any(), stale).Return(&storage.DocumentRecord{ID: "old", Path: stale, Model: "unixcoder"}, nil)
	m.chunks.EXPECT().ListByDocument(gomock.Any(), "old").Return(nil, nil)
	m.docs.EXPECT().DeleteByPath(gomock.Any(), stale).Return(nil)

	if err := pipeline.IndexAll(context.Background()); err != nil {
		t.Fatalf("IndexAll() error = %v", err)
	}

	stats := pipeline.stats.snapshot()
	if stats.DocsUnchanged != 4 || stats.DocsRemoved != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPipeline_IndexAll_ScanError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	m.files.err = errors.New("permission denied")

	if err := pipeline.IndexAll(context.Background()); err == nil {
		t.Error("IndexAll() should return the scan error")
	}
}

func TestPipeline_Stats_ForcedModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pipeline, m := newTestPipeline(t, ctrl)
	m.docs.EXPECT().Count(gomock.Any()).Return(0, nil).Times(2)

	routed, err := pipeline.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	forced := router.JinaCode
	m.embedder.forced = &forced
	pinned, err := pipeline.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if routed.ChunkerVersion != ChunkerVersion || routed.IndexVersion == "" {
		t.Errorf("Stats() = %+v", routed)
	}
	if routed.IndexVersion == pinned.IndexVersion {
		t.Error("forcing a model should change the index version")
	}
}

func TestChunkRecords_StableIDs(t *testing.T) {
	chunker := testChunker(t)
	content := "# A\n\nSame text.\n\nSame text.\n\n# B\n\nSame text.\n"
	chunks := chunker.Chunk(content)
	if len(chunks) != 3 {
		t.Fatalf("Chunk() returned %d chunks, want 3", len(chunks))
	}

	records := chunkRecords("doc", "/r/a.md", chunks)
	again := chunkRecords("other-doc", "/r/a.md", chunker.Chunk(content))

	ids := make(map[string]struct{})
	for i, r := range records {
		if r.ID != again[i].ID {
			t.Errorf("record[%d] ID changed between runs", i)
		}
		ids[r.ID] = struct{}{}
	}
	if len(ids) != 3 {
		t.Errorf("repeated blocks must get distinct IDs, got %d unique", len(ids))
	}
	if records[0].ContentHash != records[2].ContentHash {
		t.Error("identical content under different headers should share a content hash")
	}
}
