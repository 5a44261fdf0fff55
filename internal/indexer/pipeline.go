package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"codeindex/internal/contextutil"
	"codeindex/internal/router"
	"codeindex/internal/storage"
	"codeindex/internal/vectorstore"
	"codeindex/internal/watcher"
	"codeindex/internal/workspace"
)

// DefaultWorkers is the number of files IndexAll indexes at once.
const DefaultWorkers = 4

// Embedder routes chunk texts to the model chosen for their file.
type Embedder interface {
	ModelForPath(path string) router.EmbeddingModel
	EmbedDocuments(ctx context.Context, path string, texts []string) ([][]float32, router.EmbeddingModel, error)
	Forced() (router.EmbeddingModel, bool)
}

// FileSource lists the files under the watch roots.
type FileSource interface {
	ScanAll(ctx context.Context) ([]workspace.ScannedFile, error)
}

// Pipeline orchestrates the indexing of files into SQLite and Qdrant.
type Pipeline struct {
	files       FileSource
	docRepo     storage.DocumentStore
	chunkRepo   storage.ChunkStore
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	collections *vectorstore.Collections
	chunker     *Chunker
	workers     int

	locks sync.Map // path -> *sync.Mutex
	stats *runStats
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers sets how many files IndexAll processes concurrently.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	files FileSource,
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	collections *vectorstore.Collections,
	chunker *Chunker,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		files:       files,
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		embedder:    embedder,
		vectorStore: vectorStore,
		collections: collections,
		chunker:     chunker,
		workers:     DefaultWorkers,
		stats:       newRunStats(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Chunker returns the chunker used for documents.
func (p *Pipeline) Chunker() *Chunker {
	return p.chunker
}

// lock serialises work on one path between the watcher and full runs.
func (p *Pipeline) lock(path string) func() {
	v, _ := p.locks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// IndexFile indexes a single file.
// It checks if the file has changed (via hash), chunks it, embeds only the
// chunks without a stored vector, and stores chunks in both SQLite and
// Qdrant. A file that no longer exists is removed from the index.
func (p *Pipeline) IndexFile(ctx context.Context, path string) error {
	unlock := p.lock(path)
	defer unlock()

	outcome, err := p.indexFile(ctx, path)
	if err != nil {
		outcome.failed = true
	}
	p.stats.record(outcome)
	return err
}

func (p *Pipeline) indexFile(ctx context.Context, path string) (fileOutcome, error) {
	logger := contextutil.LoggerFromContext(ctx)

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p.removeFile(ctx, path)
		}
		return fileOutcome{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if !utf8.Valid(content) {
		logger.DebugContext(ctx, "skipping non-text file", "path", path)
		return fileOutcome{skipped: true}, nil
	}

	hashHex := fmt.Sprintf("%x", sha256.Sum256(content))
	model := p.embedder.ModelForPath(path)

	existing, err := p.docRepo.GetByPath(ctx, path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fileOutcome{}, fmt.Errorf("failed to check existing document: %w", err)
	}

	// Skip re-indexing if hash and model match
	if existing != nil && existing.Hash == hashHex && existing.Model == model.String() {
		logger.DebugContext(ctx, "skipping unchanged file", "path", path, "hash", hashHex)
		return fileOutcome{unchanged: true}, nil
	}

	chunks := p.chunker.Chunk(string(content))
	title := ExtractTitle(content, path)

	doc := &storage.DocumentRecord{
		Path:  path,
		Title: title,
		Model: model.String(),
	}
	var stored []storage.ChunkRecord
	if existing != nil {
		doc.ID = existing.ID
		stored, err = p.chunkRepo.ListByDocument(ctx, existing.ID)
		if err != nil {
			return fileOutcome{}, fmt.Errorf("failed to list stored chunks: %w", err)
		}
	} else {
		doc.ID = uuid.New().String()
		// placeholder row so chunks can reference it; the empty hash forces
		// a retry if anything below fails
		if err := p.docRepo.Upsert(ctx, doc); err != nil {
			return fileOutcome{}, fmt.Errorf("failed to create document: %w", err)
		}
	}

	records := chunkRecords(doc.ID, path, chunks)
	modelChanged := existing != nil && existing.Model != model.String()

	storedIDs := make(map[string]struct{}, len(stored))
	for _, c := range stored {
		storedIDs[c.ID] = struct{}{}
	}

	var toEmbed []int
	for i, rec := range records {
		if _, ok := storedIDs[rec.ID]; ok && !modelChanged {
			continue
		}
		toEmbed = append(toEmbed, i)
	}

	outcome := fileOutcome{
		processed: true,
		model:     model.String(),
		embedded:  len(toEmbed),
		reused:    len(records) - len(toEmbed),
		tokens:    make([]int, len(chunks)),
	}
	for i, c := range chunks {
		outcome.tokens[i] = c.TokenCount
	}

	if len(toEmbed) > 0 {
		texts := make([]string, len(toEmbed))
		for i, idx := range toEmbed {
			texts[i] = chunks[idx].Text
		}

		vecs, usedModel, err := p.embedder.EmbedDocuments(ctx, path, texts)
		if err != nil {
			return fileOutcome{}, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vecs) != len(texts) {
			return fileOutcome{}, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(vecs))
		}
		if usedModel != model {
			return fileOutcome{}, fmt.Errorf("embedding model changed during indexing: expected %s, got %s", model, usedModel)
		}

		collection, err := p.collections.Ensure(ctx, model.String(), len(vecs[0]))
		if err != nil {
			return fileOutcome{}, fmt.Errorf("failed to prepare collection: %w", err)
		}

		points := make([]vectorstore.Point, len(toEmbed))
		for i, idx := range toEmbed {
			rec := records[idx]
			points[i] = vectorstore.Point{
				ID:  rec.ID,
				Vec: vecs[i],
				Meta: map[string]any{
					vectorstore.PayloadDocumentID:  doc.ID,
					vectorstore.PayloadPath:        path,
					vectorstore.PayloadContentHash: rec.ContentHash,
					vectorstore.PayloadChunkType:   rec.ChunkType,
				},
			}
		}
		if err := p.vectorStore.Upsert(ctx, collection, points); err != nil {
			return fileOutcome{}, fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}

	if err := p.chunkRepo.ReplaceForDocument(ctx, doc.ID, records); err != nil {
		return fileOutcome{}, fmt.Errorf("failed to store chunks: %w", err)
	}

	// Stale points: vanished chunks, or everything when the model moved.
	newIDs := make(map[string]struct{}, len(records))
	for _, rec := range records {
		newIDs[rec.ID] = struct{}{}
	}
	var stale []string
	for _, c := range stored {
		if _, ok := newIDs[c.ID]; !ok || modelChanged {
			stale = append(stale, c.ID)
		}
	}
	if len(stale) > 0 {
		oldCollection := p.collections.Name(existing.Model)
		if err := p.vectorStore.Delete(ctx, oldCollection, stale); err != nil {
			// orphaned points are filtered out at search time
			logger.WarnContext(ctx, "failed to delete stale vectors", "path", path, "error", err, "count", len(stale))
		}
	}
	outcome.deleted = len(stale)

	doc.Hash = hashHex
	doc.ChunkCount = len(records)
	if err := p.docRepo.Upsert(ctx, doc); err != nil {
		return fileOutcome{}, fmt.Errorf("failed to upsert document: %w", err)
	}

	if len(chunks) == 0 {
		logger.WarnContext(ctx, "no chunks generated", "path", path)
	}
	logger.InfoContext(ctx, "indexed file", "path", path, "model", model.String(), "chunks", len(records),
		"embedded", outcome.embedded, "reused", outcome.reused, "deleted", outcome.deleted)
	return outcome, nil
}

// chunkRecords converts chunks to storage rows with stable IDs.
func chunkRecords(docID, path string, chunks []Chunk) []storage.ChunkRecord {
	seen := make(map[string]int, len(chunks))
	records := make([]storage.ChunkRecord, len(chunks))
	for i, c := range chunks {
		hashHex := c.HashHex()
		key := hashHex + "|" + c.HeaderContext
		occurrence := seen[key]
		seen[key]++

		records[i] = storage.ChunkRecord{
			ID:            vectorstore.PointID(path, hashHex, c.HeaderContext, occurrence),
			DocumentID:    docID,
			ChunkIndex:    c.Index,
			StartLine:     c.StartLine,
			EndLine:       c.EndLine,
			ChunkType:     string(c.Type),
			Language:      c.Language,
			HeaderContext: c.HeaderContext,
			Content:       c.Content,
			TokenCount:    c.TokenCount,
			ContentHash:   hashHex,
		}
	}
	return records
}

// RemoveFile deletes a file's chunks, vectors and document. Removing a
// file that is not indexed is a no-op.
func (p *Pipeline) RemoveFile(ctx context.Context, path string) error {
	unlock := p.lock(path)
	defer unlock()

	outcome, err := p.removeFile(ctx, path)
	if err != nil {
		outcome.failed = true
	}
	p.stats.record(outcome)
	return err
}

func (p *Pipeline) removeFile(ctx context.Context, path string) (fileOutcome, error) {
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := p.docRepo.GetByPath(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fileOutcome{}, nil
		}
		return fileOutcome{}, fmt.Errorf("failed to look up document: %w", err)
	}

	chunks, err := p.chunkRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return fileOutcome{}, fmt.Errorf("failed to list chunks: %w", err)
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	if len(ids) > 0 && doc.Model != "" {
		if err := p.vectorStore.Delete(ctx, p.collections.Name(doc.Model), ids); err != nil {
			logger.WarnContext(ctx, "failed to delete vectors", "path", path, "error", err, "count", len(ids))
		}
	}

	// chunks go with the document by cascade
	if err := p.docRepo.DeleteByPath(ctx, path); err != nil {
		return fileOutcome{}, fmt.Errorf("failed to delete document: %w", err)
	}

	logger.InfoContext(ctx, "removed file", "path", path, "chunks", len(ids))
	return fileOutcome{removed: true, deleted: len(ids)}, nil
}

// HandleEvents applies a batch of watcher events. Errors for individual
// files are logged and do not stop the batch.
func (p *Pipeline) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	logger := contextutil.LoggerFromContext(ctx)

	var errorCount int
	for _, ev := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var err error
		if ev.Kind == watcher.Deleted {
			err = p.RemoveFile(ctx, ev.Path)
		} else {
			err = p.IndexFile(ctx, ev.Path)
		}
		if err != nil {
			errorCount++
			logger.ErrorContext(ctx, "failed to apply file event", "path", ev.Path, "kind", ev.Kind.String(), "error", err)
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("%d of %d file events failed", errorCount, len(events))
	}
	return nil
}

// IndexAll scans all roots, indexes every file and removes documents whose
// files are gone. Errors for individual files are logged but don't stop
// the indexing process.
func (p *Pipeline) IndexAll(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	scannedFiles, err := p.files.ScanAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan roots: %w", err)
	}

	logger.InfoContext(ctx, "starting indexing", "total_files", len(scannedFiles), "workers", p.workers)

	var mu sync.Mutex
	var successCount, errorCount int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, file := range scannedFiles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := p.IndexFile(gctx, file.AbsPath)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errorCount++
				logger.ErrorContext(gctx, "failed to index file", "path", file.AbsPath, "error", err)
				return nil
			}
			successCount++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	removed, err := p.prune(ctx, scannedFiles)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "indexing completed", "total_files", len(scannedFiles), "success", successCount,
		"errors", errorCount, "removed", removed)

	if errorCount > 0 {
		return fmt.Errorf("indexing completed with %d errors", errorCount)
	}
	return nil
}

// prune removes documents that the scan no longer found.
func (p *Pipeline) prune(ctx context.Context, scanned []workspace.ScannedFile) (int, error) {
	keep := make(map[string]struct{}, len(scanned))
	for _, f := range scanned {
		keep[f.AbsPath] = struct{}{}
	}

	paths, err := p.docRepo.ListPaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}

	removed := 0
	for _, path := range paths {
		if _, ok := keep[path]; ok {
			continue
		}
		if err := p.RemoveFile(ctx, path); err != nil {
			contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to remove stale document", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Stats returns indexing statistics since start-up.
func (p *Pipeline) Stats(ctx context.Context) (*IndexingCoverageStats, error) {
	stats := p.stats.snapshot()

	total, err := p.docRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	stats.TotalDocuments = total
	stats.ChunkerVersion = ChunkerVersion

	var models []string
	if forced, ok := p.embedder.Forced(); ok {
		models = []string{forced.String()}
	} else {
		for _, m := range router.AllModels() {
			models = append(models, m.String())
		}
	}
	stats.IndexVersion = IndexVersion(p.chunker.Config(), models)
	return &stats, nil
}
