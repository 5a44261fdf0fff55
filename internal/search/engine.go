// Package search answers queries against the chunk index.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"codeindex/internal/contextutil"
	"codeindex/internal/router"
	"codeindex/internal/storage"
	"codeindex/internal/vectorstore"
)

const (
	// DefaultK is used when a request does not set K.
	DefaultK = 5
	// MaxK caps the number of results.
	MaxK = 50
	// candidateFactor widens the vector search so lexical reranking has
	// something to reorder.
	candidateFactor = 3
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query is empty")

// QueryEmbedder embeds a query with the model it routes to.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, router.EmbeddingModel, error)
}

// Engine provides semantic search over indexed chunks.
type Engine struct {
	embedder    QueryEmbedder
	vectorStore vectorstore.VectorStore
	collections *vectorstore.Collections
	chunkRepo   storage.ChunkStore
}

// NewEngine creates a new search engine.
func NewEngine(
	embedder QueryEmbedder,
	vectorStore vectorstore.VectorStore,
	collections *vectorstore.Collections,
	chunkRepo storage.ChunkStore,
) *Engine {
	return &Engine{
		embedder:    embedder,
		vectorStore: vectorStore,
		collections: collections,
		chunkRepo:   chunkRepo,
	}
}

// Search routes the query to a model, searches that model's collection and
// reranks the hits with a lexical score.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Response{}, ErrEmptyQuery
	}

	k := req.K
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}

	resp := Response{
		ContentType: router.ClassifyQuery(query),
		Results:     []Result{},
	}

	queryVector, model, err := e.embedder.EmbedQuery(ctx, query)
	resp.Model = model
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return Response{}, fmt.Errorf("failed to embed query: %w", err)
	}

	collection := e.collections.Name(model.String())
	exists, err := e.vectorStore.CollectionExists(ctx, collection)
	if err != nil {
		return Response{}, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		logger.InfoContext(ctx, "nothing indexed for model", "model", model.String(), "collection", collection)
		return resp, nil
	}

	filter := vectorstore.Filter{Paths: req.Paths, ChunkType: req.ChunkType}
	hits, err := e.vectorStore.Search(ctx, collection, queryVector, k*candidateFactor, filter)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search vector store", "collection", collection, "error", err)
		return Response{}, fmt.Errorf("failed to search vector store: %w", err)
	}
	logger.InfoContext(ctx, "vector search completed", "model", model.String(), "results_count", len(hits), "k_requested", k)
	if len(hits) == 0 {
		return resp, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.PointID
	}
	chunks, err := e.chunkRepo.GetByIDs(ctx, ids)
	if err != nil {
		return Response{}, fmt.Errorf("failed to load chunks: %w", err)
	}

	results := make([]Result, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		if _, dup := seen[hit.PointID]; dup {
			continue
		}
		seen[hit.PointID] = struct{}{}

		chunk, ok := chunks[hit.PointID]
		if !ok {
			// point without a row: left over from a failed delete
			logger.DebugContext(ctx, "dropping orphaned point", "chunk_id", hit.PointID)
			continue
		}
		path, _ := hit.Meta[vectorstore.PayloadPath].(string)

		lexical := lexicalScore(query, chunk.Content, chunk.HeaderContext)
		results = append(results, Result{
			ChunkID:       chunk.ID,
			Path:          path,
			HeaderContext: chunk.HeaderContext,
			ChunkIndex:    chunk.ChunkIndex,
			StartLine:     chunk.StartLine,
			EndLine:       chunk.EndLine,
			ChunkType:     chunk.ChunkType,
			Language:      chunk.Language,
			Content:       chunk.Content,
			ScoreVector:   float64(hit.Score),
			ScoreLexical:  float64(lexical),
			ScoreFinal:    float64(hit.Score + lexical),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].ScoreFinal != results[j].ScoreFinal {
			return results[i].ScoreFinal > results[j].ScoreFinal
		}
		if results[i].ScoreVector != results[j].ScoreVector {
			return results[i].ScoreVector > results[j].ScoreVector
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	resp.Results = results
	return resp, nil
}
