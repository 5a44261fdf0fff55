// Package vectorstore stores chunk embeddings in per-model collections.
package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks codeindex/internal/vectorstore VectorStore

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Payload keys stored with every point.
const (
	PayloadDocumentID  = "document_id"
	PayloadPath        = "path"
	PayloadContentHash = "content_hash"
	PayloadChunkType   = "chunk_type"
)

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// Filter narrows a search. Empty fields are ignored.
type Filter struct {
	Paths      []string
	DocumentID string
	ChunkType  string
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.Paths) == 0 && f.DocumentID == "" && f.ChunkType == ""
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search with an optional filter.
	Search(ctx context.Context, collection string, query []float32, k int, filter Filter) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)
}

// CollectionName returns the collection holding vectors of one model.
func CollectionName(base, model string) string {
	return base + "_" + strings.ReplaceAll(model, "-", "_")
}

// PointID derives a stable point ID for a chunk. Chunks keep their ID while
// their path, content, header context and occurrence among identical chunks
// stay the same, so unchanged chunks are never re-embedded.
func PointID(path, contentHash, headerContext string, occurrence int) string {
	name := path + "|" + contentHash + "|" + headerContext + "|" + strconv.Itoa(occurrence)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
