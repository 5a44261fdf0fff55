package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// ChunkerVersion is the version identifier for the chunker implementation.
// Update this when chunking logic changes significantly.
const ChunkerVersion = "v2.0"

// IndexingCoverageStats contains statistics about indexing since start-up.
type IndexingCoverageStats struct {
	// DocsProcessed is the number of files that were chunked and stored.
	DocsProcessed int `json:"docs_processed"`
	// DocsUnchanged is the number of files skipped because their hash matched.
	DocsUnchanged int `json:"docs_unchanged"`
	// DocsSkipped is the number of files that were not text.
	DocsSkipped int `json:"docs_skipped"`
	// DocsRemoved is the number of documents deleted from the index.
	DocsRemoved int `json:"docs_removed"`
	// DocsWith0Chunks is the number of processed files that produced no chunks.
	DocsWith0Chunks int `json:"docs_with_0_chunks"`
	// DocsFailed is the number of files whose indexing returned an error.
	DocsFailed int `json:"docs_failed"`
	// TotalDocuments is the number of documents currently in the index.
	TotalDocuments int `json:"total_documents"`
	// ChunksEmbedded is the number of chunks sent to an embedding backend.
	ChunksEmbedded int `json:"chunks_embedded"`
	// ChunksReused is the number of chunks whose stored vector was kept.
	ChunksReused int `json:"chunks_reused"`
	// ChunksDeleted is the number of stale chunks removed.
	ChunksDeleted int `json:"chunks_deleted"`
	// ChunksByModel counts embedded chunks per model.
	ChunksByModel map[string]int `json:"chunks_by_model,omitempty"`
	// ChunkTokenStats contains statistics about token counts per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + models + params).
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	// Min is the minimum token count across all chunks.
	Min int `json:"min"`
	// Max is the maximum token count across all chunks.
	Max int `json:"max"`
	// Mean is the mean token count across all chunks.
	Mean float64 `json:"mean"`
	// P95 is the 95th percentile token count.
	P95 int `json:"p95"`
}

// fileOutcome is what one IndexFile or RemoveFile call did.
type fileOutcome struct {
	processed bool
	unchanged bool
	skipped   bool
	removed   bool
	failed    bool
	model     string
	embedded  int
	reused    int
	deleted   int
	tokens    []int
}

// runStats accumulates outcomes from concurrent workers.
type runStats struct {
	mu            sync.Mutex
	stats         IndexingCoverageStats
	tokenCounts   []int
	chunksByModel map[string]int
}

func newRunStats() *runStats {
	return &runStats{chunksByModel: make(map[string]int)}
}

func (r *runStats) record(o fileOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case o.failed:
		r.stats.DocsFailed++
	case o.unchanged:
		r.stats.DocsUnchanged++
	case o.skipped:
		r.stats.DocsSkipped++
	case o.removed:
		r.stats.DocsRemoved++
	case o.processed:
		r.stats.DocsProcessed++
		if len(o.tokens) == 0 {
			r.stats.DocsWith0Chunks++
		}
	}

	r.stats.ChunksEmbedded += o.embedded
	r.stats.ChunksReused += o.reused
	r.stats.ChunksDeleted += o.deleted
	if o.embedded > 0 && o.model != "" {
		r.chunksByModel[o.model] += o.embedded
	}
	r.tokenCounts = append(r.tokenCounts, o.tokens...)
}

func (r *runStats) snapshot() IndexingCoverageStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	s.ChunkTokenStats = computeTokenStats(r.tokenCounts)
	if len(r.chunksByModel) > 0 {
		s.ChunksByModel = make(map[string]int, len(r.chunksByModel))
		for k, v := range r.chunksByModel {
			s.ChunksByModel[k] = v
		}
	}
	return s
}

// IndexVersion hashes everything that changes chunk boundaries or vectors:
// the chunker version, its size parameters and the embedding models.
func IndexVersion(cfg Config, models []string) string {
	sorted := append([]string(nil), models...)
	sort.Strings(sorted)
	input := fmt.Sprintf("%s|%s|max=%d|min=%d|overlap=%d|header=%t",
		ChunkerVersion, strings.Join(sorted, ","), cfg.MaxTokens, cfg.MinTokens, cfg.OverlapTokens, cfg.AddHeaderContext)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	min := sorted[0]
	max := sorted[len(sorted)-1]

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	p95 := sorted[p95Index]

	return ChunkTokenStats{
		Min:  min,
		Max:  max,
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  p95,
	}
}
