package indexer

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"codeindex/internal/tokens"
)

// Chunker turns a document into size-bounded chunks that follow its header
// hierarchy. It keeps no state between calls and is safe for concurrent use.
type Chunker struct {
	cfg    Config
	est    tokens.Estimator
	logger *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLogger sets the logger used for line-range anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) {
		c.logger = logger
	}
}

// NewChunker creates a chunker. A nil estimator selects tokens.Heuristic.
func NewChunker(cfg Config, est tokens.Estimator, opts ...Option) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}
	if est == nil {
		est = tokens.Heuristic{}
	}

	c := &Chunker{
		cfg:    cfg,
		est:    est,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the chunker's size configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunk splits text into chunks. Headers update the section path and never
// become chunks themselves. Code fences and tables are always emitted whole;
// other blocks are dropped below MinTokens and windowed above MaxTokens.
func (c *Chunker) Chunk(text string) []Chunk {
	chunks := []Chunk{}
	if strings.TrimSpace(text) == "" {
		return chunks
	}

	seg := NewSegmenter(text)
	loc := newLineLocator(text, c.logger)
	var stack HeaderStack

	for {
		block, ok := seg.Next()
		if !ok {
			break
		}

		if block.Kind == BlockHeader {
			stack.Enter(block.Level, block.Title)
			continue
		}
		if strings.TrimSpace(block.Content) == "" {
			continue
		}

		chunkType := chunkTypeFor(block.Kind)
		prefix := ""
		if c.cfg.AddHeaderContext && stack.Len() > 0 {
			prefix = stack.Markdown() + "\n\n"
		}
		breadcrumb := stack.Breadcrumb()

		finalContent := prefix + block.Content
		tokenCount := c.est.Count(finalContent)
		if !chunkType.IsStructural() && tokenCount < c.cfg.MinTokens {
			continue
		}

		if chunkType.IsStructural() || tokenCount <= c.cfg.MaxTokens {
			start, end := loc.locate(block.Content, block.StartLine, 0)
			chunks = append(chunks, c.newChunk(len(chunks), block.Content, finalContent, tokenCount, breadcrumb, chunkType, block.Language, start, end))
			continue
		}

		for _, w := range c.windows(block.Content, prefix) {
			content := block.Content[w.start:w.end]
			if strings.TrimSpace(content) == "" {
				continue
			}
			final := prefix + content
			start, end := loc.locate(content, block.StartLine, w.start)
			chunks = append(chunks, c.newChunk(len(chunks), content, final, c.est.Count(final), breadcrumb, chunkType, "", start, end))
		}
	}

	return chunks
}

func (c *Chunker) newChunk(index int, content, final string, tokenCount int, breadcrumb string, chunkType ChunkType, language string, start, end int) Chunk {
	return Chunk{
		Index:         index,
		StartLine:     start,
		EndLine:       end,
		Content:       content,
		Text:          final,
		HeaderContext: breadcrumb,
		Type:          chunkType,
		Language:      language,
		TokenCount:    tokenCount,
		CharCount:     utf8.RuneCountInString(final),
		ContentHash:   HashContent(content),
		Links:         ExtractLinks(final),
	}
}

// HashContent returns the 64-bit digest used to detect unchanged chunks.
// It covers the original block text only, so identical blocks under
// different headers hash the same.
func HashContent(content string) uint64 {
	return xxhash.Sum64String(content)
}

func chunkTypeFor(kind BlockKind) ChunkType {
	switch kind {
	case BlockCodeFence:
		return ChunkTypeCodeBlock
	case BlockTable:
		return ChunkTypeTable
	case BlockList:
		return ChunkTypeList
	case BlockBlockquote:
		return ChunkTypeBlockquote
	default:
		return ChunkTypeParagraph
	}
}
