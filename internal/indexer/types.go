package indexer

import "fmt"

// ChunkType classifies the block a chunk was built from.
type ChunkType string

const (
	ChunkTypeParagraph  ChunkType = "paragraph"
	ChunkTypeCodeBlock  ChunkType = "code_block"
	ChunkTypeTable      ChunkType = "table"
	ChunkTypeList       ChunkType = "list"
	ChunkTypeBlockquote ChunkType = "blockquote"
)

// IsStructural reports whether chunks of this type must never be split.
func (t ChunkType) IsStructural() bool {
	return t == ChunkTypeCodeBlock || t == ChunkTypeTable
}

// Chunk is a bounded unit of document content prepared for embedding.
type Chunk struct {
	Index         int       `json:"index"`          // 0-based, gapless, in block order
	StartLine     int       `json:"start_line"`     // 0-based, inclusive
	EndLine       int       `json:"end_line"`       // 0-based, inclusive
	Content       string    `json:"content"`        // original block text
	Text          string    `json:"text"`           // header context + content, the embedded form
	HeaderContext string    `json:"header_context"` // Format: "# Heading1 > ## Heading2"
	Type          ChunkType `json:"chunk_type"`
	Language      string    `json:"language,omitempty"` // code fences only
	TokenCount    int       `json:"token_count"`
	CharCount     int       `json:"char_count"`
	ContentHash   uint64    `json:"content_hash"` // xxhash64 of Content
	Links         []Link    `json:"links,omitempty"`
}

// HashHex returns the content hash as 16 lower-case hex digits.
func (c Chunk) HashHex() string {
	return fmt.Sprintf("%016x", c.ContentHash)
}

// Link is a reference found in chunk text.
type Link struct {
	Text       string `json:"text"`
	Target     string `json:"target"`
	IsInternal bool   `json:"is_internal"`
}

// Config bounds chunk sizes. All sizes are in estimated tokens.
type Config struct {
	MaxTokens        int
	MinTokens        int
	OverlapTokens    int
	AddHeaderContext bool
}

// DefaultConfig returns 512 / 50 / 100 with header context enabled.
func DefaultConfig() Config {
	return Config{
		MaxTokens:        512,
		MinTokens:        50,
		OverlapTokens:    100,
		AddHeaderContext: true,
	}
}

// Validate checks that the sizes are usable.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.MinTokens < 0 {
		return fmt.Errorf("min tokens cannot be negative")
	}
	if c.OverlapTokens < 0 {
		return fmt.Errorf("overlap tokens cannot be negative")
	}
	if c.OverlapTokens >= c.MaxTokens {
		return fmt.Errorf("overlap tokens (%d) must be less than max tokens (%d)", c.OverlapTokens, c.MaxTokens)
	}
	return nil
}
