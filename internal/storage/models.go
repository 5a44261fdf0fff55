package storage

import "time"

// RootRecord is a watched directory.
type RootRecord struct {
	ID        int       `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentRecord is one indexed file.
type DocumentRecord struct {
	ID         string // UUID
	Path       string // canonical absolute path
	Title      string
	Hash       string // SHA256 hex string of file content
	Model      string // embedding model the chunks were embedded with
	ChunkCount int
	UpdatedAt  time.Time
}

// ChunkRecord is one chunk of a document. ID doubles as the vector point ID.
type ChunkRecord struct {
	ID            string
	DocumentID    string
	ChunkIndex    int
	StartLine     int
	EndLine       int
	ChunkType     string
	Language      string
	HeaderContext string // Format: "# Heading1 > ## Heading2"
	Content       string
	TokenCount    int
	ContentHash   string // 16 hex digits
}
