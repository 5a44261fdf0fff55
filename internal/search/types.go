package search

import "codeindex/internal/router"

// Request represents a semantic search request.
type Request struct {
	// Query is the free-text or identifier query.
	Query string `json:"query"`
	// K is the number of results to return. Defaults to DefaultK, capped at MaxK.
	K int `json:"k,omitempty"`
	// Paths restricts the search to these files. Empty searches everything.
	Paths []string `json:"paths,omitempty"`
	// ChunkType restricts results to one chunk type (e.g., "code_block").
	ChunkType string `json:"chunk_type,omitempty"`
}

// Response is the ranked result of a search.
type Response struct {
	// ContentType is how the query was classified.
	ContentType router.ContentType `json:"content_type"`
	// Model is the embedding model the query was routed to.
	Model router.EmbeddingModel `json:"model"`
	// Results are ordered by final score, best first.
	Results []Result `json:"results"`
}

// Result is one retrieved chunk with its scores.
type Result struct {
	// ChunkID is the stable chunk identifier.
	ChunkID string `json:"chunk_id"`
	// Path is the canonical path of the file.
	Path string `json:"path"`
	// HeaderContext is the heading path (e.g., "# Overview > ## Details").
	HeaderContext string `json:"header_context,omitempty"`
	ChunkIndex    int    `json:"chunk_index"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	ChunkType     string `json:"chunk_type"`
	Language      string `json:"language,omitempty"`
	// Content is the chunk text as stored.
	Content string `json:"content"`
	// ScoreVector is the vector similarity score.
	ScoreVector float64 `json:"score_vector"`
	// ScoreLexical is the lexical overlap score.
	ScoreLexical float64 `json:"score_lexical"`
	// ScoreFinal is the combined final score.
	ScoreFinal float64 `json:"score_final"`
	// Rank is the rank of this chunk in the results (1-based).
	Rank int `json:"rank"`
}
