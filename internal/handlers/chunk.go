package handlers

import (
	"net/http"

	"codeindex/internal/contextutil"
	"codeindex/internal/indexer"
	"codeindex/internal/router"
	"codeindex/internal/tokens"
)

// ChunkHandler chunks posted content with the server's chunker settings,
// optionally overridden per request. Nothing is stored.
type ChunkHandler struct {
	cfg indexer.Config
	est tokens.Estimator
}

// NewChunkHandler creates a new ChunkHandler.
func NewChunkHandler(cfg indexer.Config, est tokens.Estimator) *ChunkHandler {
	return &ChunkHandler{cfg: cfg, est: est}
}

// ChunkRequest is the content to chunk. Nil overrides keep the defaults.
type ChunkRequest struct {
	Content       string `json:"content"`
	Path          string `json:"path,omitempty"`
	MaxTokens     *int   `json:"max_tokens,omitempty"`
	MinTokens     *int   `json:"min_tokens,omitempty"`
	OverlapTokens *int   `json:"overlap_tokens,omitempty"`
	HeaderContext *bool  `json:"header_context,omitempty"`
}

// ChunkResponse lists the chunks produced.
type ChunkResponse struct {
	Title       string             `json:"title,omitempty"`
	ContentType router.ContentType `json:"content_type"`
	Chunks      []indexer.Chunk    `json:"chunks"`
}

func (h *ChunkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ChunkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	cfg := h.cfg
	if req.MaxTokens != nil {
		cfg.MaxTokens = *req.MaxTokens
	}
	if req.MinTokens != nil {
		cfg.MinTokens = *req.MinTokens
	}
	if req.OverlapTokens != nil {
		cfg.OverlapTokens = *req.OverlapTokens
	} else if cfg.MaxTokens > 0 && cfg.OverlapTokens >= cfg.MaxTokens {
		// inherited overlap shrinks with a smaller max_tokens
		cfg.OverlapTokens = cfg.MaxTokens / 5
	}
	if req.HeaderContext != nil {
		cfg.AddHeaderContext = *req.HeaderContext
	}

	chunker, err := indexer.NewChunker(cfg, h.est, indexer.WithLogger(logger))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := ChunkResponse{
		ContentType: router.ClassifyPath(req.Path),
		Chunks:      chunker.Chunk(req.Content),
	}
	if req.Path != "" {
		resp.Title = indexer.ExtractTitle([]byte(req.Content), req.Path)
	}

	logger.DebugContext(ctx, "chunked content", "bytes", len(req.Content), "chunks", len(resp.Chunks))
	writeJSON(w, http.StatusOK, resp)
}
