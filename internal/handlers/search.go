package handlers

import (
	"context"
	"net/http"

	"codeindex/internal/contextutil"
	"codeindex/internal/search"
)

// Searcher answers search requests.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// SearchHandler handles HTTP requests for semantic search.
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req search.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if req.K < 0 {
		writeError(w, http.StatusBadRequest, (&ValidationError{Field: "k", Message: "must not be negative"}).Error())
		return
	}

	resp, err := h.searcher.Search(ctx, req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			logger.ErrorContext(ctx, "search failed", "error", err)
			writeError(w, status, "Search failed")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	logger.InfoContext(ctx, "search completed", "model", resp.Model.String(), "results", len(resp.Results))
	writeJSON(w, http.StatusOK, resp)
}
