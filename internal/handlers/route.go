package handlers

import (
	"net/http"
	"strings"

	"codeindex/internal/contextutil"
	"codeindex/internal/router"
)

// ModelRouter picks embedding models for paths and queries.
type ModelRouter interface {
	ModelForPath(path string) router.EmbeddingModel
	ModelForQuery(query string) router.EmbeddingModel
}

// RouteHandler reports how a query or path would be routed.
type RouteHandler struct {
	router ModelRouter
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(r ModelRouter) *RouteHandler {
	return &RouteHandler{router: r}
}

// RouteRequest carries exactly one of Query or Path.
type RouteRequest struct {
	Query string `json:"query,omitempty"`
	Path  string `json:"path,omitempty"`
}

// RouteResponse is the routing decision.
type RouteResponse struct {
	ContentType router.ContentType    `json:"content_type"`
	Model       router.EmbeddingModel `json:"model"`
}

func (h *RouteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req RouteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	query := strings.TrimSpace(req.Query)
	switch {
	case query != "" && req.Path != "":
		writeError(w, http.StatusBadRequest, "set either query or path, not both")
		return
	case query != "":
		resp := RouteResponse{
			ContentType: router.ClassifyQuery(query),
			Model:       h.router.ModelForQuery(query),
		}
		logger.DebugContext(ctx, "routed query", "content_type", resp.ContentType.String(), "model", resp.Model.String())
		writeJSON(w, http.StatusOK, resp)
	case req.Path != "":
		writeJSON(w, http.StatusOK, RouteResponse{
			ContentType: router.ClassifyPath(req.Path),
			Model:       h.router.ModelForPath(req.Path),
		})
	default:
		writeError(w, http.StatusBadRequest, "query or path is required")
	}
}
