package handlers

import (
	"context"
	"net/http"

	"codeindex/internal/contextutil"
	"codeindex/internal/storage"
)

// RootManager adds, removes and lists watch roots.
type RootManager interface {
	Add(ctx context.Context, dir string) (storage.RootRecord, error)
	Remove(ctx context.Context, dir string) error
	List() []storage.RootRecord
}

// RootsHandler manages watch roots. Adding or removing a root starts an
// indexing run.
type RootsHandler struct {
	roots  RootManager
	runner *IndexRunner
}

// NewRootsHandler creates a new RootsHandler. runner may be nil.
func NewRootsHandler(roots RootManager, runner *IndexRunner) *RootsHandler {
	return &RootsHandler{roots: roots, runner: runner}
}

// RootRequest names a root directory.
type RootRequest struct {
	Path string `json:"path"`
}

// RootsResponse lists roots.
type RootsResponse struct {
	Roots []storage.RootRecord `json:"roots"`
}

func (h *RootsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, RootsResponse{Roots: h.roots.List()})
	case http.MethodPost:
		h.add(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *RootsHandler) add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req RootRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, (&ValidationError{Field: "path", Message: "cannot be empty"}).Error())
		return
	}

	root, err := h.roots.Add(ctx, req.Path)
	if err != nil {
		logger.WarnContext(ctx, "failed to add root", "path", req.Path, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	if h.runner != nil {
		h.runner.Start(logger)
	}
	writeJSON(w, http.StatusCreated, root)
}

func (h *RootsHandler) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	path := r.URL.Query().Get("path")
	if path == "" {
		var req RootRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		path = req.Path
	}
	if path == "" {
		writeError(w, http.StatusBadRequest, (&ValidationError{Field: "path", Message: "cannot be empty"}).Error())
		return
	}

	if err := h.roots.Remove(ctx, path); err != nil {
		logger.WarnContext(ctx, "failed to remove root", "path", path, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	// the next full run prunes the root's documents
	if h.runner != nil {
		h.runner.Start(logger)
	}
	w.WriteHeader(http.StatusNoContent)
}
