package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"codeindex/internal/contextutil"
	"codeindex/internal/router"
)

// MultiEmbedder routes embedding calls to one backend per model family.
// Backends are created on first use and then reused. Routing is evaluated
// on every call unless a model is forced.
type MultiEmbedder struct {
	factory BackendFactory

	forced    router.EmbeddingModel
	hasForced bool

	mu       sync.Mutex
	backends map[router.EmbeddingModel]Backend
	inits    map[router.EmbeddingModel]*sync.Mutex // serialises the factory per model
}

// MultiOption configures a MultiEmbedder.
type MultiOption func(*MultiEmbedder)

// WithForcedModel sends every path and query to model.
func WithForcedModel(model router.EmbeddingModel) MultiOption {
	return func(m *MultiEmbedder) {
		m.forced = model
		m.hasForced = true
	}
}

// NewMultiEmbedder creates an embedder that builds backends with factory.
func NewMultiEmbedder(factory BackendFactory, opts ...MultiOption) *MultiEmbedder {
	m := &MultiEmbedder{
		factory:  factory,
		backends: make(map[router.EmbeddingModel]Backend),
		inits:    make(map[router.EmbeddingModel]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Forced returns the forced model, if any.
func (m *MultiEmbedder) Forced() (router.EmbeddingModel, bool) {
	return m.forced, m.hasForced
}

// ModelForPath returns the model used to embed the file at path.
func (m *MultiEmbedder) ModelForPath(path string) router.EmbeddingModel {
	if m.hasForced {
		return m.forced
	}
	return router.RecommendedModel(router.ClassifyPath(path))
}

// ModelForQuery returns the model used to embed query.
func (m *MultiEmbedder) ModelForQuery(query string) router.EmbeddingModel {
	if m.hasForced {
		return m.forced
	}
	return router.RecommendedModel(router.ClassifyQuery(query))
}

// EmbedDocuments embeds chunk texts of the file at path and reports the
// model that produced the vectors.
func (m *MultiEmbedder) EmbedDocuments(ctx context.Context, path string, texts []string) ([][]float32, router.EmbeddingModel, error) {
	model := m.ModelForPath(path)
	b, _, err := m.backend(ctx, model)
	if err != nil {
		return nil, model, err
	}
	vecs, err := b.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, model, fmt.Errorf("failed to embed documents with %s: %w", model, err)
	}
	return vecs, model, nil
}

// EmbedQuery embeds a search query and reports the model used.
func (m *MultiEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, router.EmbeddingModel, error) {
	model := m.ModelForQuery(query)
	b, _, err := m.backend(ctx, model)
	if err != nil {
		return nil, model, err
	}
	vec, err := b.EmbedQuery(ctx, query)
	if err != nil {
		return nil, model, fmt.Errorf("failed to embed query with %s: %w", model, err)
	}
	return vec, model, nil
}

// Warmup creates the backend for model if needed and warms it up. A
// backend created by this call was already warmed by the factory.
func (m *MultiEmbedder) Warmup(ctx context.Context, model router.EmbeddingModel) error {
	b, created, err := m.backend(ctx, model)
	if err != nil || created {
		return err
	}
	if err := b.Warmup(ctx); err != nil {
		return fmt.Errorf("failed to warm up %s: %w", model, err)
	}
	return nil
}

// Loaded reports whether a backend for model exists.
func (m *MultiEmbedder) Loaded(model router.EmbeddingModel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.backends[model]
	return ok
}

// LoadedModels lists models with a backend, in model order.
func (m *MultiEmbedder) LoadedModels() []router.EmbeddingModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	models := make([]router.EmbeddingModel, 0, len(m.backends))
	for model := range m.backends {
		models = append(models, model)
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	return models
}

// backend returns the cached backend for model, creating it if needed and
// reporting whether it did. The factory runs at most once at a time per
// model and never blocks other models. Failures are not cached.
func (m *MultiEmbedder) backend(ctx context.Context, model router.EmbeddingModel) (Backend, bool, error) {
	if !model.Valid() {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	m.mu.Lock()
	if b, ok := m.backends[model]; ok {
		m.mu.Unlock()
		return b, false, nil
	}
	initMu, ok := m.inits[model]
	if !ok {
		initMu = &sync.Mutex{}
		m.inits[model] = initMu
	}
	m.mu.Unlock()

	initMu.Lock()
	defer initMu.Unlock()

	// another caller may have finished while we waited
	m.mu.Lock()
	b, ok := m.backends[model]
	m.mu.Unlock()
	if ok {
		return b, false, nil
	}

	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "initialising embedding backend", "model", model.String())

	b, err := m.factory(ctx, model)
	if err != nil {
		logger.ErrorContext(ctx, "failed to initialise embedding backend", "model", model.String(), "error", err)
		return nil, false, fmt.Errorf("failed to initialise %s backend: %w", model, err)
	}

	m.mu.Lock()
	m.backends[model] = b
	m.mu.Unlock()
	return b, true, nil
}
