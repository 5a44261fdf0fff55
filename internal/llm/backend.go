// Package llm talks to embedding model servers and routes each request to
// the model family suited to its content.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"codeindex/internal/router"
)

// ErrUnknownModel is returned for models that have no configured backend.
var ErrUnknownModel = errors.New("unknown embedding model")

// Backend is one loaded embedding model.
type Backend interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Warmup(ctx context.Context) error
}

// BackendFactory creates the backend for a model. It may load weights or
// contact a server, so it is only called when the model is first used. The
// backend it returns is ready to embed.
type BackendFactory func(ctx context.Context, model router.EmbeddingModel) (Backend, error)

// Endpoint describes the server that hosts one model.
type Endpoint struct {
	BaseURL     string
	APIKey      string
	Name        string // model name as the server knows it
	Dimension   int
	QueryPrefix string
}

// NewHTTPBackendFactory returns a factory that builds an EmbeddingsClient
// for each configured endpoint and loads the model into its server.
func NewHTTPBackendFactory(endpoints map[router.EmbeddingModel]Endpoint) BackendFactory {
	return func(ctx context.Context, model router.EmbeddingModel) (Backend, error) {
		ep, ok := endpoints[model]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
		}
		client := NewEmbeddingsClient(ep.BaseURL, ep.APIKey, ep.Name, ep.Dimension)
		client.QueryPrefix = ep.QueryPrefix
		if err := client.Warmup(ctx); err != nil {
			return nil, fmt.Errorf("failed to warm up %s: %w", model, err)
		}
		return client, nil
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
