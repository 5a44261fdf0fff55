package vectorstore

import (
	"context"
	"fmt"
	"sync"
)

// CollectionEnsurer creates a collection or checks its vector size.
type CollectionEnsurer interface {
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
}

// Collections maps embedding models to collections and makes sure each one
// exists before the first write. Every model gets its own collection since
// vector sizes differ between model families.
type Collections struct {
	base  string
	store CollectionEnsurer

	mu    sync.Mutex
	ready map[string]int // collection -> vector size
}

// NewCollections creates a resolver for collections named <base>_<model>.
func NewCollections(base string, store CollectionEnsurer) *Collections {
	return &Collections{
		base:  base,
		store: store,
		ready: make(map[string]int),
	}
}

// Name returns the collection for model without touching the store.
func (c *Collections) Name(model string) string {
	return CollectionName(c.base, model)
}

// Ensure returns the collection for model, creating it on first use.
func (c *Collections) Ensure(ctx context.Context, model string, vectorSize int) (string, error) {
	name := c.Name(model)

	c.mu.Lock()
	defer c.mu.Unlock()

	if size, ok := c.ready[name]; ok {
		if size != vectorSize {
			return "", fmt.Errorf("collection %s vector size mismatch: expected %d, got %d", name, size, vectorSize)
		}
		return name, nil
	}
	if err := c.store.EnsureCollection(ctx, name, vectorSize); err != nil {
		return "", err
	}
	c.ready[name] = vectorSize
	return name, nil
}
