package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"codeindex/internal/router"
)

type fakeBackend struct {
	model   router.EmbeddingModel
	warmups int32
}

func (f *fakeBackend) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(f.model), float32(i)}
	}
	return out, nil
}

func (f *fakeBackend) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{float32(f.model)}, nil
}

func (f *fakeBackend) Warmup(context.Context) error {
	atomic.AddInt32(&f.warmups, 1)
	return nil
}

type countingFactory struct {
	mu    sync.Mutex
	calls map[router.EmbeddingModel]int
	fail  map[router.EmbeddingModel]bool
}

func newCountingFactory() *countingFactory {
	return &countingFactory{
		calls: make(map[router.EmbeddingModel]int),
		fail:  make(map[router.EmbeddingModel]bool),
	}
}

func (f *countingFactory) create(_ context.Context, model router.EmbeddingModel) (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[model]++
	if f.fail[model] {
		return nil, errors.New("weights not found")
	}
	return &fakeBackend{model: model}, nil
}

func (f *countingFactory) count(model router.EmbeddingModel) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[model]
}

func TestMultiEmbedder_RoutesPerCall(t *testing.T) {
	factory := newCountingFactory()
	m := NewMultiEmbedder(factory.create)
	ctx := context.Background()

	tests := []struct {
		path string
		want router.EmbeddingModel
	}{
		{"/src/main.go", router.UniXcoder},
		{"/docs/guide.md", router.Xtr},
		{"/src/lib.rs", router.UniXcoder},
	}
	for _, tt := range tests {
		vecs, model, err := m.EmbedDocuments(ctx, tt.path, []string{"a", "b"})
		if err != nil {
			t.Fatalf("EmbedDocuments(%q) error = %v", tt.path, err)
		}
		if model != tt.want {
			t.Errorf("EmbedDocuments(%q) model = %s, want %s", tt.path, model, tt.want)
		}
		if len(vecs) != 2 || vecs[0][0] != float32(tt.want) {
			t.Errorf("EmbedDocuments(%q) vectors came from the wrong backend: %v", tt.path, vecs)
		}
	}

	if _, model, _ := m.EmbedQuery(ctx, "search for 東京"); model != router.JinaColbert {
		t.Errorf("EmbedQuery() model = %s, want %s", model, router.JinaColbert)
	}

	if got := factory.count(router.UniXcoder); got != 1 {
		t.Errorf("factory called %d times for unixcoder, want 1", got)
	}
	if !m.Loaded(router.Xtr) || m.Loaded(router.JinaCode) {
		t.Error("Loaded() should report exactly the models that were used")
	}
	if got := m.LoadedModels(); len(got) != 3 || got[0] != router.Xtr {
		t.Errorf("LoadedModels() = %v, want [xtr unixcoder jina-colbert]", got)
	}
}

func TestMultiEmbedder_ForcedModel(t *testing.T) {
	factory := newCountingFactory()
	m := NewMultiEmbedder(factory.create, WithForcedModel(router.JinaCode))

	if got := m.ModelForPath("/docs/readme.md"); got != router.JinaCode {
		t.Errorf("ModelForPath() = %s, want forced model", got)
	}
	if got := m.ModelForQuery("東京 getUser"); got != router.JinaCode {
		t.Errorf("ModelForQuery() = %s, want forced model", got)
	}
	if forced, ok := m.Forced(); !ok || forced != router.JinaCode {
		t.Errorf("Forced() = %s, %v", forced, ok)
	}

	_, _, _ = m.EmbedQuery(context.Background(), "plain text")
	if factory.count(router.Xtr) != 0 || factory.count(router.JinaCode) != 1 {
		t.Error("forced embedder should only create the forced backend")
	}
}

func TestMultiEmbedder_FailedInitIsRetried(t *testing.T) {
	factory := newCountingFactory()
	factory.fail[router.Xtr] = true
	m := NewMultiEmbedder(factory.create)
	ctx := context.Background()

	if _, _, err := m.EmbedDocuments(ctx, "notes.md", []string{"x"}); err == nil {
		t.Fatal("EmbedDocuments() expected error from failing factory")
	}
	if m.Loaded(router.Xtr) {
		t.Error("failed initialisation must not be cached")
	}

	factory.mu.Lock()
	factory.fail[router.Xtr] = false
	factory.mu.Unlock()

	if _, _, err := m.EmbedDocuments(ctx, "notes.md", []string{"x"}); err != nil {
		t.Fatalf("EmbedDocuments() retry error = %v", err)
	}
	if got := factory.count(router.Xtr); got != 2 {
		t.Errorf("factory called %d times, want 2", got)
	}
}

func TestMultiEmbedder_ConcurrentInitRunsOnce(t *testing.T) {
	factory := newCountingFactory()
	m := NewMultiEmbedder(factory.create)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = m.EmbedDocuments(context.Background(), "main.go", []string{"x"})
		}()
	}
	wg.Wait()

	if got := factory.count(router.UniXcoder); got != 1 {
		t.Errorf("factory called %d times under contention, want 1", got)
	}
}

func TestMultiEmbedder_SlowInitDoesNotBlockOtherModels(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	factory := func(ctx context.Context, model router.EmbeddingModel) (Backend, error) {
		if model == router.Xtr {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &fakeBackend{model: model}, nil
	}
	m := NewMultiEmbedder(factory)

	done := make(chan error, 1)
	go func() {
		_, _, err := m.EmbedDocuments(context.Background(), "guide.md", []string{"x"})
		done <- err
	}()
	<-started

	if _, model, err := m.EmbedDocuments(context.Background(), "main.go", []string{"x"}); err != nil || model != router.UniXcoder {
		t.Fatalf("EmbedDocuments(main.go) = %s, %v while xtr was loading", model, err)
	}
	if m.Loaded(router.Xtr) {
		t.Error("Loaded(xtr) should be false while it is still loading")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("EmbedDocuments(guide.md) error = %v", err)
	}
	if !m.Loaded(router.Xtr) {
		t.Error("Loaded(xtr) should be true after loading finished")
	}
}

func TestMultiEmbedder_Warmup(t *testing.T) {
	factory := newCountingFactory()
	m := NewMultiEmbedder(factory.create)

	if err := m.Warmup(context.Background(), router.JinaColbert); err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}
	if !m.Loaded(router.JinaColbert) {
		t.Error("Warmup() should create the backend")
	}

	b := m.backends[router.JinaColbert].(*fakeBackend)
	if got := atomic.LoadInt32(&b.warmups); got != 0 {
		t.Errorf("new backend warmed %d extra times, want 0", got)
	}
	if err := m.Warmup(context.Background(), router.JinaColbert); err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}
	if got := atomic.LoadInt32(&b.warmups); got != 1 {
		t.Errorf("existing backend warmed %d times, want 1", got)
	}

	err := m.Warmup(context.Background(), router.EmbeddingModel(99))
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Warmup(unknown) error = %v, want ErrUnknownModel", err)
	}
}

func TestNewHTTPBackendFactory_UnknownModel(t *testing.T) {
	factory := NewHTTPBackendFactory(map[router.EmbeddingModel]Endpoint{})
	if _, err := factory(context.Background(), router.Xtr); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("factory error = %v, want ErrUnknownModel", err)
	}
}
