package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeindex/internal/indexer"
	"codeindex/internal/tokens"
)

func TestChunkHandler(t *testing.T) {
	handler := NewChunkHandler(indexer.DefaultConfig(), tokens.Heuristic{})

	body := `{"content":"# Title\n\n` + "```rust\\nfn main() {}\\n```" + `","path":"notes.md","min_tokens":0}`
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp ChunkResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Title != "Title" {
		t.Errorf("title = %q, want Title", resp.Title)
	}
	if len(resp.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(resp.Chunks))
	}
	c := resp.Chunks[0]
	if c.Type != indexer.ChunkTypeCodeBlock || c.Language != "rust" || c.HeaderContext != "# Title" {
		t.Errorf("chunk = %+v", c)
	}
	if !strings.Contains(c.Content, "fn main()") {
		t.Errorf("content = %q", c.Content)
	}
}

func TestChunkHandler_DefaultMinTokensDropsSmallParagraphs(t *testing.T) {
	handler := NewChunkHandler(indexer.DefaultConfig(), tokens.Heuristic{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader(`{"content":"tiny"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp ChunkResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Chunks == nil || len(resp.Chunks) != 0 {
		t.Errorf("chunks = %v, want empty list", resp.Chunks)
	}
}

func TestChunkHandler_InvalidConfig(t *testing.T) {
	handler := NewChunkHandler(indexer.DefaultConfig(), tokens.Heuristic{})

	for _, body := range []string{
		`{"content":"x","max_tokens":0}`,
		`{"content":"x","max_tokens":100,"overlap_tokens":100}`,
		`{"content":"x","min_tokens":-1}`,
	} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader(body)))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestChunkHandler_SmallMaxTokensKeepsOverlapBelow(t *testing.T) {
	handler := NewChunkHandler(indexer.DefaultConfig(), tokens.Heuristic{})

	words := strings.Repeat("lorem ipsum dolor ", 60)
	body := `{"content":"` + words + `","max_tokens":50,"min_tokens":0}`
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp ChunkResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Chunks) < 2 {
		t.Fatalf("got %d chunks, want the paragraph split into windows", len(resp.Chunks))
	}
	for i, c := range resp.Chunks {
		if c.TokenCount > 50 {
			t.Errorf("chunk %d has %d tokens, want <= 50", i, c.TokenCount)
		}
	}
}
