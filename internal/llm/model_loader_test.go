package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLoader(url string) *ModelLoader {
	ml := NewModelLoader(url)
	ml.pollInterval = time.Millisecond
	ml.maxAttempts = 5
	return ml
}

func TestModelLoader_LoadModel(t *testing.T) {
	failed := true
	exitCode := 3

	tests := []struct {
		name      string
		statuses  []ModelStatus // returned by successive /models calls
		loadResp  LoadModelResponse
		wantLoads int32
		wantErr   bool
	}{
		{
			name:      "already in cache",
			statuses:  []ModelStatus{{ID: "m", InCache: true}},
			wantLoads: 0,
		},
		{
			name:      "loads then becomes cached",
			statuses:  []ModelStatus{{ID: "m"}, {ID: "m"}, {ID: "m", InCache: true}},
			loadResp:  LoadModelResponse{Success: true},
			wantLoads: 1,
		},
		{
			name:      "load rejected",
			statuses:  []ModelStatus{{ID: "m"}},
			loadResp:  LoadModelResponse{Success: false, Error: "no such file"},
			wantLoads: 1,
			wantErr:   true,
		},
		{
			name:      "load fails asynchronously",
			statuses:  []ModelStatus{{ID: "m"}, {ID: "m"}},
			loadResp:  LoadModelResponse{Success: true},
			wantLoads: 1,
			wantErr:   true,
		},
		{
			name:      "never becomes cached",
			statuses:  []ModelStatus{{ID: "m"}},
			loadResp:  LoadModelResponse{Success: true},
			wantLoads: 1,
			wantErr:   true,
		},
	}
	// the asynchronous failure reports failed status on the second poll
	tests[3].statuses[1].Status.Failed = &failed
	tests[3].statuses[1].Status.ExitCode = &exitCode

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls, loads int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/models":
					n := int(atomic.AddInt32(&calls, 1)) - 1
					if n >= len(tt.statuses) {
						n = len(tt.statuses) - 1
					}
					_ = json.NewEncoder(w).Encode(ModelsResponse{Data: []ModelStatus{tt.statuses[n]}})
				case "/models/load":
					atomic.AddInt32(&loads, 1)
					_ = json.NewEncoder(w).Encode(tt.loadResp)
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			err := newTestLoader(server.URL).LoadModel(context.Background(), "m", nil)
			if tt.wantErr && err == nil {
				t.Error("LoadModel() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("LoadModel() unexpected error: %v", err)
			}
			if got := atomic.LoadInt32(&loads); got != tt.wantLoads {
				t.Errorf("load requests = %d, want %d", got, tt.wantLoads)
			}
		})
	}
}

func TestModelLoader_StaticServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	if err := newTestLoader(server.URL).LoadModel(context.Background(), "m", nil); err != nil {
		t.Errorf("LoadModel() on a server without /models = %v, want nil", err)
	}
}

func TestModelLoader_IsModelLoaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ModelsResponse{Data: []ModelStatus{{ID: "a", InCache: true}, {ID: "b"}}})
	}))
	defer server.Close()

	ml := newTestLoader(server.URL)
	for model, want := range map[string]bool{"a": true, "b": false, "missing": false} {
		got, err := ml.IsModelLoaded(context.Background(), model)
		if err != nil {
			t.Fatalf("IsModelLoaded(%q) error = %v", model, err)
		}
		if got != want {
			t.Errorf("IsModelLoaded(%q) = %v, want %v", model, got, want)
		}
	}
}
