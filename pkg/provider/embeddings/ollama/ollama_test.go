package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	t.Run("empty model is rejected", func(t *testing.T) {
		if _, err := New("http://localhost:11434", ""); err == nil {
			t.Fatal("expected error for empty model")
		}
	})

	t.Run("defaults base URL and strips trailing slash", func(t *testing.T) {
		p, err := New("", "nomic-embed-text")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if p.baseURL != DefaultBaseURL {
			t.Errorf("baseURL = %q, want %q", p.baseURL, DefaultBaseURL)
		}

		p, err = New("http://example.com/", "nomic-embed-text")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if p.baseURL != "http://example.com" {
			t.Errorf("baseURL = %q, want trailing slash stripped", p.baseURL)
		}
	})

	t.Run("known model dimensions", func(t *testing.T) {
		for model, want := range map[string]int{
			"nomic-embed-text":      768,
			"mxbai-embed-large":     1024,
			"all-minilm":            384,
			"nomic-embed-text:v1.5": 768,
		} {
			p, err := New("", model)
			if err != nil {
				t.Fatalf("New(%q): %v", model, err)
			}
			if got := p.Dimensions(); got != want {
				t.Errorf("Dimensions(%q) = %d, want %d", model, got, want)
			}
		}
	})

	t.Run("default request timeout is non-zero", func(t *testing.T) {
		p, err := New("", "nomic-embed-text")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if p.httpClient.Timeout != DefaultTimeout {
			t.Errorf("client timeout = %v, want %v", p.httpClient.Timeout, DefaultTimeout)
		}

		p, err = New("", "nomic-embed-text", WithTimeout(5*time.Second))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if p.httpClient.Timeout != 5*time.Second {
			t.Errorf("client timeout = %v, want override 5s", p.httpClient.Timeout)
		}
	})

	t.Run("WithDimensions overrides table", func(t *testing.T) {
		p, err := New("", "nomic-embed-text", WithDimensions(512))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if got := p.Dimensions(); got != 512 {
			t.Errorf("Dimensions() = %d, want 512", got)
		}
	})
}

func TestEmbed(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q, want /api/embed", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}
		if len(req.Input) != 1 || req.Input[0] != "hello" {
			t.Errorf("input = %v, want [hello]", req.Input)
		}
		json.NewEncoder(w).Encode(embedResponse{
			Model:      req.Model,
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	})

	p, err := New(srv.URL, "test-model")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("len(vec) = %d, want 3", len(vec))
	}
	if vec[0] != 0.1 || vec[2] != 0.3 {
		t.Errorf("vec = %v", vec)
	}
}

func TestEmbedBatch(t *testing.T) {
	t.Run("empty input skips the request", func(t *testing.T) {
		called := false
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})
		p, err := New(srv.URL, "test-model")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		vecs, err := p.EmbedBatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("EmbedBatch: %v", err)
		}
		if vecs != nil {
			t.Errorf("vecs = %v, want nil", vecs)
		}
		if called {
			t.Error("server was called for empty input")
		}
	})

	t.Run("preserves order", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			var req embedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			resp := embedResponse{Model: req.Model}
			for i := range req.Input {
				resp.Embeddings = append(resp.Embeddings, []float32{float32(i)})
			}
			json.NewEncoder(w).Encode(resp)
		})
		p, err := New(srv.URL, "test-model")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("EmbedBatch: %v", err)
		}
		if len(vecs) != 3 {
			t.Fatalf("len(vecs) = %d, want 3", len(vecs))
		}
		for i, v := range vecs {
			if v[0] != float32(i) {
				t.Errorf("vecs[%d] = %v, want [%d]", i, v, i)
			}
		}
	})

	t.Run("count mismatch is an error", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
		})
		p, err := New(srv.URL, "test-model")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := p.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
			t.Fatal("expected error on count mismatch")
		}
	})

	t.Run("server error surfaces", func(t *testing.T) {
		srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		})
		p, err := New(srv.URL, "test-model")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := p.EmbedBatch(context.Background(), []string{"a"}); err == nil {
			t.Fatal("expected error on 404")
		}
	})
}

func TestDimensionsProbe(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{make([]float32, 512)}})
	})

	p, err := New(srv.URL, "some-custom-model")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Dimensions(); got != 512 {
		t.Errorf("Dimensions() = %d, want 512 from probe", got)
	}
	// Second call must reuse the cached value.
	if got := p.Dimensions(); got != 512 {
		t.Errorf("Dimensions() = %d on second call, want 512", got)
	}
	if calls != 1 {
		t.Errorf("probe calls = %d, want 1", calls)
	}
}
