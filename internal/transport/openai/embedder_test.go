package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

// apiVector is one entry of the /embeddings response data array.
type apiVector struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// fakeAPI serves a canned /embeddings response and lets the test
// inspect the incoming request.
func fakeAPI(t *testing.T, tokens int, vectors ...apiVector) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}

		body := map[string]any{
			"object": "list",
			"model":  "test-model",
			"data":   vectors,
			"usage": map[string]int{
				"prompt_tokens": tokens,
				"total_tokens":  tokens,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
}

func newTestEmbedder(baseURL string, dims int) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "test-model",
		Dimensions: dims,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	want := []float32{0.1, 0.2, 0.3, 0.4}
	server := fakeAPI(t, 10, apiVector{Object: "embedding", Embedding: want, Index: 0})
	defer server.Close()

	result, err := newTestEmbedder(server.URL, 4).Embed(context.Background(), "karenca za mankozeb")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(result.Embedding) != len(want) {
		t.Fatalf("got %d dimensions, want %d", len(result.Embedding), len(want))
	}
	for i, v := range result.Embedding {
		if v != want[i] {
			t.Errorf("vec[%d] = %f, want %f", i, v, want[i])
		}
	}
	if result.PromptTokens != 10 || result.TotalTokens != 10 {
		t.Errorf("usage = %d/%d, want 10/10", result.PromptTokens, result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_RestoresOrder(t *testing.T) {
	// The API may return vectors in any order; Index wins.
	server := fakeAPI(t, 20,
		apiVector{Object: "embedding", Embedding: []float32{0.3, 0.4}, Index: 1},
		apiVector{Object: "embedding", Embedding: []float32{0.1, 0.2}, Index: 0},
	)
	defer server.Close()

	result, err := newTestEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"prvi", "drugi"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}

	if len(result.Embeddings) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(result.Embeddings))
	}
	if result.Embeddings[0][0] != 0.1 || result.Embeddings[1][0] != 0.3 {
		t.Errorf("order not restored: %v", result.Embeddings)
	}
	if result.TotalTokens != 20 {
		t.Errorf("got TotalTokens=%d, want 20", result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_Empty(t *testing.T) {
	result, err := newTestEmbedder("http://unused", 0).BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embeddings != nil {
		t.Errorf("got %v for empty input, want nil", result.Embeddings)
	}
}

func TestEmbedder_BatchEmbed_CountMismatch(t *testing.T) {
	server := fakeAPI(t, 5, apiVector{Object: "embedding", Embedding: []float32{0.1}, Index: 0})
	defer server.Close()

	if _, err := newTestEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error when the API returns fewer vectors than inputs")
	}
}

func TestEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "rate limit exceeded",
				"type":    "rate_limit_error",
			},
		})
	}))
	defer server.Close()

	if _, err := newTestEmbedder(server.URL, 0).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for 429 response")
	}
}
