package embcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/domain"
)

func TestCachedEmbedder_Embed(t *testing.T) {
	t.Run("miss calls provider and stores vector", func(t *testing.T) {
		inner := &fakeProvider{result: domain.EmbeddingResult{
			Embedding:    []float32{0.1, 0.2, 0.3},
			PromptTokens: 10,
			TotalTokens:  10,
		}}
		ce, cache := newCachedEmbedder(t, inner)

		result, err := ce.Embed(context.Background(), "karenca za mankozeb")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
			t.Fatalf("unexpected vector: %v", result.Embedding)
		}
		if result.TotalTokens != 10 {
			t.Fatalf("got TotalTokens=%d, want 10", result.TotalTokens)
		}
		if cache.sets != 1 {
			t.Fatalf("got %d cache writes, want 1", cache.sets)
		}
	})

	t.Run("hit skips provider and reports zero tokens", func(t *testing.T) {
		inner := &fakeProvider{result: domain.EmbeddingResult{
			Embedding:    []float32{0.1, 0.2, 0.3},
			PromptTokens: 10,
			TotalTokens:  10,
		}}
		ce, cache := newCachedEmbedder(t, inner)
		cache.hitAll = vectorToCacheBytes([]float32{0.4, 0.5, 0.6})

		result, err := ce.Embed(context.Background(), "karenca za mankozeb")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
			t.Fatalf("want cached vector, got %v", result.Embedding)
		}
		if result.TotalTokens != 0 {
			t.Fatalf("got TotalTokens=%d on hit, want 0", result.TotalTokens)
		}
	})

	t.Run("second embed of same text hits the cache", func(t *testing.T) {
		inner := &fakeProvider{result: domain.EmbeddingResult{
			Embedding:   []float32{0.7},
			TotalTokens: 4,
		}}
		ce, _ := newCachedEmbedder(t, inner)

		if _, err := ce.Embed(context.Background(), "fitosanitarni propis"); err != nil {
			t.Fatalf("first embed: %v", err)
		}
		second, err := ce.Embed(context.Background(), "fitosanitarni propis")
		if err != nil {
			t.Fatalf("second embed: %v", err)
		}
		if second.TotalTokens != 0 {
			t.Fatalf("second embed consumed %d tokens, want 0", second.TotalTokens)
		}
	})

	t.Run("provider error propagates", func(t *testing.T) {
		inner := &fakeProvider{err: errors.New("provider down")}
		ce, _ := newCachedEmbedder(t, inner)

		if _, err := ce.Embed(context.Background(), "x"); err == nil {
			t.Fatal("expected provider error")
		}
	})

	t.Run("different models do not share cache entries", func(t *testing.T) {
		inner := &fakeProvider{result: domain.EmbeddingResult{
			Embedding:   []float32{0.9},
			TotalTokens: 3,
		}}
		cache := &fakeCache{}
		ada := New(inner, cache, "text-embedding-ada-002", nil, zap.NewNop())
		small := New(inner, cache, "text-embedding-3-small", nil, zap.NewNop())

		if _, err := ada.Embed(context.Background(), "karenca"); err != nil {
			t.Fatalf("ada embed: %v", err)
		}
		second, err := small.Embed(context.Background(), "karenca")
		if err != nil {
			t.Fatalf("small embed: %v", err)
		}
		if second.TotalTokens == 0 {
			t.Fatal("other model served from cache, want provider call")
		}
		if cache.sets != 2 {
			t.Fatalf("got %d cache writes, want one per model", cache.sets)
		}
	})
}

func TestCachedEmbedder_BatchEmbed(t *testing.T) {
	t.Run("all misses go to provider in one call", func(t *testing.T) {
		inner := &fakeProvider{result: domain.EmbeddingResult{
			Embedding:    []float32{0.1, 0.2},
			PromptTokens: 5,
			TotalTokens:  5,
		}}
		ce, cache := newCachedEmbedder(t, inner)

		res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Embeddings) != 2 {
			t.Fatalf("got %d embeddings, want 2", len(res.Embeddings))
		}
		if cache.sets != 2 {
			t.Errorf("got %d cache writes, want 2", cache.sets)
		}
		if inner.batchCalls != 1 {
			t.Errorf("got %d provider calls, want 1", inner.batchCalls)
		}
		if res.TotalTokens != 10 {
			t.Errorf("got TotalTokens=%d, want 10", res.TotalTokens)
		}
	})

	t.Run("all hits never reach provider", func(t *testing.T) {
		inner := &fakeProvider{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
		ce, cache := newCachedEmbedder(t, inner)
		cache.hitAll = vectorToCacheBytes([]float32{0.9, 0.8})

		res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Embeddings) != 2 {
			t.Fatalf("got %d embeddings, want 2", len(res.Embeddings))
		}
		if res.TotalTokens != 0 {
			t.Errorf("got TotalTokens=%d on all hits, want 0", res.TotalTokens)
		}
		if inner.batchCalls != 0 {
			t.Errorf("provider was called %d times, want 0", inner.batchCalls)
		}
	})

	t.Run("only misses are embedded and billed", func(t *testing.T) {
		inner := &fakeProvider{result: domain.EmbeddingResult{
			Embedding:    []float32{0.5},
			PromptTokens: 3,
			TotalTokens:  3,
		}}
		ce, _ := newCachedEmbedder(t, inner)

		// Warm the cache for exactly one text.
		if _, err := ce.Embed(context.Background(), "hit1"); err != nil {
			t.Fatalf("warm: %v", err)
		}
		inner.batchCalls = 0

		res, err := ce.BatchEmbed(context.Background(), []string{"miss1", "hit1", "miss2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Embeddings) != 3 {
			t.Fatalf("got %d embeddings, want 3", len(res.Embeddings))
		}
		if len(inner.batchSizes) != 1 || inner.batchSizes[0] != 2 {
			t.Errorf("provider batch sizes %v, want [2]", inner.batchSizes)
		}
		// Two misses at 3 tokens each.
		if res.TotalTokens != 6 {
			t.Errorf("got TotalTokens=%d, want 6", res.TotalTokens)
		}
	})

	t.Run("provider error propagates", func(t *testing.T) {
		inner := &fakeProvider{batchErr: errors.New("api down")}
		ce, _ := newCachedEmbedder(t, inner)

		if _, err := ce.BatchEmbed(context.Background(), []string{"a"}); err == nil {
			t.Fatal("expected provider error")
		}
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		inner := &fakeProvider{}
		ce, cache := newCachedEmbedder(t, inner)

		res, err := ce.BatchEmbed(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Embeddings != nil || cache.gets != 0 {
			t.Errorf("empty input must not touch cache or provider")
		}
	})
}
