package embcache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/db"
	"github.com/avaolo/agknow/internal/domain"
)

// fakeProvider replicates its single result per batch text and counts
// batch round-trips so tests can assert the cache short-circuits.
type fakeProvider struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	batchCalls int
	batchSizes []int
}

func (f *fakeProvider) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return f.result, f.err
}

func (f *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.batchCalls++
	f.batchSizes = append(f.batchSizes, len(texts))
	if f.batchErr != nil {
		return domain.BatchEmbeddingResult{}, f.batchErr
	}
	out := domain.BatchEmbeddingResult{
		Embeddings:   make([][]float32, len(texts)),
		PromptTokens: f.result.PromptTokens * len(texts),
		TotalTokens:  f.result.TotalTokens * len(texts),
	}
	for i := range texts {
		out.Embeddings[i] = f.result.Embedding
	}
	return out, nil
}

// fakeCache is a map-backed key-value store. hitAll, when set, answers
// every Get with that payload regardless of key.
type fakeCache struct {
	data   map[string][]byte
	hitAll []byte
	sets   int
	gets   int
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	f.gets++
	if f.hitAll != nil {
		return f.hitAll, nil
	}
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte) error {
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[key] = value
	f.sets++
	return nil
}

func newCachedEmbedder(t *testing.T, inner domain.Embedder) (*CachedEmbedder, *fakeCache) {
	t.Helper()
	cache := &fakeCache{}
	return New(inner, cache, "test-model", nil, zap.NewNop()), cache
}
