package search

import (
	"context"
	"testing"

	"github.com/avaolo/agknow/internal/domain"
	"github.com/avaolo/agknow/internal/domain/knowledge"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
)

type mockRepo struct {
	knnFn  func(ctx context.Context, vector []float32, f knowledge.Filter, topK int) ([]domsearch.Hit, error)
	bm25Fn func(ctx context.Context, query string, f knowledge.Filter, topK int) ([]domsearch.Hit, error)
}

func (m *mockRepo) SearchKNN(
	ctx context.Context, vector []float32, f knowledge.Filter, topK int,
) ([]domsearch.Hit, error) {
	if m.knnFn != nil {
		return m.knnFn(ctx, vector, f, topK)
	}
	return nil, nil
}

func (m *mockRepo) SearchBM25(
	ctx context.Context, query string, f knowledge.Filter, topK int,
) ([]domsearch.Hit, error) {
	if m.bm25Fn != nil {
		return m.bm25Fn(ctx, query, f, topK)
	}
	return nil, nil
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func hit(t *testing.T, id string, score float64) domsearch.Hit {
	t.Helper()
	doc, err := knowledge.New(id, "text for "+id, knowledge.Attributes{})
	if err != nil {
		t.Fatalf("New document: %v", err)
	}
	return domsearch.NewHit(doc, score)
}

func mustRequest(t *testing.T, query string, m domsearch.Mode, topK int, minScore float64) *domsearch.Request {
	t.Helper()
	req, err := domsearch.New(query, m, knowledge.Filter{}, topK, minScore)
	if err != nil {
		t.Fatalf("New request: %v", err)
	}
	return &req
}
