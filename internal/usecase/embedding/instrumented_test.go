package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/domain"
	"github.com/avaolo/agknow/internal/domain/usage"
	"github.com/avaolo/agknow/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

// stubEmbedder implements both Embedder and BatchEmbedder. The batch
// path replicates the single result per input text unless batchResult
// or batchErr is set.
type stubEmbedder struct {
	result      domain.EmbeddingResult
	err         error
	batchResult domain.BatchEmbeddingResult
	batchErr    error
	batchCalls  int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return s.result, s.err
}

func (s *stubEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	s.batchCalls++
	if s.batchErr != nil {
		return domain.BatchEmbeddingResult{}, s.batchErr
	}
	if s.batchResult.Embeddings != nil {
		return s.batchResult, nil
	}
	out := domain.BatchEmbeddingResult{
		Embeddings:   make([][]float32, len(texts)),
		PromptTokens: s.result.PromptTokens * len(texts),
		TotalTokens:  s.result.TotalTokens * len(texts),
	}
	for i := range texts {
		out.Embeddings[i] = s.result.Embedding
	}
	return out, nil
}

// singleOnlyEmbedder implements Embedder but not BatchEmbedder, to
// exercise the sequential fallback.
type singleOnlyEmbedder struct {
	result domain.EmbeddingResult
	calls  int
}

func (s *singleOnlyEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	s.calls++
	return s.result, nil
}

func wrap(inner domain.Embedder, provider string, budget BudgetChecker) *InstrumentedEmbedder {
	return NewInstrumentedEmbedder(inner, provider, "test-model", budget, zap.NewNop())
}

func TestInstrumentedEmbedder_Embed(t *testing.T) {
	t.Run("passes result through", func(t *testing.T) {
		inner := &stubEmbedder{result: domain.EmbeddingResult{
			Embedding:    []float32{0.1, 0.2, 0.3},
			PromptTokens: 100,
			TotalTokens:  100,
		}}
		result, err := wrap(inner, "t-pass", nil).Embed(context.Background(), "karenca za jabuku")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Embedding) != 3 {
			t.Fatalf("got %d dimensions, want 3", len(result.Embedding))
		}
		if result.TotalTokens != 100 {
			t.Fatalf("got %d total tokens, want 100", result.TotalTokens)
		}
	})

	t.Run("propagates provider error", func(t *testing.T) {
		inner := &stubEmbedder{err: fmt.Errorf("api error")}
		if _, err := wrap(inner, "t-err", nil).Embed(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestInstrumentedEmbedder_BudgetRejection(t *testing.T) {
	tracker := NewBudgetTracker("t-reject", 100, 0, BudgetActionReject, zap.NewNop())
	tracker.Record(100)

	inner := &stubEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	emb := wrap(inner, "t-reject", tracker)

	if _, err := emb.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("Embed: want ErrEmbeddingQuotaExceeded, got %v", err)
	}
	if _, err := emb.BatchEmbed(context.Background(), []string{"a", "b"}); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("BatchEmbed: want ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestInstrumentedEmbedder_RecordsConsumedTokens(t *testing.T) {
	tracker := NewBudgetTracker("t-record", 1_000_000, 10_000_000, BudgetActionReject, zap.NewNop())

	inner := &stubEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1},
		PromptTokens: 500,
		TotalTokens:  500,
	}}
	emb := wrap(inner, "t-record", tracker)

	dayBefore := tracker.Remaining(usage.PeriodDay)
	monthBefore := tracker.Remaining(usage.PeriodMonth)

	if _, err := emb.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := dayBefore - tracker.Remaining(usage.PeriodDay); got != 500 {
		t.Errorf("daily budget decreased by %d, want 500", got)
	}
	if got := monthBefore - tracker.Remaining(usage.PeriodMonth); got != 500 {
		t.Errorf("monthly budget decreased by %d, want 500", got)
	}
}

func TestInstrumentedEmbedder_BatchEmbed(t *testing.T) {
	t.Run("single API call for small batch", func(t *testing.T) {
		inner := &stubEmbedder{result: domain.EmbeddingResult{
			Embedding:    []float32{0.1, 0.2},
			PromptTokens: 10,
			TotalTokens:  10,
		}}
		res, err := wrap(inner, "t-batch", nil).BatchEmbed(context.Background(), []string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Embeddings) != 3 {
			t.Fatalf("got %d embeddings, want 3", len(res.Embeddings))
		}
		if inner.batchCalls != 1 {
			t.Errorf("got %d batch calls, want 1", inner.batchCalls)
		}
	})

	t.Run("empty input short-circuits", func(t *testing.T) {
		inner := &stubEmbedder{}
		res, err := wrap(inner, "t-empty", nil).BatchEmbed(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Embeddings != nil || inner.batchCalls != 0 {
			t.Errorf("empty input must not reach the provider")
		}
	})

	t.Run("propagates provider error", func(t *testing.T) {
		inner := &stubEmbedder{batchErr: fmt.Errorf("api error")}
		if _, err := wrap(inner, "t-berr", nil).BatchEmbed(context.Background(), []string{"a"}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("records aggregate tokens", func(t *testing.T) {
		tracker := NewBudgetTracker("t-brec", 1_000_000, 10_000_000, BudgetActionReject, zap.NewNop())
		inner := &stubEmbedder{result: domain.EmbeddingResult{
			Embedding:    []float32{0.1},
			PromptTokens: 100,
			TotalTokens:  100,
		}}
		before := tracker.Remaining(usage.PeriodDay)

		if _, err := wrap(inner, "t-brec", tracker).BatchEmbed(context.Background(), []string{"a", "b", "c"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// 3 texts * 100 tokens each.
		if got := before - tracker.Remaining(usage.PeriodDay); got != 300 {
			t.Errorf("budget decreased by %d, want 300", got)
		}
	})
}

func TestInstrumentedEmbedder_BatchFallback(t *testing.T) {
	inner := &singleOnlyEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1},
		PromptTokens: 5,
		TotalTokens:  5,
	}}
	res, err := wrap(inner, "t-fb", nil).BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(res.Embeddings))
	}
	if inner.calls != 2 {
		t.Errorf("got %d single Embed calls, want 2", inner.calls)
	}
	if res.TotalTokens != 10 {
		t.Errorf("got %d total tokens, want 10", res.TotalTokens)
	}
}
