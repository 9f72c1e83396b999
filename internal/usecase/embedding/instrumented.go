// Package embedding decorates the embedding provider with budget
// enforcement and observability.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/domain"
	"github.com/avaolo/agknow/internal/domain/usage"
	"github.com/avaolo/agknow/internal/metrics"
)

// DefaultMaxAPIBatchSize caps the number of texts sent in one API request.
const DefaultMaxAPIBatchSize = 256

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	Remaining(p usage.Period) int64
}

// InstrumentedEmbedder wraps an Embedder with budget enforcement and
// debug logging. Transport-level metrics (requests, duration, tokens)
// live in transport/openai; this layer owns budget accounting only.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with budget and observability.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Embed enforces the budget, delegates, and records consumed tokens.
func (e *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if err := e.guard(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	result, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.logger.Error("Embedding request failed",
			append(e.idFields(), zap.Duration("duration", time.Since(start)), zap.Error(err))...)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	e.settle(result.TotalTokens)

	e.logger.Debug("Embedding request completed",
		append(e.idFields(),
			zap.Duration("duration", time.Since(start)),
			zap.Int("dimensions", len(result.Embedding)),
			zap.Int("prompt_tokens", result.PromptTokens),
			zap.Int("total_tokens", result.TotalTokens),
		)...)

	return result, nil
}

// BatchEmbed enforces the budget and feeds texts to the inner embedder
// in API-sized slices, re-checking the budget between slices.
func (e *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	if err := e.guard(ctx, len(texts)); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	start := time.Now()

	var result domain.BatchEmbeddingResult
	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		if offset > 0 && e.budget != nil {
			if err := e.budget.Check(ctx); err != nil {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("budget check (chunk %d): %w", offset, err)
			}
		}

		slice := texts[offset:min(offset+DefaultMaxAPIBatchSize, len(texts))]

		part, err := e.delegate(ctx, slice)
		if err != nil {
			e.logger.Error("Batch embedding request failed",
				append(e.idFields(),
					zap.Int("chunk_offset", offset),
					zap.Int("chunk_size", len(slice)),
					zap.Error(err),
				)...)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}

		result.Embeddings = append(result.Embeddings, part.Embeddings...)
		result.PromptTokens += part.PromptTokens
		result.TotalTokens += part.TotalTokens
	}

	e.settle(result.TotalTokens)

	e.logger.Debug("Batch embedding completed",
		append(e.idFields(),
			zap.Duration("duration", time.Since(start)),
			zap.Int("batch_size", len(texts)),
			zap.Int("prompt_tokens", result.PromptTokens),
			zap.Int("total_tokens", result.TotalTokens),
		)...)

	return result, nil
}

// delegate uses the inner BatchEmbedder when available and otherwise
// falls back to sequential single embeds.
func (e *InstrumentedEmbedder) delegate(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if be, ok := e.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, e.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch fallback: %w", err)
	}
	return res, nil
}

// guard rejects the call when the tracker reports an exhausted budget.
func (e *InstrumentedEmbedder) guard(ctx context.Context, batchSize int) error {
	if e.budget == nil {
		return nil
	}
	if err := e.budget.Check(ctx); err != nil {
		e.logger.Error("Budget exceeded",
			append(e.idFields(), zap.Int("batch_size", batchSize), zap.Error(err))...)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

// settle records consumed tokens and refreshes the remaining-budget gauges.
func (e *InstrumentedEmbedder) settle(totalTokens int) {
	if e.budget == nil || totalTokens <= 0 {
		return
	}
	e.budget.Record(int64(totalTokens))
	remaining := metrics.EmbeddingBudgetTokensRemaining
	remaining.WithLabelValues(e.provider, "daily").Set(float64(e.budget.Remaining(usage.PeriodDay)))
	remaining.WithLabelValues(e.provider, "monthly").Set(float64(e.budget.Remaining(usage.PeriodMonth)))
}

func (e *InstrumentedEmbedder) idFields() []zap.Field {
	return []zap.Field{
		zap.String("provider", e.provider),
		zap.String("model", e.model),
	}
}
