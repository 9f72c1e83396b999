package search

import (
	"context"

	"github.com/avaolo/agknow/internal/domain"
	"github.com/avaolo/agknow/internal/domain/knowledge"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	SearchKNN(ctx context.Context, vector []float32, f knowledge.Filter, topK int) ([]domsearch.Hit, error)
	SearchBM25(ctx context.Context, query string, f knowledge.Filter, topK int) ([]domsearch.Hit, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
