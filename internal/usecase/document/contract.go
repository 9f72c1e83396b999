package document

import (
	"context"

	"github.com/avaolo/agknow/internal/domain"
	"github.com/avaolo/agknow/internal/domain/knowledge"
)

// Repository defines the storage contract for document lifecycle operations.
type Repository interface {
	Upsert(ctx context.Context, doc *knowledge.Document) (bool, error)
	UpsertMulti(ctx context.Context, docs []knowledge.Document) error
	Get(ctx context.Context, id string) (knowledge.Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, cursor string, limit int) ([]knowledge.Document, string, error)
	Count(ctx context.Context) (int, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
