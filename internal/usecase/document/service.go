// Package document handles the knowledge document lifecycle: add,
// bulk index, read, list, delete.
package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avaolo/agknow/internal/domain"
	"github.com/avaolo/agknow/internal/domain/knowledge"
	"github.com/avaolo/agknow/internal/metrics"
)

// Config holds indexing limits and defaults.
type Config struct {
	DefaultLanguage string
	Dimensions      int
	MaxBatchSize    int
	Concurrency     int
}

// Input is a document submission before validation.
type Input struct {
	ID         string
	Text       string
	Attributes knowledge.Attributes
}

// ItemResult is the per-document outcome of a bulk index.
type ItemResult struct {
	ID  string
	Err error
}

// Stats aggregates a bulk index run.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
}

// Service handles document lifecycle operations.
type Service struct {
	repo  Repository
	embed Embedder
	cfg   Config
	now   func() time.Time
}

// New creates a document service.
func New(repo Repository, embed Embedder, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Service{repo: repo, embed: embed, cfg: cfg, now: time.Now}
}

// Add validates, embeds and upserts a single document. Returns the stored
// document and whether it was created (false: updated in place).
func (s *Service) Add(ctx context.Context, in Input) (knowledge.Document, bool, error) {
	doc, err := s.prepare(ctx, in)
	if err != nil {
		metrics.DocumentsIndexedTotal.WithLabelValues(string(in.Attributes.Type), "failed").Inc()
		return knowledge.Document{}, false, err
	}

	created, err := s.repo.Upsert(ctx, &doc)
	if err != nil {
		metrics.DocumentsIndexedTotal.WithLabelValues(string(doc.Type()), "failed").Inc()
		return knowledge.Document{}, false, fmt.Errorf("upsert document: %w", err)
	}

	metrics.DocumentsIndexedTotal.WithLabelValues(string(doc.Type()), "success").Inc()
	return doc, created, nil
}

// BulkIndex embeds and stores documents with bounded concurrency. A single
// failing document never aborts the batch; the stats always add up to Total.
func (s *Service) BulkIndex(ctx context.Context, inputs []Input) (Stats, []ItemResult, error) {
	if len(inputs) == 0 {
		return Stats{}, nil, nil
	}
	if s.cfg.MaxBatchSize > 0 && len(inputs) > s.cfg.MaxBatchSize {
		return Stats{}, nil, fmt.Errorf("%w: %d documents (max %d)",
			domain.ErrBatchTooLarge, len(inputs), s.cfg.MaxBatchSize)
	}

	results := make([]ItemResult, len(inputs))
	docs := make([]knowledge.Document, len(inputs))
	ok := make([]bool, len(inputs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i := range inputs {
		g.Go(func() error {
			doc, err := s.prepare(gctx, inputs[i])

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[i] = ItemResult{ID: inputs[i].ID, Err: err}
				return nil
			}
			results[i] = ItemResult{ID: doc.ID()}
			docs[i] = doc
			ok[i] = true
			return nil
		})
	}

	// Workers swallow per-item errors, so Wait only reports context cancellation.
	if err := g.Wait(); err != nil {
		return Stats{}, nil, err
	}

	toStore := make([]knowledge.Document, 0, len(inputs))
	for i := range docs {
		if ok[i] {
			toStore = append(toStore, docs[i])
		}
	}

	if len(toStore) > 0 {
		if err := s.repo.UpsertMulti(ctx, toStore); err != nil {
			// Storage failed wholesale: mark every prepared document failed.
			for i := range results {
				if ok[i] {
					results[i].Err = fmt.Errorf("store document: %w", err)
					ok[i] = false
				}
			}
		}
	}

	stats := Stats{Total: len(inputs)}
	for i := range results {
		docType := string(inputs[i].Attributes.Type)
		if ok[i] {
			stats.Succeeded++
			metrics.DocumentsIndexedTotal.WithLabelValues(docType, "success").Inc()
		} else {
			stats.Failed++
			metrics.DocumentsIndexedTotal.WithLabelValues(docType, "failed").Inc()
		}
	}

	return stats, results, nil
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, id string) (knowledge.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Delete removes a document by ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// List returns a page of documents with an opaque continuation cursor.
func (s *Service) List(ctx context.Context, cursor string, limit int) ([]knowledge.Document, string, error) {
	docs, next, err := s.repo.List(ctx, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	return docs, next, nil
}

// Count returns the number of indexed documents.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// prepare validates the input, applies defaults, embeds the text and
// stamps the indexing time.
func (s *Service) prepare(ctx context.Context, in Input) (knowledge.Document, error) {
	attrs := in.Attributes
	if attrs.Language == "" {
		attrs.Language = s.cfg.DefaultLanguage
	}

	doc, err := knowledge.New(in.ID, in.Text, attrs)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidDocument, err)
	}

	embResult, err := s.embed.Embed(ctx, doc.Text())
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("embed document: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(embResult.TotalTokens)

	if s.cfg.Dimensions > 0 && len(embResult.Embedding) != s.cfg.Dimensions {
		return knowledge.Document{}, fmt.Errorf("%w: got %d, want %d",
			domain.ErrVectorDimMismatch, len(embResult.Embedding), s.cfg.Dimensions)
	}

	return doc.WithVector(embResult.Embedding).WithIndexedAt(s.now().UTC()), nil
}
