// Package search runs knowledge base queries across semantic, keyword,
// and hybrid modes.
package search

import (
	"context"
	"fmt"

	"github.com/avaolo/agknow/internal/domain"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
)

// Service handles knowledge search.
type Service struct {
	repo  Repository
	embed Embedder
}

// New creates a search service.
func New(repo Repository, embed Embedder) *Service {
	return &Service{repo: repo, embed: embed}
}

// Search executes a search in the requested mode and applies the
// min-score post-filter.
func (s *Service) Search(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error) {
	var hits []domsearch.Hit
	var err error

	switch req.Mode() {
	case domsearch.Semantic:
		hits, err = s.searchSemantic(ctx, req)
	case domsearch.Keyword:
		hits, err = s.searchKeyword(ctx, req)
	case domsearch.Hybrid:
		hits, err = s.searchHybrid(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode())
	}
	if err != nil {
		return nil, err
	}

	if req.MinScore() > 0 {
		filtered := hits[:0]
		for _, h := range hits {
			if h.Score() >= req.MinScore() {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}

	return hits, nil
}

// searchSemantic embeds the query and runs KNN search.
func (s *Service) searchSemantic(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error) {
	embResult, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(embResult.TotalTokens)

	hits, err := s.repo.SearchKNN(ctx, embResult.Embedding, req.Filter(), req.TopK())
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return hits, nil
}

// searchKeyword runs BM25 search over the text field.
func (s *Service) searchKeyword(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error) {
	hits, err := s.repo.SearchBM25(ctx, req.Query(), req.Filter(), req.TopK())
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}
	return hits, nil
}

// searchHybrid runs KNN and BM25, then fuses via RRF.
func (s *Service) searchHybrid(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error) {
	embResult, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(embResult.TotalTokens)

	knnHits, err := s.repo.SearchKNN(ctx, embResult.Embedding, req.Filter(), req.TopK())
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	bm25Hits, err := s.repo.SearchBM25(ctx, req.Query(), req.Filter(), req.TopK())
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}

	return fuseRRF(knnHits, bm25Hits, req.TopK()), nil
}
