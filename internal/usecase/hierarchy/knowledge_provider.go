package hierarchy

import (
	"context"
	"fmt"

	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
	"github.com/avaolo/agknow/internal/domain/knowledge"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
)

// KnowledgeBaseSource is the registry name of the knowledge base provider.
const KnowledgeBaseSource = "knowledge_base"

// Searcher runs knowledge base queries.
type Searcher interface {
	Search(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error)
}

// KnowledgeProvider serves country and global tiers from the knowledge
// base. It never serves farmer-tier data.
type KnowledgeProvider struct {
	searcher Searcher
}

// NewKnowledgeProvider creates a knowledge base provider.
func NewKnowledgeProvider(searcher Searcher) *KnowledgeProvider {
	return &KnowledgeProvider{searcher: searcher}
}

// Fetch searches the knowledge base scoped to the requested tier.
func (p *KnowledgeProvider) Fetch(
	ctx context.Context, query string, tier domhier.Tier,
	qctx domhier.Context, limit int,
) ([]domhier.Item, error) {
	var filter knowledge.Filter
	switch tier {
	case domhier.TierCountry:
		filter = knowledge.Filter{
			CountryCode: qctx.CountryCode,
			Relevance:   knowledge.RelevanceCountry,
			Language:    qctx.Language,
		}
	case domhier.TierGlobal:
		filter = knowledge.Filter{Relevance: knowledge.RelevanceGlobal}
	default:
		return nil, fmt.Errorf("knowledge base cannot serve %s tier", tier)
	}

	req, err := domsearch.New(query, domsearch.Hybrid, filter, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	hits, err := p.searcher.Search(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("search knowledge base: %w", err)
	}

	items := make([]domhier.Item, 0, len(hits))
	for _, h := range hits {
		doc := h.Document()
		meta := map[string]string{
			"doc_id":   doc.ID(),
			"doc_type": string(doc.Type()),
		}
		if src := doc.Source(); src != "" {
			meta["source"] = src
		}
		items = append(items, domhier.NewItem(
			KnowledgeBaseSource, tier, doc.Text(), h.Score(), meta,
		))
	}
	return items, nil
}
