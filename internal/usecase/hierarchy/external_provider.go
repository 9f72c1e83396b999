package hierarchy

import (
	"context"

	"go.uber.org/zap"

	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
)

// ExternalSearchSource is the registry name of the external search provider.
const ExternalSearchSource = "external_search"

// ExternalProvider is a placeholder for web search integration. It serves
// the global tier only and currently returns no items.
type ExternalProvider struct {
	logger *zap.Logger
}

// NewExternalProvider creates an external search provider.
func NewExternalProvider(logger *zap.Logger) *ExternalProvider {
	return &ExternalProvider{logger: logger}
}

// Fetch returns no items until an external search backend is wired in.
func (p *ExternalProvider) Fetch(
	ctx context.Context, query string, tier domhier.Tier,
	qctx domhier.Context, limit int,
) ([]domhier.Item, error) {
	p.logger.Debug("External search not configured, returning no items",
		zap.String("tier", tier.String()))
	return nil, nil
}
