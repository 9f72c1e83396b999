package hierarchy

import (
	"context"

	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
)

// Provider fetches information items from one registered source.
type Provider interface {
	Fetch(
		ctx context.Context, query string, tier domhier.Tier,
		qctx domhier.Context, limit int,
	) ([]domhier.Item, error)
}
