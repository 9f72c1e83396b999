package hierarchy

import (
	"context"

	"go.uber.org/zap"

	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
)

// FarmerDatabaseSource is the registry name of the farmer database provider.
const FarmerDatabaseSource = "farmer_database"

// FarmerProvider is a placeholder for farm record lookups. It is the only
// default source authorized for the farmer tier and also serves country
// data, never global. It returns no items until a farm records backend
// is wired in.
type FarmerProvider struct {
	logger *zap.Logger
}

// NewFarmerProvider creates a farmer database provider.
func NewFarmerProvider(logger *zap.Logger) *FarmerProvider {
	return &FarmerProvider{logger: logger}
}

// Fetch returns no items until a farm records backend is wired in.
func (p *FarmerProvider) Fetch(
	ctx context.Context, query string, tier domhier.Tier,
	qctx domhier.Context, limit int,
) ([]domhier.Item, error) {
	p.logger.Debug("Farmer database not configured, returning no items",
		zap.String("tier", tier.String()),
		zap.String("farmer_id", qctx.FarmerID))
	return nil, nil
}
