// Package hierarchy answers tiered information queries: farmer-specific
// data first, then country-level, then global knowledge. Sources are
// bound to the tiers they are authorized to serve; items breaking that
// rule are dropped and logged, never returned.
package hierarchy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/avaolo/agknow/internal/domain"
	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
)

// DefaultMaxPerTier bounds the items returned per tier.
const DefaultMaxPerTier = 5

// Query is a tiered information request.
type Query struct {
	Text       string
	Context    domhier.Context
	Tiers      []domhier.Tier // empty means all tiers
	MaxPerTier int
}

type registered struct {
	source   domhier.Source
	provider Provider
}

// Service queries registered sources tier by tier.
type Service struct {
	sources []registered
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a hierarchy service with an empty source registry.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger, now: time.Now}
}

// Register binds a provider to a source descriptor. Order of registration
// is the order sources are consulted within a tier.
func (s *Service) Register(src domhier.Source, p Provider) {
	s.sources = append(s.sources, registered{source: src, provider: p})
	s.logger.Info("Registered information source",
		zap.String("source", src.Name()),
		zap.Bool("farmer", src.Capabilities().Farmer),
		zap.Bool("country", src.Capabilities().Country),
		zap.Bool("global", src.Capabilities().Global),
	)
}

// Sources returns the capability map of all registered sources.
func (s *Service) Sources() map[string]domhier.Capabilities {
	out := make(map[string]domhier.Capabilities, len(s.sources))
	for _, r := range s.sources {
		out[r.source.Name()] = r.source.Capabilities()
	}
	return out
}

// Query consults every authorized source per requested tier and assembles
// a tiered result with audit metadata. Farmer-tier sources are skipped
// when the context carries no farmer ID.
func (s *Service) Query(ctx context.Context, q Query) (domhier.Result, error) {
	if q.Text == "" {
		return domhier.Result{}, fmt.Errorf("query text is required")
	}

	qctx := q.Context.Normalize()

	tiers := q.Tiers
	if len(tiers) == 0 {
		tiers = domhier.AllTiers()
	}
	maxPerTier := q.MaxPerTier
	if maxPerTier <= 0 {
		maxPerTier = DefaultMaxPerTier
	}

	result := domhier.Result{
		Timestamp:   s.now().UTC(),
		ContextHash: qctx.Hash(),
		Tiers:       make(map[domhier.Tier][]domhier.Item, len(tiers)),
	}
	used := make(map[string]bool)

	for _, tier := range tiers {
		if !tier.IsValid() {
			return domhier.Result{}, fmt.Errorf("invalid tier: %d", tier)
		}
		items := s.queryTier(ctx, q.Text, tier, qctx, maxPerTier, used)
		if len(items) > maxPerTier {
			items = items[:maxPerTier]
		}
		result.Tiers[tier] = items
	}

	for name := range used {
		result.SourcesUsed = append(result.SourcesUsed, name)
	}
	sort.Strings(result.SourcesUsed)

	s.logger.Info("Information query completed",
		zap.String("context_hash", result.ContextHash),
		zap.Int("farmer_items", len(result.Tiers[domhier.TierFarmer])),
		zap.Int("country_items", len(result.Tiers[domhier.TierCountry])),
		zap.Int("global_items", len(result.Tiers[domhier.TierGlobal])),
	)

	return result, nil
}

func (s *Service) queryTier(
	ctx context.Context, text string, tier domhier.Tier,
	qctx domhier.Context, limit int, used map[string]bool,
) []domhier.Item {
	var items []domhier.Item

	for _, r := range s.sources {
		if !r.source.Allows(tier) {
			continue
		}
		if tier == domhier.TierFarmer && qctx.FarmerID == "" {
			continue
		}
		if tier == domhier.TierCountry && qctx.CountryCode == "" {
			continue
		}

		fetched, err := r.provider.Fetch(ctx, text, tier, qctx, limit)
		if err != nil {
			s.logger.Warn("Source query failed",
				zap.String("source", r.source.Name()),
				zap.String("tier", tier.String()),
				zap.Error(err),
			)
			continue
		}

		for i := range fetched {
			if err := s.validatePrivacy(&fetched[i], r.source); err != nil {
				continue
			}
			items = append(items, fetched[i])
			used[r.source.Name()] = true
		}
	}

	return items
}

// validatePrivacy rejects items served from a source not authorized for
// the item's tier.
func (s *Service) validatePrivacy(item *domhier.Item, src domhier.Source) error {
	if src.Allows(item.Tier()) {
		return nil
	}
	s.logger.Error("Privacy violation: source attempted to provide unauthorized tier data",
		zap.String("source", src.Name()),
		zap.String("tier", item.Tier().String()),
	)
	return fmt.Errorf("%w: %s cannot serve %s data",
		domain.ErrPrivacyViolation, src.Name(), item.Tier())
}
