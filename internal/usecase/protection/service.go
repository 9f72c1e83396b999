// Package protection recommends crop protection measures grouped by
// protection type (fungicides, insecticides, herbicides, general).
package protection

import (
	"context"
	"fmt"
	"strings"

	"github.com/avaolo/agknow/internal/domain/knowledge"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
)

// recommendTopK bounds the documents considered per recommendation.
const recommendTopK = 5

// Searcher runs knowledge base queries.
type Searcher interface {
	Search(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error)
}

// Measure is a single recommended protection measure.
type Measure struct {
	Chemical string
	Target   string
	Dosage   string
	Timing   string
	Text     string
}

// Recommendation groups measures by protection type.
type Recommendation struct {
	Fungicides   []Measure
	Insecticides []Measure
	Herbicides   []Measure
	General      []Measure
}

// Service handles crop protection recommendations.
type Service struct {
	search Searcher
}

// New creates a protection recommendation service.
func New(search Searcher) *Service {
	return &Service{search: search}
}

// Recommend searches crop protection documents for the crop (optionally
// narrowed by a problem description) and groups hits by protection type.
// Documents without a recognized protection type land in General.
func (s *Service) Recommend(ctx context.Context, crop, problem string) (Recommendation, error) {
	if strings.TrimSpace(crop) == "" {
		return Recommendation{}, fmt.Errorf("crop is required")
	}

	query := crop + " protection"
	if problem != "" {
		query += " " + problem
	}

	f := knowledge.Filter{
		Type: knowledge.TypeCropProtection,
		Crop: crop,
	}

	req, err := domsearch.New(query, domsearch.Hybrid, f, recommendTopK, 0)
	if err != nil {
		return Recommendation{}, fmt.Errorf("build request: %w", err)
	}

	hits, err := s.search.Search(ctx, &req)
	if err != nil {
		return Recommendation{}, fmt.Errorf("protection search: %w", err)
	}

	var rec Recommendation
	for i := range hits {
		doc := hits[i].Document()
		m := Measure{
			Chemical: doc.Chemical(),
			Target:   doc.TargetPest(),
			Dosage:   doc.Dosage(),
			Timing:   doc.ApplicationTiming(),
			Text:     doc.Text(),
		}
		switch doc.ProtectionType() {
		case knowledge.ProtectionFungicide:
			rec.Fungicides = append(rec.Fungicides, m)
		case knowledge.ProtectionInsecticide:
			rec.Insecticides = append(rec.Insecticides, m)
		case knowledge.ProtectionHerbicide:
			rec.Herbicides = append(rec.Herbicides, m)
		default:
			rec.General = append(rec.General, m)
		}
	}

	return rec, nil
}
