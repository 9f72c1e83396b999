// Package pesticide answers pre-harvest interval (karenca) questions,
// e.g. "how long is the withholding period for Prosaro on wheat".
package pesticide

import (
	"context"
	"fmt"
	"strings"

	"github.com/avaolo/agknow/internal/domain/knowledge"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
)

// lookupTopK bounds the candidate documents examined for PHI data.
const lookupTopK = 3

// Searcher runs knowledge base queries.
type Searcher interface {
	Search(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error)
}

// PHIInfo is the extracted pre-harvest interval answer.
type PHIInfo struct {
	Chemical       string
	Crop           string
	PHIDays        int
	Source         string
	AdditionalInfo string
}

// Result is the outcome of a pesticide lookup. A missing answer is a
// normal result with Found=false, not an error.
type Result struct {
	Found     bool
	Message   string
	Info      *PHIInfo
	Documents []domsearch.Hit
}

// Service handles specialized pesticide lookups.
type Service struct {
	search Searcher
}

// New creates a pesticide lookup service.
func New(search Searcher) *Service {
	return &Service{search: search}
}

// Lookup searches pesticide documents for the chemical (optionally on a crop)
// and extracts PHI data from the first hit that carries it.
func (s *Service) Lookup(ctx context.Context, chemical, crop string) (Result, error) {
	if strings.TrimSpace(chemical) == "" {
		return Result{}, fmt.Errorf("chemical is required")
	}

	query := chemical
	if crop != "" {
		query += " " + crop
	}

	f := knowledge.Filter{
		Type:     knowledge.TypePesticide,
		Chemical: chemical,
		Crop:     crop,
	}

	req, err := domsearch.New(query, domsearch.Hybrid, f, lookupTopK, 0)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}

	hits, err := s.search.Search(ctx, &req)
	if err != nil {
		return Result{}, fmt.Errorf("pesticide search: %w", err)
	}

	for i := range hits {
		doc := hits[i].Document()
		phi := doc.PHIDays()
		if phi == nil {
			continue
		}
		answerCrop := crop
		if answerCrop == "" {
			answerCrop = doc.Crop()
		}
		return Result{
			Found: true,
			Info: &PHIInfo{
				Chemical:       chemical,
				Crop:           answerCrop,
				PHIDays:        *phi,
				Source:         doc.Source(),
				AdditionalInfo: doc.Text(),
			},
			Documents: hits,
		}, nil
	}

	return Result{
		Found:     false,
		Message:   fmt.Sprintf("No PHI information found for %s", chemical),
		Documents: hits,
	}, nil
}
