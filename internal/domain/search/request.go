package search

import (
	"fmt"

	"github.com/avaolo/agknow/internal/domain/knowledge"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 5
	MaxTopK        = 100
)

// Request is a validated search query.
type Request struct {
	query    string
	mode     Mode
	filter   knowledge.Filter
	topK     int
	minScore float64
}

// New validates and normalizes search parameters.
// Defaults: mode=hybrid, topK=5. The filter is normalized to stored form.
func New(query string, m Mode, f knowledge.Filter, topK int, minScore float64) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("query is required")
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if m == "" {
		m = Hybrid
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode: %q", m)
	}
	if err := f.Validate(); err != nil {
		return Request{}, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if minScore < 0 || minScore > 1 {
		return Request{}, fmt.Errorf("min_score must be between 0 and 1")
	}

	return Request{
		query:    query,
		mode:     m,
		filter:   f.Normalize(),
		topK:     topK,
		minScore: minScore,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Mode returns the search strategy.
func (r *Request) Mode() Mode { return r.mode }

// Filter returns the normalized metadata pre-filter.
func (r *Request) Filter() knowledge.Filter { return r.filter }

// TopK returns the number of results to retrieve.
func (r *Request) TopK() int { return r.topK }

// MinScore returns the minimum similarity threshold.
func (r *Request) MinScore() float64 { return r.minScore }
