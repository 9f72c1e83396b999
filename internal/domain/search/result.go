package search

import "github.com/avaolo/agknow/internal/domain/knowledge"

// Hit is a single search hit.
type Hit struct {
	document knowledge.Document
	score    float64
}

// NewHit creates a search hit.
func NewHit(doc knowledge.Document, score float64) Hit {
	return Hit{document: doc, score: score}
}

// Document returns the matched document.
func (h Hit) Document() knowledge.Document { return h.document }

// Score returns the relevance score.
func (h Hit) Score() float64 { return h.score }

// WithScore returns a copy with the score replaced.
func (h Hit) WithScore(score float64) Hit {
	h.score = score
	return h
}
