// Package search holds the search request and result value objects.
package search

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Hybrid combines semantic and keyword search via rank fusion.
	Hybrid   Mode = "hybrid"
	Semantic Mode = "semantic"
	Keyword  Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic || m == Keyword
}
