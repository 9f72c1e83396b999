package db

// TagClause is an exact-match pre-filter on a TAG field.
type TagClause struct {
	Field string
	Value string
}

// RangeClause is a numeric pre-filter on a NUMERIC field.
// Nil boundaries mean -inf / +inf.
type RangeClause struct {
	Field string
	Min   *float64
	Max   *float64
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Tags         []TagClause
	Ranges       []RangeClause
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
type TextQuery struct {
	IndexName    string
	Query        string
	TextField    string
	TopK         int
	Tags         []TagClause
	Ranges       []RangeClause
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
