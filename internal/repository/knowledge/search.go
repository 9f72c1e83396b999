package knowledge

import (
	"context"
	"fmt"

	"github.com/avaolo/agknow/internal/db"
	domknow "github.com/avaolo/agknow/internal/domain/knowledge"
	"github.com/avaolo/agknow/internal/domain/search"
)

// returnFields excludes the raw vector blob; hits carry metadata and text only.
var returnFields = []string{
	fieldText, fieldSource, fieldDocType, fieldLanguage, fieldCrop,
	fieldChemical, fieldPHIDays, fieldProtection, fieldTargetPest,
	fieldDosage, fieldTiming, fieldCountry, fieldRelevance, fieldIndexedAt,
}

// SearchKNN performs a vector similarity search with metadata pre-filtering.
func (r *Repo) SearchKNN(
	ctx context.Context, vector []float32, f domknow.Filter, topK int,
) ([]search.Hit, error) {
	tags, ranges := buildClauses(f)

	q := &db.KNNQuery{
		IndexName:    IndexName,
		Vector:       vector,
		K:            topK,
		Tags:         tags,
		Ranges:       ranges,
		ReturnFields: append(returnFields, fieldVectorScore),
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return parseHits(sr), nil
}

// SearchBM25 performs a keyword search over the text field.
func (r *Repo) SearchBM25(
	ctx context.Context, query string, f domknow.Filter, topK int,
) ([]search.Hit, error) {
	tags, ranges := buildClauses(f)

	q := &db.TextQuery{
		IndexName:    IndexName,
		Query:        query,
		TextField:    fieldText,
		TopK:         topK,
		Tags:         tags,
		Ranges:       ranges,
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchBM25(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}
	return parseHits(sr), nil
}

func parseHits(sr *db.SearchResult) []search.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	hits := make([]search.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		doc := parseHashFields(extractDocID(entry.Key), entry.Fields, false)
		hits = append(hits, search.NewHit(doc, entry.Score))
	}
	return hits
}

// buildClauses maps a domain filter onto FT index fields.
func buildClauses(f domknow.Filter) ([]db.TagClause, []db.RangeClause) {
	var tags []db.TagClause
	var ranges []db.RangeClause

	if f.Type != "" {
		tags = append(tags, db.TagClause{Field: fieldDocType, Value: string(f.Type)})
	}
	if f.Crop != "" {
		tags = append(tags, db.TagClause{Field: fieldCrop, Value: f.Crop})
	}
	if f.Chemical != "" {
		tags = append(tags, db.TagClause{Field: fieldChemical, Value: f.Chemical})
	}
	if f.Language != "" {
		tags = append(tags, db.TagClause{Field: fieldLanguage, Value: f.Language})
	}
	if f.CountryCode != "" {
		tags = append(tags, db.TagClause{Field: fieldCountry, Value: f.CountryCode})
	}
	if f.ProtectionType != "" {
		tags = append(tags, db.TagClause{Field: fieldProtection, Value: string(f.ProtectionType)})
	}
	if f.Relevance != "" {
		tags = append(tags, db.TagClause{Field: fieldRelevance, Value: string(f.Relevance)})
	}
	if f.MaxPHIDays != nil {
		ranges = append(ranges, db.RangeClause{Field: fieldPHIDays, Max: f.MaxPHIDays})
	}

	return tags, ranges
}
