package knowledge

import (
	"context"
	"testing"

	"github.com/avaolo/agknow/internal/db"
	domknow "github.com/avaolo/agknow/internal/domain/knowledge"
)

func TestSearchKNN_BuildsClauses(t *testing.T) {
	var gotQuery *db.KNNQuery
	repo := New(&mockStore{
		searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
			gotQuery = q
			return &db.SearchResult{}, nil
		},
	})

	maxPHI := 7.0
	f := domknow.Filter{
		Type:       domknow.TypePesticide,
		Crop:       "rajčica",
		Chemical:   "mankozeb",
		MaxPHIDays: &maxPHI,
	}

	_, err := repo.SearchKNN(context.Background(), []float32{0.1, 0.2}, f, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery.K != 3 {
		t.Errorf("K = %d", gotQuery.K)
	}
	if len(gotQuery.Tags) != 3 {
		t.Errorf("tags = %d, want 3", len(gotQuery.Tags))
	}
	if len(gotQuery.Ranges) != 1 || gotQuery.Ranges[0].Field != fieldPHIDays {
		t.Errorf("ranges = %+v", gotQuery.Ranges)
	}
	if gotQuery.IndexName != IndexName {
		t.Errorf("index = %q", gotQuery.IndexName)
	}
}

func TestSearchKNN_ParsesHits(t *testing.T) {
	repo := New(&mockStore{
		searchKNNFn: func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
			return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{
				Key:   "agknow:doc:fis_123",
				Score: 0.87,
				Fields: map[string]string{
					fieldText:     "karenca 14 dana",
					fieldDocType:  "pesticide",
					fieldChemical: "mankozeb",
					fieldPHIDays:  "14",
				},
			}}}, nil
		},
	})

	hits, err := repo.SearchKNN(context.Background(), []float32{0.1}, domknow.Filter{}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	doc := hits[0].Document()
	if doc.ID() != "fis_123" {
		t.Errorf("ID() = %q", doc.ID())
	}
	if hits[0].Score() != 0.87 {
		t.Errorf("Score() = %v", hits[0].Score())
	}
	if doc.PHIDays() == nil || *doc.PHIDays() != 14 {
		t.Errorf("PHIDays() = %v", doc.PHIDays())
	}
}

func TestSearchBM25_PassesTextField(t *testing.T) {
	var gotQuery *db.TextQuery
	repo := New(&mockStore{
		searchBM25Fn: func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
			gotQuery = q
			return &db.SearchResult{}, nil
		},
	})

	_, err := repo.SearchBM25(context.Background(), "plamenjača krumpir", domknow.Filter{Language: "hr"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery.TextField != fieldText {
		t.Errorf("TextField = %q", gotQuery.TextField)
	}
	if gotQuery.Query != "plamenjača krumpir" {
		t.Errorf("Query = %q", gotQuery.Query)
	}
	if len(gotQuery.Tags) != 1 || gotQuery.Tags[0].Field != fieldLanguage {
		t.Errorf("Tags = %+v", gotQuery.Tags)
	}
}
