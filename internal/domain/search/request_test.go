package search

import (
	"strings"
	"testing"

	"github.com/avaolo/agknow/internal/domain/knowledge"
)

func TestNew_Defaults(t *testing.T) {
	req, err := New("zaštita vinove loze", "", knowledge.Filter{}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Mode() != Hybrid {
		t.Errorf("Mode() = %q, want hybrid", req.Mode())
	}
	if req.TopK() != DefaultTopK {
		t.Errorf("TopK() = %d, want %d", req.TopK(), DefaultTopK)
	}
}

func TestNew_ClampsTopK(t *testing.T) {
	req, err := New("q", Semantic, knowledge.Filter{}, MaxTopK+50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.TopK() != MaxTopK {
		t.Errorf("TopK() = %d, want %d", req.TopK(), MaxTopK)
	}
}

func TestNew_NormalizesFilter(t *testing.T) {
	req, err := New("q", Keyword, knowledge.Filter{Crop: "Kukuruz"}, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Filter().Crop != "kukuruz" {
		t.Errorf("Filter().Crop = %q", req.Filter().Crop)
	}
}

func TestNew_Invalid(t *testing.T) {
	cases := []struct {
		name     string
		query    string
		mode     Mode
		filter   knowledge.Filter
		minScore float64
	}{
		{"empty query", "", Hybrid, knowledge.Filter{}, 0},
		{"query too long", strings.Repeat("q", MaxQueryLength+1), Hybrid, knowledge.Filter{}, 0},
		{"bad mode", "q", "telepathic", knowledge.Filter{}, 0},
		{"bad filter", "q", Hybrid, knowledge.Filter{Type: "novel"}, 0},
		{"min score too high", "q", Hybrid, knowledge.Filter{}, 1.5},
		{"min score negative", "q", Hybrid, knowledge.Filter{}, -0.1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.query, tc.mode, tc.filter, 5, tc.minScore); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
