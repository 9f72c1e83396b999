package search

import (
	"math"
	"testing"

	domsearch "github.com/avaolo/agknow/internal/domain/search"
)

func TestFuseRRF_BothListsBoost(t *testing.T) {
	knn := []domsearch.Hit{hit(t, "a", 0.9), hit(t, "b", 0.8)}
	bm25 := []domsearch.Hit{hit(t, "b", 3.1), hit(t, "c", 2.0)}

	fused := fuseRRF(knn, bm25, 10)

	if len(fused) != 3 {
		t.Fatalf("fused = %d, want 3", len(fused))
	}
	// "b" appears in both rankings, so it must come first.
	if fused[0].Document().ID() != "b" {
		t.Errorf("fused[0] = %q, want b", fused[0].Document().ID())
	}

	wantB := 1.0/float64(rrfK+2) + 1.0/float64(rrfK+1)
	if math.Abs(fused[0].Score()-wantB) > 1e-9 {
		t.Errorf("score(b) = %v, want %v", fused[0].Score(), wantB)
	}
}

func TestFuseRRF_TruncatesAtTopK(t *testing.T) {
	knn := []domsearch.Hit{hit(t, "a", 1), hit(t, "b", 1), hit(t, "c", 1)}

	fused := fuseRRF(knn, nil, 2)
	if len(fused) != 2 {
		t.Errorf("fused = %d, want 2", len(fused))
	}
}

func TestFuseRRF_EmptyInputs(t *testing.T) {
	if got := fuseRRF(nil, nil, 5); len(got) != 0 {
		t.Errorf("fused = %d, want 0", len(got))
	}
}
