package hierarchy

import (
	"context"
	"testing"

	"go.uber.org/zap"

	domhier "github.com/avaolo/agknow/internal/domain/hierarchy"
	domsearch "github.com/avaolo/agknow/internal/domain/search"
)

type mockProvider struct {
	fetchFn func(ctx context.Context, query string, tier domhier.Tier, qctx domhier.Context, limit int) ([]domhier.Item, error)
	calls   int
}

func (m *mockProvider) Fetch(
	ctx context.Context, query string, tier domhier.Tier,
	qctx domhier.Context, limit int,
) ([]domhier.Item, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, query, tier, qctx, limit)
	}
	return nil, nil
}

type mockSearcher struct {
	searchFn func(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error)
}

func (m *mockSearcher) Search(ctx context.Context, req *domsearch.Request) ([]domsearch.Hit, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	return nil, nil
}

func mustSource(t *testing.T, name string, caps domhier.Capabilities) domhier.Source {
	t.Helper()
	src, err := domhier.NewSource(name, caps)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	return src
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(zap.NewNop())
}

func items(source string, tier domhier.Tier, contents ...string) []domhier.Item {
	out := make([]domhier.Item, 0, len(contents))
	for _, c := range contents {
		out = append(out, domhier.NewItem(source, tier, c, 0.5, nil))
	}
	return out
}
