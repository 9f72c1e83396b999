package document

import (
	"context"
	"errors"
	"testing"

	"github.com/avaolo/agknow/internal/domain"
	"github.com/avaolo/agknow/internal/domain/knowledge"
)

type mockRepo struct {
	upsertFn      func(ctx context.Context, doc *knowledge.Document) (bool, error)
	upsertMultiFn func(ctx context.Context, docs []knowledge.Document) error
	getFn         func(ctx context.Context, id string) (knowledge.Document, error)
	deleteFn      func(ctx context.Context, id string) error
	listFn        func(ctx context.Context, cursor string, limit int) ([]knowledge.Document, string, error)
	countFn       func(ctx context.Context) (int, error)
}

func (m *mockRepo) Upsert(ctx context.Context, doc *knowledge.Document) (bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, doc)
	}
	return true, nil
}

func (m *mockRepo) UpsertMulti(ctx context.Context, docs []knowledge.Document) error {
	if m.upsertMultiFn != nil {
		return m.upsertMultiFn(ctx, docs)
	}
	return nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (knowledge.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return knowledge.Document{}, domain.ErrDocumentNotFound
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockRepo) List(ctx context.Context, cursor string, limit int) ([]knowledge.Document, string, error) {
	if m.listFn != nil {
		return m.listFn(ctx, cursor, limit)
	}
	return nil, "", nil
}

func (m *mockRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	errFor map[string]error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if err, ok := m.errFor[text]; ok {
		return domain.EmbeddingResult{}, err
	}
	return m.result, nil
}

func testConfig() Config {
	return Config{DefaultLanguage: "hr", Dimensions: 2, MaxBatchSize: 10, Concurrency: 2}
}

func TestAdd_EmbedsAndStores(t *testing.T) {
	var stored *knowledge.Document
	repo := &mockRepo{
		upsertFn: func(_ context.Context, doc *knowledge.Document) (bool, error) {
			stored = doc
			return true, nil
		},
	}
	embed := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 4}}

	svc := New(repo, embed, testConfig())
	ctx, usage := domain.NewContextWithUsage(context.Background())

	doc, created, err := svc.Add(ctx, Input{
		Text:       "karenca za prosaro u pšenici",
		Attributes: knowledge.Attributes{Source: "fis", Type: knowledge.TypePesticide},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true")
	}
	if doc.Language() != "hr" {
		t.Errorf("Language() = %q, want default applied", doc.Language())
	}
	if doc.IndexedAt().IsZero() {
		t.Error("IndexedAt() not stamped")
	}
	if len(stored.Vector()) != 2 {
		t.Errorf("stored vector = %v", stored.Vector())
	}
	if usage.TotalTokens != 4 {
		t.Errorf("usage tokens = %d, want 4", usage.TotalTokens)
	}
}

func TestAdd_InvalidDocument(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{}, testConfig())

	_, _, err := svc.Add(context.Background(), Input{Text: ""})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("err = %v, want ErrInvalidDocument", err)
	}
}

func TestAdd_DimensionMismatch(t *testing.T) {
	embed := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	svc := New(&mockRepo{}, embed, testConfig())

	_, _, err := svc.Add(context.Background(), Input{Text: "text"})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("err = %v, want ErrVectorDimMismatch", err)
	}
}

func TestBulkIndex_PartialFailure(t *testing.T) {
	var storedCount int
	repo := &mockRepo{
		upsertMultiFn: func(_ context.Context, docs []knowledge.Document) error {
			storedCount = len(docs)
			return nil
		},
	}
	embed := &mockEmbedder{
		result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}},
		errFor: map[string]error{"bad chunk": errors.New("provider rejected")},
	}

	svc := New(repo, embed, testConfig())

	stats, results, err := svc.BulkIndex(context.Background(), []Input{
		{Text: "good chunk one"},
		{Text: "bad chunk"},
		{Text: "good chunk two"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 3 || stats.Succeeded != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Succeeded+stats.Failed != stats.Total {
		t.Error("stats do not add up")
	}
	if storedCount != 2 {
		t.Errorf("stored = %d, want 2", storedCount)
	}
	if results[1].Err == nil {
		t.Error("expected error recorded for failed item")
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("unexpected errors on good items")
	}
	if results[0].ID == "" {
		t.Error("expected derived ID on success")
	}
}

func TestBulkIndex_BatchTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBatchSize = 1
	svc := New(&mockRepo{}, &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}}, cfg)

	_, _, err := svc.BulkIndex(context.Background(), []Input{{Text: "a"}, {Text: "b"}})
	if !errors.Is(err, domain.ErrBatchTooLarge) {
		t.Errorf("err = %v, want ErrBatchTooLarge", err)
	}
}

func TestBulkIndex_StoreFailureMarksAll(t *testing.T) {
	repo := &mockRepo{
		upsertMultiFn: func(_ context.Context, _ []knowledge.Document) error {
			return errors.New("redis down")
		},
	}
	embed := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}}
	svc := New(repo, embed, testConfig())

	stats, results, err := svc.BulkIndex(context.Background(), []Input{{Text: "a"}, {Text: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 2 || stats.Succeeded != 0 {
		t.Errorf("stats = %+v", stats)
	}
	for _, r := range results {
		if r.Err == nil {
			t.Error("expected storage error on every item")
		}
	}
}

func TestBulkIndex_Empty(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{}, testConfig())

	stats, results, err := svc.BulkIndex(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 0 || results != nil {
		t.Errorf("stats = %+v, results = %v", stats, results)
	}
}
