// Package knowledge persists knowledge documents in Redis hashes and
// exposes FT.SEARCH queries over the single document index.
package knowledge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/avaolo/agknow/internal/db"
	"github.com/avaolo/agknow/internal/domain"
	domknow "github.com/avaolo/agknow/internal/domain/knowledge"
)

// store is the consumer interface for document persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// IndexParams are the vector index tuning knobs.
type IndexParams struct {
	Dimensions  int
	HNSWM       int
	EFConstruct int
}

// Repo implements document persistence and search over one FT index.
type Repo struct {
	store store
}

// New creates a knowledge repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the document index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, p IndexParams) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(IndexName).
		Prefix(keyPrefix).
		Text(fieldText).
		Tag(fieldSource).
		Tag(fieldDocType).
		Tag(fieldLanguage).
		Tag(fieldCrop).
		Tag(fieldChemical).
		Tag(fieldProtection).
		Tag(fieldCountry).
		Tag(fieldRelevance).
		Numeric(fieldPHIDays).
		Numeric(fieldIndexedAt).
		VectorHNSW(fieldVector, p.Dimensions, db.DistanceCosine, p.HNSWM, p.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && err != db.ErrIndexExists {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert creates or updates a document. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, doc *domknow.Document) (bool, error) {
	key := docKey(doc.ID())

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.HSet(ctx, key, buildHashFields(doc)); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, err)
	}
	return !exists, nil
}

// UpsertMulti stores multiple documents in one pipelined round-trip.
func (r *Repo) UpsertMulti(ctx context.Context, docs []domknow.Document) error {
	if len(docs) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(docs))
	for i := range docs {
		items[i] = db.HashSetItem{Key: docKey(docs[i].ID()), Fields: buildHashFields(&docs[i])}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset multi: %w", err)
	}
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domknow.Document, error) {
	key := docKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domknow.Document{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	// HGETALL returns an empty map for missing keys.
	if len(m) == 0 {
		return domknow.Document{}, domain.ErrDocumentNotFound
	}
	return parseHashFields(id, m, false), nil
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := docKey(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// List returns documents with cursor-based pagination via FT.SEARCH.
func (r *Repo) List(ctx context.Context, cursor string, limit int) ([]domknow.Document, string, error) {
	if limit <= 0 {
		limit = 20
	}

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, domain.ErrInvalidFilter)
		}
		offset = parsed
	}

	// One extra row decides whether a next page exists.
	result, err := r.store.SearchList(ctx, IndexName, "*", offset, limit+1, nil)
	if err != nil {
		return nil, "", fmt.Errorf("search list: %w", err)
	}
	if result == nil || len(result.Entries) == 0 {
		return nil, "", nil
	}

	docs := make([]domknow.Document, 0, limit)
	for i, entry := range result.Entries {
		if i >= limit {
			break
		}
		docs = append(docs, parseHashFields(extractDocID(entry.Key), entry.Fields, false))
	}

	var nextCursor string
	if len(result.Entries) > limit {
		nextCursor = strconv.Itoa(offset + limit)
	}
	return docs, nextCursor, nil
}

// Count returns the number of indexed documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName, "*")
	if err != nil {
		return 0, fmt.Errorf("search count: %w", err)
	}
	return n, nil
}
