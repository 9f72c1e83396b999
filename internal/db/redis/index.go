package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/avaolo/agknow/internal/db"
)

// CreateIndex issues FT.CREATE for the given definition. An existing
// index with the same name maps to db.ErrIndexExists so callers can
// treat startup bootstrap as idempotent.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := createArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists asks via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

func createArgs(idx *db.IndexDefinition) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", "HASH"}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		f := &idx.Fields[i]

		args = append(args, f.Name)
		if f.Alias != "" {
			args = append(args, "AS", f.Alias)
		}

		switch f.Type {
		case db.IndexFieldNumeric:
			args = append(args, "NUMERIC")
		case db.IndexFieldText:
			args = append(args, "TEXT")
		case db.IndexFieldTag:
			args = append(args, "TAG")
			if f.TagSeparator != "" {
				args = append(args, "SEPARATOR", f.TagSeparator)
			}
		case db.IndexFieldVector:
			vargs, err := vectorArgs(f)
			if err != nil {
				return nil, err
			}
			args = append(args, vargs...)
		default:
			return nil, errors.New("unknown field type")
		}
	}

	return args, nil
}

func vectorArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	algo := f.VectorAlgo
	if algo == "" {
		algo = db.VectorFlat
	}
	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if algo == db.VectorHNSW {
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
	}

	out := append([]string{"VECTOR", string(algo), strconv.Itoa(len(attrs))}, attrs...)
	return out, nil
}
