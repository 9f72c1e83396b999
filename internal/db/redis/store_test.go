package redis

import (
	"context"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/avaolo/agknow/internal/db"
)

// hasArgSeq reports whether want appears as a contiguous run in args.
func hasArgSeq(args, want []string) bool {
	for i := 0; i+len(want) <= len(args); i++ {
		match := true
		for j := range want {
			if args[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("agknow:doc:1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.1"),
				mock.RedisString("text"),
				mock.RedisString("karenca za prosaro"),
			),
		)))

	s := NewStoreForTest(c)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx",
		Vector:    []float32{0.1, 0.2},
		K:         10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("result = %+v, want one entry", result)
	}
	if result.Entries[0].Key != "agknow:doc:1" {
		t.Errorf("key = %s", result.Entries[0].Key)
	}
	// cosine distance 0.1 maps to similarity 0.9
	if result.Entries[0].Score < 0.89 || result.Entries[0].Score > 0.91 {
		t.Errorf("score = %f, want ~0.9", result.Entries[0].Score)
	}
}

func TestSearchKNN_LimitMatchesK(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	// RediSearch caps the reply at 10 rows unless LIMIT is explicit,
	// so the command must carry LIMIT 0 K.
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && hasArgSeq(cmd, []string{"LIMIT", "0", "25"})
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx",
		Vector:    []float32{0.1},
		K:         25,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := NewStoreForTest(nil) // client not called

	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{Vector: []float32{1}, K: 1}); err == nil {
		t.Error("expected error for missing index name")
	}
	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", K: 1}); err == nil {
		t.Error("expected error for missing vector")
	}
	if _, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}}); err == nil {
		t.Error("expected error for non-positive k")
	}
}

func TestSearchBM25_LimitMatchesTopK(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && hasArgSeq(cmd, []string{"LIMIT", "0", "7"})
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	if _, err := s.SearchBM25(context.Background(), &db.TextQuery{
		IndexName: "idx",
		Query:     "karenca",
		TopK:      7,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
