package budget

import (
	"context"
	"testing"
	"time"

	"github.com/avaolo/agknow/internal/db"
)

type mockKV struct {
	getInt64Fn func(ctx context.Context, key string) (int64, error)
	incrByFn   func(ctx context.Context, key string, val int64) error
	expireFn   func(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

func (m *mockKV) GetInt64(ctx context.Context, key string) (int64, error) {
	if m.getInt64Fn != nil {
		return m.getInt64Fn(ctx, key)
	}
	return 0, db.ErrKeyNotFound
}

func (m *mockKV) IncrBy(ctx context.Context, key string, val int64) error {
	if m.incrByFn != nil {
		return m.incrByFn(ctx, key, val)
	}
	return nil
}

func (m *mockKV) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireFn != nil {
		return m.expireFn(ctx, key, ttl, nx)
	}
	return nil
}

func TestIncrBy_SetsNXTTL(t *testing.T) {
	var gotTTL time.Duration
	var gotNX bool

	s := New(&mockKV{
		expireFn: func(_ context.Context, _ string, ttl time.Duration, nx bool) error {
			gotTTL = ttl
			gotNX = nx
			return nil
		},
	}, 48*time.Hour, 62*24*time.Hour)

	if err := s.IncrBy(context.Background(), "agknow:budget:openai:daily:2026-08-30", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != 48*time.Hour {
		t.Errorf("ttl = %v, want 48h for daily key", gotTTL)
	}
	if !gotNX {
		t.Error("expected EXPIRE NX so an existing TTL is not reset")
	}
}

func TestIncrBy_MonthlyTTL(t *testing.T) {
	var gotTTL time.Duration

	s := New(&mockKV{
		expireFn: func(_ context.Context, _ string, ttl time.Duration, _ bool) error {
			gotTTL = ttl
			return nil
		},
	}, 48*time.Hour, 62*24*time.Hour)

	if err := s.IncrBy(context.Background(), "agknow:budget:openai:monthly:2026-08", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != 62*24*time.Hour {
		t.Errorf("ttl = %v, want 62 days for monthly key", gotTTL)
	}
}

func TestGet_MissingKeyIsZero(t *testing.T) {
	s := New(&mockKV{}, time.Hour, time.Hour)

	val, err := s.Get(context.Background(), "agknow:budget:openai:daily:2026-08-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 0 {
		t.Errorf("val = %d, want 0", val)
	}
}

func TestGet_ReturnsCounter(t *testing.T) {
	s := New(&mockKV{
		getInt64Fn: func(_ context.Context, _ string) (int64, error) { return 12345, nil },
	}, time.Hour, time.Hour)

	val, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 12345 {
		t.Errorf("val = %d, want 12345", val)
	}
}
