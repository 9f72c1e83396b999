// Package budget persists embedding token counters so budget windows
// survive restarts.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avaolo/agknow/internal/db"
)

// store is the consumer interface for budget counter persistence.
type store interface {
	GetInt64(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store reads and increments counter keys with windowed TTLs. Daily
// keys expire after dailyTTL (48h leaves the previous day readable),
// monthly keys after monthTTL (62 days covers any month boundary).
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget counter store.
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{store: s, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// IncrBy adds val to the counter and arms its TTL. The expiry is set
// with NX so repeated increments never extend the window.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.store.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}

	ttl := s.monthTTL
	if strings.Contains(key, ":daily:") {
		ttl = s.dailyTTL
	}
	if err := s.store.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}

	return nil
}

// Get returns the counter value, or 0 for an absent or expired key.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.store.GetInt64(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}
	return val, nil
}
