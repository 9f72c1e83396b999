package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/avaolo/agknow/internal/db"
)

// Get retrieves a value; missing keys map to db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.do(ctx, s.b().Set().Key(key).Value(string(value)).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(string(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// GetInt64 reads an integer counter; missing keys map to db.ErrKeyNotFound.
func (s *Store) GetInt64(ctx context.Context, key string) (int64, error) {
	n, err := s.do(ctx, s.b().Get().Key(key).Build()).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, db.ErrKeyNotFound
		}
		return 0, &db.Error{Op: db.OpGet, Err: err}
	}
	return n, nil
}

// IncrBy atomically adds val to a counter key.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.do(ctx, s.b().Incrby().Key(key).Increment(val).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return nil
}

// Expire sets TTL on a key. With nx, only keys without an expiry get
// one, which keeps rolling budget windows from being extended on every
// write.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	var cmd rueidis.Completed
	if nx {
		cmd = s.b().Expire().Key(key).Seconds(int64(ttl.Seconds())).Nx().Build()
	} else {
		cmd = s.b().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}
