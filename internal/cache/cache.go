// Package cache provides the shared key/value store with TTL used for
// memoized repository analyses, memoized model responses, and distributed
// counters (quota, rate limiting).
//
// The cache is always an optimization: callers treat read and write
// failures as "go to source" and log them; ErrCacheRead/ErrCacheWrite never
// propagate past the consulting component. Counter operations are the one
// exception - the quota guard depends on atomic increments and surfaces
// their failures.
package cache

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/overture-dev/overture/internal/config"
	"github.com/overture-dev/overture/internal/errors"
)

// Store defines the key/value operations the orchestrator needs.
// All access to shared counters goes through the atomic Increment/Decrement
// operations, never read-modify-write across separate calls.
type Store interface {
	// Get retrieves the value for key. The second return reports whether
	// the key existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Increment atomically increments the integer at key and returns the
	// new value. A missing key counts as zero.
	Increment(ctx context.Context, key string) (int64, error)

	// Decrement atomically decrements the integer at key and returns the
	// new value.
	Decrement(ctx context.Context, key string) (int64, error)

	// Expire sets a TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close releases the store's resources.
	Close() error
}

// RedisStore implements Store on a Redis connection pool.
type RedisStore struct {
	pool *redis.Pool
}

// NewRedisStore creates a RedisStore from connection settings.
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	pool := &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{redis.DialDatabase(cfg.DB)}
			if cfg.Password != "" {
				opts = append(opts, redis.DialPassword(cfg.Password))
			}
			return redis.Dial("tcp", cfg.Addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	return &RedisStore{pool: pool}
}

// NewRedisStoreWithPool creates a RedisStore from an existing pool.
// Intended for tests that point the pool at a miniredis server.
func NewRedisStoreWithPool(pool *redis.Pool) *RedisStore {
	return &RedisStore{pool: pool}
}

// Get retrieves the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCacheRead, err.Error())
	}
	defer func() { _ = conn.Close() }()

	data, err := redis.Bytes(conn.Do("GET", key))
	if err != nil {
		if stderrIs(err, redis.ErrNil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(errors.ErrCacheRead, err.Error())
	}
	return data, true, nil
}

// Set stores value under key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	defer func() { _ = conn.Close() }()

	seconds := int64(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if _, err := conn.Do("SET", key, value, "EX", seconds); err != nil {
		return errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Do("DEL", key); err != nil {
		return errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	return nil
}

// Increment atomically increments the integer at key.
func (s *RedisStore) Increment(ctx context.Context, key string) (int64, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	defer func() { _ = conn.Close() }()

	n, err := redis.Int64(conn.Do("INCR", key))
	if err != nil {
		return 0, errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	return n, nil
}

// Decrement atomically decrements the integer at key.
func (s *RedisStore) Decrement(ctx context.Context, key string) (int64, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	defer func() { _ = conn.Close() }()

	n, err := redis.Int64(conn.Do("DECR", key))
	if err != nil {
		return 0, errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	return n, nil
}

// Expire sets a TTL on an existing key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Do("EXPIRE", key, int64(ttl.Seconds())); err != nil {
		return errors.Wrap(errors.ErrCacheWrite, err.Error())
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.pool.Close()
}

// Compile-time check that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// stderrIs reports whether err matches target, tolerating redigo's
// non-wrapped sentinel errors.
func stderrIs(err, target error) bool {
	return err == target //nolint:errorlint // redis.ErrNil is never wrapped
}
