package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrInvalidPattern is returned when a glob pattern cannot be parsed
var ErrInvalidPattern = errors.New("invalid pattern")

// Store defines the interface for a Redis-like key-value store
type Store interface {
	// String operations
	Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error
	// SetKeepTTL overwrites the value and leaves any existing expiration untouched
	SetKeepTTL(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)

	// Key operations
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Scan returns a batch of keys matching pattern and the cursor to continue
	// from. Iteration starts at cursor 0 and is complete when 0 is returned
	// again. count is a hint, batches may be smaller or larger. Keys may be
	// returned more than once if the keyspace changes during iteration.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)

	// Multi operations
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	MSet(ctx context.Context, kv map[string][]byte, ttl ...time.Duration) error

	// Health check
	Ping(ctx context.Context) error
	// Stats returns backend counters as flat field/value pairs, shaped like
	// the stats section of Redis INFO
	Stats(ctx context.Context) (map[string]string, error)

	// Cleanup
	Close() error
}
