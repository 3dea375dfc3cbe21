package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/leafsii/kv-resave/pkg/kv"
	"go.uber.org/zap"
)

const (
	// DefaultKeyPrefix namespaces every logical key in the store
	DefaultKeyPrefix = "kv:"
	// DefaultScanChunkSize is the COUNT hint used for full keyspace walks
	DefaultScanChunkSize = 100
)

// Client is a namespaced view over a kv.Store. Logical keys passed to it are
// stored under a fixed prefix; Scan, Keys and AllKeys return keys with the
// prefix still attached.
type Client struct {
	store         kv.Store
	prefix        string
	scanChunkSize int64
	logger        *zap.SugaredLogger

	mu    sync.Mutex
	debug bool
	stats AccessStats
}

// Option configures a Client
type Option func(*Client)

// WithPrefix overrides the key namespace
func WithPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = prefix }
}

// WithScanChunkSize sets the COUNT hint for full keyspace walks
func WithScanChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.scanChunkSize = int64(n)
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithDebug enables access statistics from the start
func WithDebug(debug bool) Option {
	return func(c *Client) { c.debug = debug }
}

// NewClient wraps store
func NewClient(store kv.Store, opts ...Option) *Client {
	c := &Client{
		store:         store,
		prefix:        DefaultKeyPrefix,
		scanChunkSize: DefaultScanChunkSize,
		logger:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prefix returns the namespace prefix
func (c *Client) Prefix() string {
	return c.prefix
}

// Key returns the storage key for a logical key
func (c *Client) Key(key string) string {
	return c.prefix + key
}

// StripPrefix returns the logical key for a storage key. Only an exact
// leading prefix is removed.
func (c *Client) StripPrefix(key string) string {
	return strings.TrimPrefix(key, c.prefix)
}

// Get returns the decoded value for key, or nil when the key is absent.
// JSON objects and arrays decode into map[string]any and []any; anything
// else is returned as a string.
func (c *Client) Get(ctx context.Context, key string) (any, error) {
	c.recordAccess(accessRead, key)

	raw, err := c.store.Get(ctx, c.Key(key))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage get %q: %w", key, err)
	}
	return decodeValue(raw), nil
}

// GetMulti returns decoded values for the keys that exist, indexed by
// logical key
func (c *Client) GetMulti(ctx context.Context, keys ...string) (map[string]any, error) {
	if len(keys) == 0 {
		return map[string]any{}, nil
	}

	storageKeys := make([]string, len(keys))
	for i, key := range keys {
		c.recordAccess(accessRead, key)
		storageKeys[i] = c.Key(key)
	}

	values, err := c.store.MGet(ctx, storageKeys...)
	if err != nil {
		return nil, fmt.Errorf("storage mget: %w", err)
	}

	result := make(map[string]any, len(keys))
	for i, raw := range values {
		if raw == nil {
			continue
		}
		result[keys[i]] = decodeValue(raw)
	}
	return result, nil
}

// Set writes value under key. A zero ttl stores the value without expiry
// and clears any previous one.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.recordAccess(accessWrite, key)

	var err error
	if ttl > 0 {
		err = c.store.Set(ctx, c.Key(key), []byte(value), ttl)
	} else {
		err = c.store.Set(ctx, c.Key(key), []byte(value))
	}
	if err != nil {
		return fmt.Errorf("storage set %q: %w", key, err)
	}
	return nil
}

// SetKeepTTL writes value under key and keeps its remaining expiration
func (c *Client) SetKeepTTL(ctx context.Context, key, value string) error {
	c.recordAccess(accessWrite, key)

	if err := c.store.SetKeepTTL(ctx, c.Key(key), []byte(value)); err != nil {
		return fmt.Errorf("storage set keepttl %q: %w", key, err)
	}
	return nil
}

// SetMulti writes all items without expiry
func (c *Client) SetMulti(ctx context.Context, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}

	values := make(map[string][]byte, len(items))
	for key, value := range items {
		c.recordAccess(accessWrite, key)
		values[c.Key(key)] = []byte(value)
	}

	if err := c.store.MSet(ctx, values); err != nil {
		return fmt.Errorf("storage mset: %w", err)
	}
	return nil
}

// Delete removes key
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	c.recordAccess(accessDelete, key)

	n, err := c.store.Del(ctx, c.Key(key))
	if err != nil {
		return false, fmt.Errorf("storage delete %q: %w", key, err)
	}
	return n > 0, nil
}

// DeleteMulti removes keys
func (c *Client) DeleteMulti(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	storageKeys := make([]string, len(keys))
	for i, key := range keys {
		c.recordAccess(accessDelete, key)
		storageKeys[i] = c.Key(key)
	}

	n, err := c.store.Del(ctx, storageKeys...)
	if err != nil {
		return 0, fmt.Errorf("storage delete: %w", err)
	}
	return n, nil
}

// DeleteAll removes every key under the namespace prefix and returns how
// many were deleted. Keys are collected before deleting so the cursor walk
// is not disturbed by its own deletions.
func (c *Client) DeleteAll(ctx context.Context) (int64, error) {
	keys, err := c.AllKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage delete all: %w", err)
	}

	var deleted int64
	for start := 0; start < len(keys); start += int(c.scanChunkSize) {
		end := start + int(c.scanChunkSize)
		if end > len(keys) {
			end = len(keys)
		}
		n, err := c.store.Del(ctx, keys[start:end]...)
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("storage delete all: %w", err)
		}
	}

	c.logger.Infow("Deleted namespace", "prefix", c.prefix, "deleted", deleted)
	return deleted, nil
}

// Scan runs one cursor step over keys matching pattern inside the
// namespace. Returned keys keep the storage prefix.
func (c *Client) Scan(ctx context.Context, pattern string, cursor uint64, limit int64) ([]string, uint64, error) {
	if pattern == "" {
		pattern = "*"
	}
	keys, next, err := c.store.Scan(ctx, cursor, c.prefix+pattern, limit)
	if err != nil {
		return nil, cursor, fmt.Errorf("storage scan at cursor %d: %w", cursor, err)
	}
	return keys, next, nil
}

// Keys returns every storage key matching pattern inside the namespace.
// Keys seen more than once during the walk are returned once.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var result []string
	err := c.walk(ctx, pattern, func(keys []string) error {
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AllKeys returns every storage key in the namespace
func (c *Client) AllKeys(ctx context.Context) ([]string, error) {
	return c.Keys(ctx, "*")
}

// CountItems returns the number of keys in the namespace
func (c *Client) CountItems(ctx context.Context) (int, error) {
	keys, err := c.AllKeys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// walk iterates a full cursor cycle and hands every non-empty batch to fn
func (c *Client) walk(ctx context.Context, pattern string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := c.Scan(ctx, pattern, cursor, c.scanChunkSize)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks the underlying store
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Stats returns the backend's own counters
func (c *Client) Stats(ctx context.Context) (map[string]string, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage stats: %w", err)
	}
	return stats, nil
}

// Close closes the underlying store
func (c *Client) Close() error {
	return c.store.Close()
}

// decodeValue turns JSON documents into Go values and leaves everything
// else as text. Numbers decode as json.Number so they encode back to the
// exact digits that were stored.
func decodeValue(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()

		var v any
		if err := dec.Decode(&v); err == nil && !dec.More() {
			if _, err := dec.Token(); errors.Is(err, io.EOF) {
				return v
			}
		}
	}
	return string(raw)
}
