package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/leafsii/kv-resave/pkg/kv"
	"github.com/redis/go-redis/v9"
)

// Store is a Redis-backed implementation of the kv.Store interface
type Store struct {
	client *redis.Client
}

// connectionErrors are fragments of error messages go-redis surfaces for
// broken or unreachable connections
var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"timeout",
	"connection closed",
	"EOF",
}

// IsConnectionError checks if an error is a connection-related error
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Don't treat redis.Nil as a connection error (it means "key not found")
	if errors.Is(err, redis.Nil) {
		return false
	}

	// Context cancellation by caller is not a backend fault
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Check for various network/connection errors
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Check for syscall connection errors
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	errStr := err.Error()
	for _, connErr := range connectionErrors {
		if strings.Contains(errStr, connErr) {
			return true
		}
	}

	return false
}

// wrapConnectionError wraps connection errors with ErrBackendUnavailable
func wrapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if IsConnectionError(err) {
		return fmt.Errorf("%w: %v", kv.ErrBackendUnavailable, err)
	}
	return err
}

// ParseOptions turns a redis:// URL or a bare host:port[/db] address into
// client options
func ParseOptions(redisURL string) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err == nil {
		return opt, nil
	}

	// Fallback for simple address format
	u, parseErr := url.Parse("redis://" + redisURL)
	if parseErr != nil || u.Host == "" {
		return nil, err // Return original error
	}

	db := 0
	if u.Path != "" && u.Path != "/" {
		if dbNum, dbErr := strconv.Atoi(u.Path[1:]); dbErr == nil {
			db = dbNum
		}
	}

	opt = &redis.Options{
		Addr: u.Host,
		DB:   db,
	}

	if u.User != nil {
		if password, hasPassword := u.User.Password(); hasPassword {
			opt.Password = password
		}
	}

	return opt, nil
}

// New creates a new Redis-backed store
func New(redisURL string) (*Store, error) {
	opt, err := ParseOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, wrapConnectionError(err)
	}

	return &Store{client: client}, nil
}

// NewFromClient wraps an existing go-redis client
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	var expiration time.Duration
	if len(ttl) > 0 {
		expiration = ttl[0]
	}
	return wrapConnectionError(s.client.Set(ctx, key, value, expiration).Err())
}

// SetKeepTTL issues SET key value KEEPTTL (Redis 6.0+)
func (s *Store) SetKeepTTL(ctx context.Context, key string, value []byte) error {
	return wrapConnectionError(s.client.SetArgs(ctx, key, value, redis.SetArgs{KeepTTL: true}).Err())
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, wrapConnectionError(err)
	}
	return result, nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Del(ctx, keys...).Result()
	return n, wrapConnectionError(err)
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Exists(ctx, keys...).Result()
	return n, wrapConnectionError(err)
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	return ok, wrapConnectionError(err)
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, wrapConnectionError(err)
	}

	// Redis returns -2 for non-existent keys; go-redis keeps the raw value
	// for negative replies
	if ttl == -2 || ttl == -2*time.Millisecond {
		return 0, kv.ErrNotFound
	}
	if ttl < 0 {
		return -1, nil
	}

	return ttl, nil
}

func (s *Store) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	if pattern == "" {
		pattern = "*"
	}
	keys, next, err := s.client.Scan(ctx, cursor, pattern, count).Result()
	if err != nil {
		return nil, cursor, wrapConnectionError(err)
	}
	return keys, next, nil
}

// Multi operations

func (s *Store) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	result, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapConnectionError(err)
	}

	values := make([][]byte, len(result))
	for i, value := range result {
		if str, ok := value.(string); ok {
			values[i] = []byte(str)
		}
		// nil values remain nil (representing missing keys)
	}

	return values, nil
}

func (s *Store) MSet(ctx context.Context, kv map[string][]byte, ttl ...time.Duration) error {
	// MSET has no TTL option, so expiring writes go through a pipeline
	if len(ttl) > 0 && ttl[0] > 0 {
		pipe := s.client.Pipeline()

		for key, value := range kv {
			pipe.Set(ctx, key, value, ttl[0])
		}

		_, err := pipe.Exec(ctx)
		return wrapConnectionError(err)
	}

	values := make([]interface{}, 0, len(kv)*2)
	for key, value := range kv {
		values = append(values, key, value)
	}

	return wrapConnectionError(s.client.MSet(ctx, values...).Err())
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return wrapConnectionError(s.client.Ping(ctx).Err())
}

// Stats returns the fields of INFO stats
func (s *Store) Stats(ctx context.Context) (map[string]string, error) {
	info, err := s.client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, wrapConnectionError(err)
	}
	return ParseInfo(info), nil
}

// ParseInfo turns INFO output into a field map. Section headers and blank
// lines are skipped.
func ParseInfo(info string) map[string]string {
	stats := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		stats[field] = value
	}
	return stats
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}
