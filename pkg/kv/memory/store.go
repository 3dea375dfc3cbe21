package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/leafsii/kv-resave/pkg/kv"
)

// defaultScanCount mirrors the COUNT Redis uses when none is given
const defaultScanCount = 10

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu          sync.RWMutex
	strings     map[string][]byte
	expirations map[string]time.Time

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
}

// New creates a new in-memory store with optional janitor for TTL cleanup
func New(janitorInterval time.Duration) *Store {
	s := &Store{
		strings:         make(map[string][]byte),
		expirations:     make(map[string]time.Time),
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}

	return s
}

// janitor runs background expiration cleanup
func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

// evictExpired removes all expired keys
func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, expiry := range s.expirations {
		if now.After(expiry) {
			s.deleteKeyUnsafe(key)
		}
	}
}

// isExpired checks if a key has expired (must hold read lock)
func (s *Store) isExpired(key string) bool {
	if expiry, exists := s.expirations[key]; exists {
		return time.Now().After(expiry)
	}
	return false
}

// live reports whether key holds an unexpired value (must hold read lock)
func (s *Store) live(key string) bool {
	if s.isExpired(key) {
		return false
	}
	_, exists := s.strings[key]
	return exists
}

// setExpiration sets TTL for a key (must hold write lock)
func (s *Store) setExpiration(key string, ttl time.Duration) {
	if ttl > 0 {
		s.expirations[key] = time.Now().Add(ttl)
	} else {
		delete(s.expirations, key)
	}
}

// deleteKeyUnsafe removes a key and its expiration (must hold write lock)
func (s *Store) deleteKeyUnsafe(key string) {
	delete(s.strings, key)
	delete(s.expirations, key)
}

// String operations

// Set stores value under key. Like Redis SET, a write without a TTL clears
// any previous expiration.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteKeyUnsafe(key)
	s.strings[key] = value

	if len(ttl) > 0 && ttl[0] > 0 {
		s.setExpiration(key, ttl[0])
	}

	return nil
}

// SetKeepTTL stores value under key and keeps the remaining TTL of a live key
func (s *Store) SetKeepTTL(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isExpired(key) {
		s.deleteKeyUnsafe(key)
	}
	s.strings[key] = value

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.live(key) {
		return nil, kv.ErrNotFound
	}

	return s.strings[key], nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if s.live(key) {
			deleted++
		}
		s.deleteKeyUnsafe(key)
	}

	return deleted, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int64
	for _, key := range keys {
		if s.live(key) {
			exists++
		}
	}

	return exists, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live(key) {
		s.deleteKeyUnsafe(key)
		return false, nil
	}

	if ttl <= 0 {
		s.deleteKeyUnsafe(key)
		return true, nil
	}

	s.setExpiration(key, ttl)
	return true, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.live(key) {
		return 0, kv.ErrNotFound
	}

	expiry, hasExpiry := s.expirations[key]
	if !hasExpiry {
		return -1, nil // Key exists but has no expiration
	}

	remaining := time.Until(expiry)
	if remaining <= 0 {
		return 0, nil
	}

	return remaining, nil
}

// Scan walks the keyspace in lexical order. The cursor is the offset of the
// next key to examine, so keys inserted or removed mid-iteration may shift
// the window and be skipped or returned twice, as with Redis.
func (s *Store) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	if pattern == "" {
		pattern = "*"
	}
	if err := kv.ValidatePattern(pattern); err != nil {
		return nil, 0, err
	}
	if count <= 0 {
		count = defaultScanCount
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]string, 0, len(s.strings))
	for key := range s.strings {
		if !s.isExpired(key) {
			all = append(all, key)
		}
	}
	sort.Strings(all)

	if cursor >= uint64(len(all)) {
		return []string{}, 0, nil
	}

	end := cursor + uint64(count)
	next := end
	if end >= uint64(len(all)) {
		end = uint64(len(all))
		next = 0
	}

	keys := make([]string, 0, end-cursor)
	for _, key := range all[cursor:end] {
		if kv.MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}

	return keys, next, nil
}

// Multi operations

func (s *Store) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([][]byte, len(keys))
	for i, key := range keys {
		if s.live(key) {
			result[i] = s.strings[key]
		}
	}

	return result, nil
}

func (s *Store) MSet(ctx context.Context, kv map[string][]byte, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiration time.Duration
	if len(ttl) > 0 && ttl[0] > 0 {
		expiration = ttl[0]
	}

	for key, value := range kv {
		s.deleteKeyUnsafe(key)
		s.strings[key] = value

		if expiration > 0 {
			s.setExpiration(key, expiration)
		}
	}

	return nil
}

// Ping always returns nil for the in-memory store (always available)
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Stats reports the number of live keys and how many of them expire
func (s *Store) Stats(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys, expires int
	for key := range s.strings {
		if !s.live(key) {
			continue
		}
		keys++
		if _, ok := s.expirations[key]; ok {
			expires++
		}
	}

	return map[string]string{
		"keys":    strconv.Itoa(keys),
		"expires": strconv.Itoa(expires),
	}, nil
}

// Close stops the background janitor and cleans up resources
func (s *Store) Close() error {
	if s.janitorInterval > 0 {
		select {
		case <-s.janitorStop:
		default:
			close(s.janitorStop)
		}
		<-s.janitorDone
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.strings = make(map[string][]byte)
	s.expirations = make(map[string]time.Time)

	return nil
}
