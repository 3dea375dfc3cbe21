package resave

import (
	"context"
	"strings"
)

// KeyScanner runs one step of a cursor-based keyspace scan. pattern is
// matched store-side; returned keys carry the storage prefix.
type KeyScanner interface {
	Scan(ctx context.Context, pattern string, cursor uint64, limit int64) ([]string, uint64, error)
}

// ScanResult is one batch of matched keys and the cursor to continue from
type ScanResult struct {
	Keys   []string
	Cursor Cursor
}

// Done reports whether the scan cycle is complete
func (r ScanResult) Done() bool {
	return r.Cursor == 0
}

// Scanner iterates a keyspace in bounded batches.
//
// Following returned cursors from 0 until 0 comes back visits every key that
// matched for the whole cycle at least once. Keys can show up more than once
// when the keyspace changes mid-cycle; callers must treat rewrites as
// idempotent. Errors from the store are returned as-is and never retried.
type Scanner struct {
	store KeyScanner
}

// NewScanner creates a Scanner over store
func NewScanner(store KeyScanner) *Scanner {
	return &Scanner{store: store}
}

// Scan returns the batch at cursor. limit is a hint; the store may return
// more or fewer keys, including none on a non-final step.
func (s *Scanner) Scan(ctx context.Context, pattern string, cursor Cursor, limit int) (ScanResult, error) {
	keys, next, err := s.store.Scan(ctx, pattern, uint64(cursor), int64(limit))
	if err != nil {
		return ScanResult{Cursor: cursor}, err
	}
	return ScanResult{Keys: keys, Cursor: Cursor(next)}, nil
}

// StripPrefix returns the logical key for a storage key. Only an exact
// leading prefix is removed, so "kv:kv:x" becomes "kv:x".
func StripPrefix(key, prefix string) string {
	return strings.TrimPrefix(key, prefix)
}
