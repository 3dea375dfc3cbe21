package resave

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor is an opaque scan position. Zero is both where a full cycle starts
// and how the store signals that the cycle is complete.
type Cursor uint64

// RewritePolicy decides what happens to a key's expiration when its value
// is written back
type RewritePolicy struct {
	ttl time.Duration
}

// PreserveTTL rewrites values and leaves existing expirations untouched
func PreserveTTL() RewritePolicy {
	return RewritePolicy{}
}

// FixedTTL rewrites values and expires them seconds from the write
func FixedTTL(seconds int64) RewritePolicy {
	return RewritePolicy{ttl: time.Duration(seconds) * time.Second}
}

// PreservesTTL reports whether existing expirations are kept
func (p RewritePolicy) PreservesTTL() bool {
	return p.ttl <= 0
}

// TTL returns the fixed expiration, zero when expirations are preserved
func (p RewritePolicy) TTL() time.Duration {
	if p.PreservesTTL() {
		return 0
	}
	return p.ttl
}

func (p RewritePolicy) String() string {
	if p.PreservesTTL() {
		return "keepttl"
	}
	return fmt.Sprintf("ttl=%ds", int64(p.ttl/time.Second))
}

// ParseTTL builds a policy from a command-line TTL in seconds. An empty
// value preserves existing expirations.
func ParseTTL(raw string) (RewritePolicy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PreserveTTL(), nil
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return RewritePolicy{}, ErrInvalidInput.New("ttl %q is not a whole number of seconds", raw)
	}
	if seconds <= 0 {
		return RewritePolicy{}, ErrInvalidInput.New("ttl must be positive, got %d", seconds)
	}
	if seconds > int64(maxTTL/time.Second) {
		return RewritePolicy{}, ErrInvalidInput.New("ttl %d is out of range", seconds)
	}
	return FixedTTL(seconds), nil
}

// maxTTL keeps seconds*time.Second from overflowing
const maxTTL = time.Duration(1<<63 - 1)
