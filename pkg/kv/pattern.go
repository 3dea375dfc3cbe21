package kv

import "fmt"

// MatchPattern reports whether key matches a Redis-style glob pattern.
//
// Supported syntax follows the MATCH option of SCAN and KEYS:
//   - "*" matches any sequence of bytes, including the empty one
//   - "?" matches exactly one byte
//   - "[abc]", "[a-z]" and "[^a-z]" match one byte from (or not from) a class
//   - "\x" matches x literally
//
// Matching is byte-wise, the same way Redis compares keys.
func MatchPattern(pattern, key string) bool {
	var px, kx int
	starPx, starKx := -1, -1

	for px < len(pattern) || kx < len(key) {
		if px < len(pattern) {
			switch c := pattern[px]; c {
			case '*':
				starPx, starKx = px, kx+1
				px++
				continue
			case '?':
				if kx < len(key) {
					px++
					kx++
					continue
				}
			case '[':
				if kx < len(key) {
					end := classEnd(pattern, px+1)
					if end < 0 {
						if key[kx] == '[' {
							px++
							kx++
							continue
						}
					} else if matchClass(pattern[px+1:end], key[kx]) {
						px = end + 1
						kx++
						continue
					}
				}
			case '\\':
				if kx < len(key) {
					lit := byte('\\')
					step := 1
					if px+1 < len(pattern) {
						lit = pattern[px+1]
						step = 2
					}
					if key[kx] == lit {
						px += step
						kx++
						continue
					}
				}
			default:
				if kx < len(key) && key[kx] == c {
					px++
					kx++
					continue
				}
			}
		}
		// Mismatch: let the last star absorb one more byte.
		if starKx > 0 && starKx <= len(key) {
			px, kx = starPx, starKx
			continue
		}
		return false
	}
	return true
}

// ValidatePattern rejects patterns with an unterminated character class or
// a dangling escape. Redis itself is lenient about both; rejecting them up
// front avoids a scan that silently matches nothing.
func ValidatePattern(pattern string) error {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			if i+1 >= len(pattern) {
				return fmt.Errorf("%w: trailing escape in %q", ErrInvalidPattern, pattern)
			}
			i++
		case '[':
			end := classEnd(pattern, i+1)
			if end < 0 {
				return fmt.Errorf("%w: unterminated character class in %q", ErrInvalidPattern, pattern)
			}
			i = end
		}
	}
	return nil
}

// classEnd returns the index of the ']' closing a class whose body starts at
// start, or -1 when the class is not terminated.
func classEnd(pattern string, start int) int {
	for j := start; j < len(pattern); j++ {
		switch pattern[j] {
		case '\\':
			j++
		case ']':
			return j
		}
	}
	return -1
}

func matchClass(body string, c byte) bool {
	negate := false
	if len(body) > 0 && body[0] == '^' {
		negate = true
		body = body[1:]
	}

	matched := false
	for i := 0; i < len(body) && !matched; i++ {
		switch {
		case body[i] == '\\' && i+1 < len(body):
			i++
			matched = body[i] == c
		case i+2 < len(body) && body[i+1] == '-':
			lo, hi := body[i], body[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			matched = c >= lo && c <= hi
			i += 2
		default:
			matched = body[i] == c
		}
	}

	if negate {
		return !matched
	}
	return matched
}
