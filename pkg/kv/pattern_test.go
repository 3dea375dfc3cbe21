package kv

import (
	"errors"
	"testing"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "", true},
		{"*", "kv:anything", true},
		{"kv:*", "kv:product:1", true},
		{"kv:*", "other:product:1", false},
		{"kv:product:*", "kv:product:", true},
		{"kv:product:?", "kv:product:1", true},
		{"kv:product:?", "kv:product:12", false},
		{"kv:*:de_DE", "kv:product:42:de_DE", true},
		{"kv:*:de_DE", "kv:product:42:en_US", false},
		{"kv:[pc]*", "kv:product:1", true},
		{"kv:[pc]*", "kv:category:1", true},
		{"kv:[pc]*", "kv:navigation", false},
		{"kv:[^pc]*", "kv:navigation", true},
		{"kv:[^pc]*", "kv:product", false},
		{"kv:id:[0-9]", "kv:id:7", true},
		{"kv:id:[9-0]", "kv:id:7", true},
		{"kv:id:[0-9]", "kv:id:a", false},
		{`kv:\*`, "kv:*", true},
		{`kv:\*`, "kv:x", false},
		{`kv:[\]]`, "kv:]", true},
		{"kv:[abc", "kv:[abc", true},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxbyy", false},
		{"**", "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.key, func(t *testing.T) {
			if got := MatchPattern(tt.pattern, tt.key); got != tt.want {
				t.Fatalf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
			}
		})
	}
}

func TestValidatePattern(t *testing.T) {
	valid := []string{"*", "kv:*", "kv:[a-z]*", `kv:\[literal`, "kv:?"}
	for _, p := range valid {
		if err := ValidatePattern(p); err != nil {
			t.Fatalf("ValidatePattern(%q) returned %v", p, err)
		}
	}

	invalid := []string{"kv:[abc", `kv:\`, "[", `kv:[\]`}
	for _, p := range invalid {
		if err := ValidatePattern(p); !errors.Is(err, ErrInvalidPattern) {
			t.Fatalf("ValidatePattern(%q) = %v, want ErrInvalidPattern", p, err)
		}
	}
}
