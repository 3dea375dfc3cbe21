package resave

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leafsii/kv-resave/internal/storage"
	"github.com/leafsii/kv-resave/pkg/kv/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerFullCycleOverMemoryStore(t *testing.T) {
	ctx := context.Background()
	backend := memory.New(0)
	t.Cleanup(func() { backend.Close() })
	client := storage.NewClient(backend)

	for i := 0; i < 57; i++ {
		require.NoError(t, client.Set(ctx, fmt.Sprintf("user:%d", i), "v", 0))
	}
	require.NoError(t, client.Set(ctx, "order:1", "v", 0))

	scanner := NewScanner(client)
	seen := make(map[string]bool)
	cursor := Cursor(0)
	steps := 0
	for {
		res, err := scanner.Scan(ctx, "user:*", cursor, 10)
		require.NoError(t, err)
		steps++
		for _, key := range res.Keys {
			seen[StripPrefix(key, client.Prefix())] = true
		}
		cursor = res.Cursor
		if res.Done() {
			break
		}
		require.Less(t, steps, 100, "scan did not terminate")
	}

	assert.Len(t, seen, 57)
	assert.False(t, seen["order:1"])
}

type failingScanner struct{ err error }

func (f failingScanner) Scan(context.Context, string, uint64, int64) ([]string, uint64, error) {
	return nil, 0, f.err
}

func TestScannerPropagatesErrors(t *testing.T) {
	boom := errors.New("connection refused")
	res, err := NewScanner(failingScanner{err: boom}).Scan(context.Background(), "*", 42, 10)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Cursor(42), res.Cursor)
}

func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "kv:x", StripPrefix("kv:kv:x", "kv:"))
	assert.Equal(t, "vk:x", StripPrefix("vk:x", "kv:"))
	assert.Equal(t, "x", StripPrefix("x", ""))
}
