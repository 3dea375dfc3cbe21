// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/leafsii/kv-resave/pkg/kv"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	t.Run("StringOperations", func(t *testing.T) {
		testStringOperations(t, factory)
	})
	t.Run("KeyOperations", func(t *testing.T) {
		testKeyOperations(t, factory)
	})
	t.Run("TTLOperations", func(t *testing.T) {
		testTTLOperations(t, factory)
	})
	t.Run("ScanOperations", func(t *testing.T) {
		testScanOperations(t, factory)
	})
	t.Run("MultiOperations", func(t *testing.T) {
		testMultiOperations(t, factory)
	})
	t.Run("HealthCheck", func(t *testing.T) {
		testHealthCheck(t, factory)
	})
	t.Run("Stats", func(t *testing.T) {
		testStats(t, factory)
	})
}

type storeTest struct {
	name string
	test func(t *testing.T, store kv.Store)
}

func runStoreTests(t *testing.T, factory StoreFactory, tests []storeTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func testStringOperations(t *testing.T, factory StoreFactory) {
	runStoreTests(t, factory, []storeTest{
		{"SetGet", testSetGet},
		{"GetNonExistent", testGetNonExistent},
		{"Overwrite", testOverwrite},
	})
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:string"
	value := []byte("hello world")

	err := store.Set(ctx, key, value)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !reflect.DeepEqual(result, value) {
		t.Fatalf("Expected %v, got %v", value, result)
	}
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:nonexistent"

	_, err := store.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testOverwrite(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:overwrite"

	store.Set(ctx, key, []byte("first"))
	store.Set(ctx, key, []byte("second"))

	result, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(result) != "second" {
		t.Fatalf("Expected %q, got %q", "second", result)
	}
}

func testKeyOperations(t *testing.T, factory StoreFactory) {
	runStoreTests(t, factory, []storeTest{
		{"Del", testDel},
		{"Exists", testExists},
	})
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key1, key2 := "test:del1", "test:del2"
	value := []byte("test")

	store.Set(ctx, key1, value)
	store.Set(ctx, key2, value)

	deleted, err := store.Del(ctx, key1)
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("Expected 1 deleted, got %d", deleted)
	}

	_, err = store.Get(ctx, key1)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for deleted key, got %v", err)
	}

	_, err = store.Get(ctx, key2)
	if err != nil {
		t.Fatalf("Expected key2 to still exist, got %v", err)
	}
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:exists"
	value := []byte("test")

	count, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 for non-existent key, got %d", count)
	}

	store.Set(ctx, key, value)

	count, err = store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 for existing key, got %d", count)
	}
}

func testTTLOperations(t *testing.T, factory StoreFactory) {
	runStoreTests(t, factory, []storeTest{
		{"SetWithTTL", testSetWithTTL},
		{"Expire", testExpire},
		{"TTL", testTTL},
		{"SetClearsTTL", testSetClearsTTL},
		{"SetKeepTTL", testSetKeepTTL},
		{"SetKeepTTLWithoutExpiry", testSetKeepTTLWithoutExpiry},
	})
}

func testSetWithTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:ttl"
	value := []byte("expires")
	ttl := 100 * time.Millisecond

	err := store.Set(ctx, key, value, ttl)
	if err != nil {
		t.Fatalf("Set with TTL failed: %v", err)
	}

	_, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Expected key to exist initially, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	_, err = store.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testExpire(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:expire"
	value := []byte("test")

	store.Set(ctx, key, value)

	expired, err := store.Expire(ctx, key, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if !expired {
		t.Fatalf("Expected Expire to return true for existing key")
	}

	time.Sleep(150 * time.Millisecond)

	_, err = store.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:ttl-check"
	value := []byte("test")

	_, err := store.TTL(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent key, got %v", err)
	}

	store.Set(ctx, key, value)
	ttl, err := store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected -1 for key without TTL, got %v", ttl)
	}

	store.Set(ctx, key, value, 500*time.Millisecond)
	ttl, err = store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 500*time.Millisecond {
		t.Fatalf("Expected TTL between 0 and 500ms, got %v", ttl)
	}
}

func testSetClearsTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:set-clears-ttl"

	store.Set(ctx, key, []byte("v1"), time.Minute)
	store.Set(ctx, key, []byte("v2"))

	ttl, err := store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected plain Set to clear the expiration, got %v", ttl)
	}
}

func testSetKeepTTL(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:keepttl"

	store.Set(ctx, key, []byte("v1"), time.Minute)

	if err := store.SetKeepTTL(ctx, key, []byte("v2")); err != nil {
		t.Fatalf("SetKeepTTL failed: %v", err)
	}

	result, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(result) != "v2" {
		t.Fatalf("Expected %q, got %q", "v2", result)
	}

	ttl, err := store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 50*time.Second || ttl > time.Minute {
		t.Fatalf("Expected the original one minute TTL to survive, got %v", ttl)
	}
}

func testSetKeepTTLWithoutExpiry(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:keepttl-none"

	if err := store.SetKeepTTL(ctx, key, []byte("fresh")); err != nil {
		t.Fatalf("SetKeepTTL failed: %v", err)
	}

	ttl, err := store.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Fatalf("Expected no expiration for a new key, got %v", ttl)
	}
}

func testScanOperations(t *testing.T, factory StoreFactory) {
	runStoreTests(t, factory, []storeTest{
		{"FullCycle", testScanFullCycle},
		{"PatternFilter", testScanPatternFilter},
		{"Resume", testScanResume},
		{"Empty", testScanEmpty},
	})
}

// scanAll follows cursors from start until the store returns 0 again
func scanAll(t *testing.T, store kv.Store, start uint64, pattern string, count int64) []string {
	t.Helper()
	ctx := context.Background()

	var keys []string
	cursor := start
	for i := 0; ; i++ {
		if i > 100000 {
			t.Fatalf("Scan did not terminate")
		}
		batch, next, err := store.Scan(ctx, cursor, pattern, count)
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys
		}
	}
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func testScanFullCycle(t *testing.T, store kv.Store) {
	ctx := context.Background()

	expected := make([]string, 0, 57)
	for i := 0; i < 57; i++ {
		key := fmt.Sprintf("test:scan:%03d", i)
		expected = append(expected, key)
		store.Set(ctx, key, []byte("v"))
	}

	got := uniqueSorted(scanAll(t, store, 0, "test:scan:*", 10))
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("Expected full cycle to return %d keys, got %d", len(expected), len(got))
	}
}

func testScanPatternFilter(t *testing.T, store kv.Store) {
	ctx := context.Background()

	store.Set(ctx, "test:pf:product:1", []byte("v"))
	store.Set(ctx, "test:pf:product:2", []byte("v"))
	store.Set(ctx, "test:pf:category:1", []byte("v"))
	store.Set(ctx, "test:pf:product:x", []byte("v"))

	got := uniqueSorted(scanAll(t, store, 0, "test:pf:product:[0-9]", 100))
	expected := []string{"test:pf:product:1", "test:pf:product:2"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
}

func testScanResume(t *testing.T, store kv.Store) {
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		store.Set(ctx, fmt.Sprintf("test:resume:%02d", i), []byte("v"))
	}

	first, next, err := store.Scan(ctx, 0, "test:resume:*", 5)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if next == 0 {
		// The whole keyspace fit in one step; nothing to resume.
		return
	}

	rest := scanAll(t, store, next, "test:resume:*", 5)
	got := uniqueSorted(append(first, rest...))
	if len(got) != 40 {
		t.Fatalf("Expected resumed scan to complete the keyspace, got %d keys", len(got))
	}
}

func testScanEmpty(t *testing.T, store kv.Store) {
	got := scanAll(t, store, 0, "test:nothing-here:*", 10)
	if len(got) != 0 {
		t.Fatalf("Expected no keys, got %v", got)
	}
}

func testMultiOperations(t *testing.T, factory StoreFactory) {
	runStoreTests(t, factory, []storeTest{
		{"MSetGet", testMSetGet},
	})
}

func testMSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()

	kvPairs := map[string][]byte{
		"test:multi1": []byte("value1"),
		"test:multi2": []byte("value2"),
		"test:multi3": []byte("value3"),
	}

	err := store.MSet(ctx, kvPairs)
	if err != nil {
		t.Fatalf("MSet failed: %v", err)
	}

	keys := []string{"test:multi1", "test:multi2", "test:nonexistent"}
	values, err := store.MGet(ctx, keys...)
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}

	if len(values) != 3 {
		t.Fatalf("Expected 3 values, got %d", len(values))
	}

	if !reflect.DeepEqual(values[0], []byte("value1")) {
		t.Fatalf("Expected value1, got %v", values[0])
	}

	if !reflect.DeepEqual(values[1], []byte("value2")) {
		t.Fatalf("Expected value2, got %v", values[1])
	}

	if values[2] != nil {
		t.Fatalf("Expected nil for non-existent key, got %v", values[2])
	}
}

func testHealthCheck(t *testing.T, factory StoreFactory) {
	store := factory(t)
	defer store.Close()

	ctx := context.Background()

	// Ping should not error for healthy store
	err := store.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping failed for healthy store: %v", err)
	}
}

func testStats(t *testing.T, factory StoreFactory) {
	store := factory(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "stats:a", []byte("1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if len(stats) == 0 {
		t.Fatalf("Expected backend stats, got none")
	}
}
