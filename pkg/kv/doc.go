// Package kv provides a Redis-like key-value store abstraction with in-memory
// and Redis-backed implementations.
//
// The package defines a Store interface covering string values with TTL
// support, key management and cursor-based keyspace scanning.
//
// Example usage:
//
//	cfg := Config{
//		Backend: "memory",
//		JanitorInterval: 30 * time.Second,
//	}
//	store, err := NewStoreFromConfig(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	ctx := context.Background()
//	var cursor uint64
//	for {
//		keys, next, err := store.Scan(ctx, cursor, "kv:*", 100)
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, key := range keys {
//			fmt.Println(key)
//		}
//		cursor = next
//		if cursor == 0 {
//			break
//		}
//	}
//
// Scan follows Redis SCAN semantics: a full iteration starts and ends at
// cursor 0, every key present for the whole iteration is returned at least
// once, and keys may be returned more than once when the keyspace is
// modified concurrently. Callers must tolerate duplicates.
//
// The in-memory implementation provides a first-class development and testing
// experience with full TTL support and background expiration. The Redis adapter
// wraps go-redis/v9 for production use while maintaining the same interface.
package kv
