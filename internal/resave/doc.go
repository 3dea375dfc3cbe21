// Package resave rewrites every value in a namespaced key-value keyspace in
// a single resumable pass.
//
// A run walks the keyspace with cursor-based scanning, starting from a
// caller-supplied cursor (0 for a fresh run) and stopping when the store
// hands cursor 0 back. Every key found is read and written again, either
// keeping its remaining TTL or receiving a fixed one. Between batches the
// rewriter sleeps for an interval that a Pacer grows while batches run
// slower than a target duration and shrinks again once they recover.
//
// Dry runs only scan: they count keys and keep a handful of samples, and
// never issue a read or write against the store.
//
// Scan errors abort the run and report the cursor to resume from. Errors
// reading or writing a single key are counted and skipped.
package resave
