// Package store provides a SQLite-backed journal of pipeline executions.
//
// Every pipeline sent through a journaled collection is recorded with its
// canonical JSON and fingerprint, so the history of what ran against which
// collection can be inspected later and repeated runs of the same pipeline
// can be found by fingerprint.
//
// # Ordering
//
// Reads are ordered by seq (insertion order) and then id COLLATE BINARY.
// Timestamps are recorded for display only and never used for ordering.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
