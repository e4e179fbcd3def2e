// Package store provides SQLite-backed storage for run summaries and check
// reports.
//
// A run is stored with its per-iteration results, artifacts, tagged states,
// tags and execution errors. Reports are stored whole, as canonical JSON, and
// flattened into one row per assertion outcome so failures can be queried.
//
// # Ordering
//
// Runs carry a seq assigned at insertion; every list query orders by seq,
// then by a binary-collated key, so results do not depend on wall time or
// row storage order.
//
// # Idempotency
//
// Writing the same summary twice is a no-op: inserts use ON CONFLICT DO
// NOTHING keyed by run id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
