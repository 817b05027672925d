// Package store keeps the history of harness runs in SQLite.
//
// Every run is written in one transaction: the run summary, one row per test
// result and every engine event the run produced. Rows are append-only; a
// run ID that already exists is ignored.
//
// # Ordering
//
// Runs are ordered by a logical sequence number assigned at write time and
// events by their engine sequence number. Wall-clock time is never stored,
// so two stores fed the same runs hold identical rows.
//
// # Integrity
//
// A run carries the digest of its canonical form (ir.RunDigest). VerifyRun
// recomputes it from the stored rows and reports whether anything changed.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait up to 5s for locks
//   - foreign_keys=ON: results and events belong to a run
package store
