// Package store provides SQLite-backed storage for joint command recordings.
//
// The store implements an append-only log with:
//   - Recordings: one row per recorded run (name, topic, joints, period)
//   - Messages: every command received on the topic, in arrival order
//
// # Critical Patterns
//
// Logical Order:
//   - Messages are ordered by seq INTEGER (arrival order), NEVER by stamp
//   - All message queries use ORDER BY seq ASC
//
// Stored As Received:
//   - Array lengths are not validated on write, so a recording of a
//     misbehaving publisher can still be inspected; readers validate
//
// Idempotent Appends:
//   - PRIMARY KEY(recording_id, seq) with ON CONFLICT DO NOTHING
//
// # Database Configuration
//
//   - WAL mode: the analysis tool can follow a recording while it is written
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Arrays are stored as canonical JSON (internal/ir/canonical.go) and each
// message carries its ir.CommandDigest.
package store
