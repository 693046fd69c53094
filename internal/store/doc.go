// Package store keeps a SQLite-backed log of translation runs.
//
// Each run row carries the digests of the input and output workspaces and
// the version pair; its id is derived from those four values, so recording
// the same translation twice is a no-op. The run's step summaries and
// report entries are stored alongside in insertion order.
//
// # Ordering
//
// Runs are ordered by seq, a logical counter assigned on insert. Queries
// never order by wall time, so listings are identical across machines.
//
// # Connections
//
// Every connection runs in WAL mode with synchronous=NORMAL, a 5 second
// busy timeout and foreign keys enforced. The log format is stamped in
// PRAGMA user_version; Open refuses a log stamped by a newer release.
package store
