// Package engine translates a workspace from its saved schema version to a
// target version.
//
// A translation is a state machine over the step chain returned by the
// registry:
//
//	Init -> { Rewrite -> Resolve } per step -> Done
//	                 \________________________-> Failed
//
// Rewrite fans the step's records out to a bounded worker pool. Each worker
// only reads its own record's pre-step values and writes one slot of a
// pre-sized result slice. Split and merge rules run afterwards in record
// order so generated handles are deterministic. Resolve starts only after
// every record of the step has been rewritten, because it needs the whole
// handle remap table.
//
// Failures are atomic. Any fatal error discards every intermediate
// workspace; callers get either a complete translated workspace with its
// report, or a typed *ir.TranslationError naming the step and record.
//
// The engine keeps no state between calls. One Engine may translate many
// workspaces concurrently.
package engine
