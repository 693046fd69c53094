// Package ir provides the in-memory model types shared by every layer of the
// translation engine: version tags, handles, typed field values, records and
// workspaces, plus the translation error taxonomy.
//
// This package contains type definitions and small helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Fields are positional. Names travel with the field but the order is
//     what the schema dictionary validates.
//   - Values are a sealed set of kinds. A reference is its own kind so the
//     resolver never has to guess which strings are handles.
//   - Records and workspaces are treated as immutable by the engine. Use
//     Clone before editing.
package ir
