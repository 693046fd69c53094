// Package rule defines the declarative translation rules that move a
// workspace from one schema version to the next.
//
// A Step bundles per-type field edits with record-type edits. Field edits
// are a closed set of variants:
//
//	InsertField    add a slot at its target (post-deletion) index
//	DeleteField    drop a slot at its original index
//	RenameField    change a slot's name, never its position or value
//	RetypeField    convert a slot's value to a new declared type
//	RemapEnumValue exact-match token substitution
//
// Record-type edits rename, split or merge whole record types. Rules that
// need code (computed defaults, split and merge bodies, correlation keys)
// are plain Go functions; Funcs maps names to them so steps can also be
// written as data.
package rule
