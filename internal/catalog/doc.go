// Package catalog holds the historical translation rules: the schema
// dictionary of every supported version and the steps between them.
//
// Dictionaries and steps are CUE documents embedded under data/. A
// dictionary layer lists only the record types whose layout changed in
// that version. Steps reference Go rule functions by name (see Funcs).
//
// Load compiles the embedded rules and, optionally, overlay directories
// whose dictionary layers replace embedded layouts type by type and whose
// steps replace embedded steps with the same source version.
package catalog
