package ir

import "regexp"

// Handle is the opaque unique identifier of a record within a workspace.
// OSM files use a braced version 4 UUID, e.g. "{0b5e1c3a-...}".
type Handle string

// handlePattern matches a braced UUID. Version and variant nibbles are not
// checked so fixtures can use readable sequential handles.
var handlePattern = regexp.MustCompile(`^\{[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\}$`)

// IsHandle reports whether s has the shape of a handle.
func IsHandle(s string) bool {
	return handlePattern.MatchString(s)
}

// String returns the handle text.
func (h Handle) String() string {
	return string(h)
}

// IsEmpty reports whether the handle is unset.
func (h Handle) IsEmpty() bool {
	return h == ""
}
