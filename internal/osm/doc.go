// Package osm reads and writes the OpenStudio model text layout:
//
//	OS:Version,
//	  {ad5ef2e2-3c8d-4a2b-9d6c-7f2b1f0c5e11}, !- Handle
//	  3.10.0;                                 !- Version Identifier
//
// Each record is its type, its handle, then one line per field, the last
// field terminated by a semicolon. Text after "!-" is a comment.
package osm
