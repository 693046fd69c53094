package compiler

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DocumentKind tells dictionary files from step files.
type DocumentKind int

const (
	KindUnknown DocumentKind = iota
	KindDictionary
	KindStep
)

func (k DocumentKind) String() string {
	switch k {
	case KindDictionary:
		return "dictionary"
	case KindStep:
		return "step"
	}
	return "unknown"
}

// Parse compiles one CUE source file. name is used for error positions.
func Parse(ctx *cue.Context, name string, data []byte) (cue.Value, error) {
	if ctx == nil {
		ctx = cuecontext.New()
	}
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// Classify reports what a parsed document describes. A dictionary layer has
// a top-level `version`, a step has `from` and `to`.
func Classify(v cue.Value) (DocumentKind, error) {
	hasVersion := v.LookupPath(cue.ParsePath("version")).Exists()
	hasFrom := v.LookupPath(cue.ParsePath("from")).Exists()
	switch {
	case hasVersion && hasFrom:
		return KindUnknown, &CompileError{
			Field:   "version",
			Message: "document declares both a dictionary version and a step",
			Pos:     v.Pos(),
		}
	case hasVersion:
		return KindDictionary, nil
	case hasFrom:
		return KindStep, nil
	}
	return KindUnknown, &CompileError{
		Field:   "document",
		Message: "expected a dictionary (version, types) or a step (from, to)",
		Pos:     v.Pos(),
	}
}
