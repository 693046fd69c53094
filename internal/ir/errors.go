package ir

import (
	"errors"
	"fmt"
)

// TranslationError represents a failure detected while translating a workspace.
//
// Translation errors include:
//   - No translation path: no contiguous chain of steps joins source and target
//   - Unsupported future version: the source is newer than anything registered
//   - Malformed record: a record does not match its declared type layout
//   - Dangling reference: a reference points at a handle that does not exist
//   - Invalid step: a step produced output inconsistent with its target schema
type TranslationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Step names the failing step as "from->to". Empty outside a step.
	Step string

	// Handle identifies the offending record.
	Handle Handle

	// RecordType is the type of the offending record.
	RecordType string

	// FieldIndex is the offending field position, or -1.
	FieldIndex int

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes translation errors.
type ErrorCode string

const (
	ErrCodeNoTranslationPath        ErrorCode = "NO_TRANSLATION_PATH"
	ErrCodeUnsupportedFutureVersion ErrorCode = "UNSUPPORTED_FUTURE_VERSION"
	ErrCodeMalformedRecord          ErrorCode = "MALFORMED_RECORD"
	ErrCodeDanglingReference        ErrorCode = "DANGLING_REFERENCE"
	ErrCodeInvalidStep              ErrorCode = "INVALID_STEP"
)

// Error implements the error interface.
func (e *TranslationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Step != "" {
		msg += fmt.Sprintf(" (step=%s)", e.Step)
	}
	if e.Handle != "" {
		msg += fmt.Sprintf(" (record=%s %s", e.RecordType, e.Handle)
		if e.FieldIndex >= 0 {
			msg += fmt.Sprintf(" field=%d", e.FieldIndex)
		}
		msg += ")"
	}
	return msg
}

// Is matches another *TranslationError by code, so sentinel comparisons
// like errors.Is(err, &TranslationError{Code: ErrCodeInvalidStep}) work.
func (e *TranslationError) Is(target error) bool {
	var te *TranslationError
	if !errors.As(target, &te) {
		return false
	}
	return te.Code == e.Code
}

// CodeOf returns the code of the first TranslationError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var te *TranslationError
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}

func hasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsNoTranslationPath reports whether err is a NO_TRANSLATION_PATH error.
func IsNoTranslationPath(err error) bool { return hasCode(err, ErrCodeNoTranslationPath) }

// IsUnsupportedFutureVersion reports whether err is an UNSUPPORTED_FUTURE_VERSION error.
func IsUnsupportedFutureVersion(err error) bool {
	return hasCode(err, ErrCodeUnsupportedFutureVersion)
}

// IsMalformedRecord reports whether err is a MALFORMED_RECORD error.
func IsMalformedRecord(err error) bool { return hasCode(err, ErrCodeMalformedRecord) }

// IsDanglingReference reports whether err is a DANGLING_REFERENCE error.
func IsDanglingReference(err error) bool { return hasCode(err, ErrCodeDanglingReference) }

// IsInvalidStep reports whether err is an INVALID_STEP error.
func IsInvalidStep(err error) bool { return hasCode(err, ErrCodeInvalidStep) }

// NewNoPathError creates a TranslationError for a missing step chain.
func NewNoPathError(from, to VersionTag, reason string) *TranslationError {
	return &TranslationError{
		Code:       ErrCodeNoTranslationPath,
		Message:    fmt.Sprintf("no translation path from %s to %s: %s", from, to, reason),
		FieldIndex: -1,
		Details: map[string]string{
			"from": from.String(),
			"to":   to.String(),
		},
	}
}

// NewFutureVersionError creates a TranslationError for a source newer than latest.
func NewFutureVersionError(source, latest VersionTag) *TranslationError {
	return &TranslationError{
		Code:       ErrCodeUnsupportedFutureVersion,
		Message:    fmt.Sprintf("source version %s is newer than latest known version %s", source, latest),
		FieldIndex: -1,
		Details: map[string]string{
			"source": source.String(),
			"latest": latest.String(),
		},
	}
}

// NewMalformedError creates a TranslationError for a record that does not
// match its declared layout. fieldIndex may be -1.
func NewMalformedError(step string, r Record, fieldIndex int, format string, args ...any) *TranslationError {
	return &TranslationError{
		Code:       ErrCodeMalformedRecord,
		Message:    fmt.Sprintf(format, args...),
		Step:       step,
		Handle:     r.Handle,
		RecordType: r.Type,
		FieldIndex: fieldIndex,
	}
}

// NewDanglingError creates a TranslationError for a reference to a missing handle.
func NewDanglingError(step string, r Record, fieldIndex int, target Handle) *TranslationError {
	return &TranslationError{
		Code:       ErrCodeDanglingReference,
		Message:    fmt.Sprintf("reference to missing handle %s", target),
		Step:       step,
		Handle:     r.Handle,
		RecordType: r.Type,
		FieldIndex: fieldIndex,
		Details: map[string]string{
			"target": target.String(),
		},
	}
}

// NewInvalidStepError creates a TranslationError for a step inconsistent
// with its target schema. r may be the zero Record.
func NewInvalidStepError(step string, r Record, fieldIndex int, format string, args ...any) *TranslationError {
	return &TranslationError{
		Code:       ErrCodeInvalidStep,
		Message:    fmt.Sprintf(format, args...),
		Step:       step,
		Handle:     r.Handle,
		RecordType: r.Type,
		FieldIndex: fieldIndex,
	}
}
