package rule

import (
	"fmt"
	"strings"

	"github.com/roach88/osversion/internal/ir"
)

// RecordTypeEdit is a sealed interface over the record-type edit variants.
type RecordTypeEdit interface {
	recordTypeEdit()
	String() string

	// Sources returns the record types consumed by the edit.
	Sources() []string
}

// NewHandleFunc mints a fresh record handle.
type NewHandleFunc func() ir.Handle

// SplitFunc turns one record into one or more records. The first output is
// the primary record: references to the consumed handle follow it. The
// primary may keep the source handle.
type SplitFunc func(r ir.Record, newHandle NewHandleFunc) ([]ir.Record, error)

// MergeFunc folds a group of records sharing a correlation key into one
// record carrying handle h.
type MergeFunc func(group []ir.Record, h ir.Handle) (ir.Record, error)

// KeyFunc returns the correlation key of a record. Records without a key
// are merged alone.
type KeyFunc func(r ir.Record) (string, bool)

// RenameType renames every record of type From to To.
type RenameType struct {
	From string
	To   string
}

// SplitType replaces each record of type From with the records Rule returns.
// Into lists the types the rule may produce.
type SplitType struct {
	From     string
	Into     []string
	Rule     SplitFunc
	RuleName string
}

// MergeTypes groups records of the From types by Key and replaces each group
// with one record of type Into.
type MergeTypes struct {
	From     []string
	Into     string
	Key      KeyFunc
	KeyName  string
	Rule     MergeFunc
	RuleName string
}

func (RenameType) recordTypeEdit() {}
func (SplitType) recordTypeEdit() {}
func (MergeTypes) recordTypeEdit() {}

func (e RenameType) String() string { return fmt.Sprintf("rename-type %s -> %s", e.From, e.To) }
func (e SplitType) String() string {
	return fmt.Sprintf("split %s -> [%s]", e.From, strings.Join(e.Into, ", "))
}
func (e MergeTypes) String() string {
	return fmt.Sprintf("merge [%s] -> %s", strings.Join(e.From, ", "), e.Into)
}

func (e RenameType) Sources() []string { return []string{e.From} }
func (e SplitType) Sources() []string { return []string{e.From} }
func (e MergeTypes) Sources() []string { return e.From }

// Step is the complete rule set moving a workspace from From to its
// immediate successor To.
type Step struct {
	From ir.VersionTag
	To   ir.VersionTag

	// Records maps a source record type name to its field edits.
	Records map[string][]FieldEdit

	// Types lists record-type edits in application order.
	Types []RecordTypeEdit
}

// NewStep creates an empty step between two versions.
func NewStep(from, to ir.VersionTag) *Step {
	return &Step{From: from, To: to, Records: make(map[string][]FieldEdit)}
}

// Edit appends field edits for typeName and returns s for chaining.
func (s *Step) Edit(typeName string, edits ...FieldEdit) *Step {
	if s.Records == nil {
		s.Records = make(map[string][]FieldEdit)
	}
	s.Records[typeName] = append(s.Records[typeName], edits...)
	return s
}

// Type appends record-type edits and returns s for chaining.
func (s *Step) Type(edits ...RecordTypeEdit) *Step {
	s.Types = append(s.Types, edits...)
	return s
}

// Name returns the "from->to" label used in errors, logs and reports.
func (s *Step) Name() string {
	return s.From.String() + "->" + s.To.String()
}

// Touches reports whether records of typeName are rewritten by s.
func (s *Step) Touches(typeName string) bool {
	if _, ok := s.Records[typeName]; ok {
		return true
	}
	for _, te := range s.Types {
		for _, src := range te.Sources() {
			if src == typeName {
				return true
			}
		}
	}
	return false
}

// RenameFor returns the new name of typeName if s renames it.
func (s *Step) RenameFor(typeName string) (string, bool) {
	for _, te := range s.Types {
		if rt, ok := te.(RenameType); ok && rt.From == typeName {
			return rt.To, true
		}
	}
	return "", false
}

// SplitFor returns the split edit consuming typeName.
func (s *Step) SplitFor(typeName string) (SplitType, bool) {
	for _, te := range s.Types {
		if st, ok := te.(SplitType); ok && st.From == typeName {
			return st, true
		}
	}
	return SplitType{}, false
}

// MergeFor returns the merge edit consuming typeName.
func (s *Step) MergeFor(typeName string) (MergeTypes, bool) {
	for _, te := range s.Types {
		if mt, ok := te.(MergeTypes); ok {
			for _, src := range mt.From {
				if src == typeName {
					return mt, true
				}
			}
		}
	}
	return MergeTypes{}, false
}

// Validate checks the step for authoring errors that can be detected
// without a dictionary.
func (s *Step) Validate() error {
	if !s.From.Less(s.To) {
		return s.invalid("to version %s must be greater than from version %s", s.To, s.From)
	}

	claimed := make(map[string]string)
	for _, te := range s.Types {
		for _, src := range te.Sources() {
			if prev, ok := claimed[src]; ok {
				return s.invalid("type %s is consumed by both %q and %q", src, prev, te.String())
			}
			claimed[src] = te.String()
		}
		switch e := te.(type) {
		case RenameType:
			if e.From == "" || e.To == "" || e.From == e.To {
				return s.invalid("%s: from and to must be distinct type names", e)
			}
		case SplitType:
			if e.Rule == nil {
				return s.invalid("%s: split rule is required", e)
			}
			if len(e.Into) == 0 {
				return s.invalid("%s: at least one output type is required", e)
			}
			if len(s.Records[e.From]) > 0 {
				return s.invalid("%s: split type cannot also carry field edits", e)
			}
		case MergeTypes:
			if e.Rule == nil || e.Key == nil {
				return s.invalid("%s: merge rule and key are required", e)
			}
			if len(e.From) == 0 || e.Into == "" {
				return s.invalid("%s: source and output types are required", e)
			}
			for _, src := range e.From {
				if len(s.Records[src]) > 0 {
					return s.invalid("%s: merged type %s cannot also carry field edits", e, src)
				}
			}
		default:
			return s.invalid("unknown record-type edit %T", te)
		}
	}

	for typeName, edits := range s.Records {
		if err := s.validateFieldEdits(typeName, edits); err != nil {
			return err
		}
	}
	return nil
}

func (s *Step) validateFieldEdits(typeName string, edits []FieldEdit) error {
	deleted := make(map[int]bool)
	inserted := make(map[int]bool)
	valued := make(map[int]bool)
	renamed := make(map[string]bool)

	for _, fe := range edits {
		switch e := fe.(type) {
		case InsertField:
			if e.Index < 0 || e.Name == "" {
				return s.invalid("%s: %s needs a name and a non-negative index", typeName, e)
			}
			if inserted[e.Index] {
				return s.invalid("%s: two insertions at target index %d", typeName, e.Index)
			}
			inserted[e.Index] = true
		case DeleteField:
			if e.Index < 0 {
				return s.invalid("%s: %s has a negative index", typeName, e)
			}
			if deleted[e.Index] || valued[e.Index] {
				return s.invalid("%s: source index %d is edited twice", typeName, e.Index)
			}
			deleted[e.Index] = true
		case RenameField:
			if e.From == "" || e.To == "" {
				return s.invalid("%s: %s needs both names", typeName, e)
			}
			if renamed[e.From] {
				return s.invalid("%s: field %q renamed twice", typeName, e.From)
			}
			renamed[e.From] = true
		case RetypeField:
			if !ir.ValidFieldTypes[e.To] {
				return s.invalid("%s: %s targets unknown type", typeName, e)
			}
			if e.Index < 0 || deleted[e.Index] || valued[e.Index] {
				return s.invalid("%s: source index %d is edited twice", typeName, e.Index)
			}
			valued[e.Index] = true
		case RemapEnumValue:
			if e.Index < 0 || deleted[e.Index] || valued[e.Index] {
				return s.invalid("%s: source index %d is edited twice", typeName, e.Index)
			}
			valued[e.Index] = true
		default:
			return s.invalid("%s: unknown field edit %T", typeName, fe)
		}
	}
	return nil
}

func (s *Step) invalid(format string, args ...any) error {
	return ir.NewInvalidStepError(s.Name(), ir.Record{}, -1, format, args...)
}
