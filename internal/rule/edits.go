package rule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/osversion/internal/ir"
)

// FieldEdit is a sealed interface over the field-level edit variants.
type FieldEdit interface {
	fieldEdit()
	String() string
}

// ComputeFunc derives an inserted field's value from the record's pre-step
// values. It must be pure.
type ComputeFunc func(src Source) (ir.Value, error)

// CoerceFunc converts a value to a new declared field type.
type CoerceFunc func(v ir.Value, to ir.FieldType) (ir.Value, error)

// InsertField adds a field at Index in the target layout. Index counts
// positions after the step's deletions have been applied. Compute, when
// set, takes precedence over Default.
type InsertField struct {
	Index       int
	Name        string
	Default     ir.Value
	Compute     ComputeFunc
	ComputeName string
}

// DeleteField removes the field at Index in the source layout. Name, when
// set, must match the source field name at Index.
type DeleteField struct {
	Index int
	Name  string
}

// RenameField changes the name of the source field From to To.
type RenameField struct {
	From string
	To   string
}

// RetypeField converts the value at source Index to type To. A nil Coerce
// uses ir.Coerce.
type RetypeField struct {
	Index      int
	To         ir.FieldType
	Coerce     CoerceFunc
	CoerceName string
}

// RemapEnumValue replaces the token at source Index by exact match.
// Tokens not in Map are left unchanged.
type RemapEnumValue struct {
	Index int
	Map   map[string]string
}

func (InsertField) fieldEdit() {}
func (DeleteField) fieldEdit() {}
func (RenameField) fieldEdit() {}
func (RetypeField) fieldEdit() {}
func (RemapEnumValue) fieldEdit() {}

func (e InsertField) String() string {
	if e.Compute != nil {
		name := e.ComputeName
		if name == "" {
			name = "func"
		}
		return fmt.Sprintf("insert %d %q = %s()", e.Index, e.Name, name)
	}
	def := ""
	if e.Default != nil {
		def = e.Default.Text()
	}
	return fmt.Sprintf("insert %d %q = %q", e.Index, e.Name, def)
}

func (e DeleteField) String() string {
	if e.Name != "" {
		return fmt.Sprintf("delete %d %q", e.Index, e.Name)
	}
	return fmt.Sprintf("delete %d", e.Index)
}

func (e RenameField) String() string { return fmt.Sprintf("rename %q -> %q", e.From, e.To) }
func (e RetypeField) String() string { return fmt.Sprintf("retype %d -> %s", e.Index, e.To) }

func (e RemapEnumValue) String() string {
	keys := make([]string, 0, len(e.Map))
	for k := range e.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + e.Map[k]
	}
	return fmt.Sprintf("remap %d {%s}", e.Index, strings.Join(pairs, ","))
}

// Insert is shorthand for an InsertField with a literal default.
func Insert(index int, name string, def ir.Value) InsertField {
	return InsertField{Index: index, Name: name, Default: def}
}

// InsertComputed is shorthand for an InsertField with a computed default.
func InsertComputed(index int, name, funcName string, fn ComputeFunc) InsertField {
	return InsertField{Index: index, Name: name, Compute: fn, ComputeName: funcName}
}

// Delete is shorthand for a DeleteField that also checks the field name.
func Delete(index int, name string) DeleteField {
	return DeleteField{Index: index, Name: name}
}

// Rename is shorthand for a RenameField.
func Rename(from, to string) RenameField {
	return RenameField{From: from, To: to}
}

// Retype is shorthand for a RetypeField using ir.Coerce.
func Retype(index int, to ir.FieldType) RetypeField {
	return RetypeField{Index: index, To: to}
}

// Remap is shorthand for a RemapEnumValue.
func Remap(index int, m map[string]string) RemapEnumValue {
	return RemapEnumValue{Index: index, Map: m}
}

// Source gives computed defaults read access to a record's values as they
// were before the current step, looked up by source field name.
type Source struct {
	rec   ir.Record
	names []string
}

// NewSource wraps r. names are the source layout's field names, which take
// precedence over the names carried by r's fields.
func NewSource(r ir.Record, names []string) Source {
	return Source{rec: r, names: names}
}

// Record returns the underlying record.
func (s Source) Record() ir.Record { return s.rec }

// Get returns the value of the named field, or Empty when absent.
func (s Source) Get(name string) ir.Value {
	for i, n := range s.names {
		if n == name && i < len(s.rec.Fields) {
			return s.rec.Fields[i].Value
		}
	}
	if v, ok := s.rec.Get(name); ok {
		return v
	}
	return ir.Empty{}
}

// Real returns the named field as a float when it holds a Real or Integer.
func (s Source) Real(name string) (float64, bool) {
	switch v := s.Get(name).(type) {
	case ir.Real:
		return float64(v), true
	case ir.Integer:
		return float64(v), true
	}
	return 0, false
}

// Token returns the text of the named field when it holds a Token or Text.
func (s Source) Token(name string) (string, bool) {
	switch v := s.Get(name).(type) {
	case ir.Token:
		return string(v), true
	case ir.Text:
		return string(v), true
	}
	return "", false
}
