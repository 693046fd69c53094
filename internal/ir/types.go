package ir

import "fmt"

// Field is a single positional value slot of a record.
type Field struct {
	Name  string `json:"name"`
	Value Value  `json:"-"`
}

// F is shorthand for constructing a Field.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Record is a typed, ordered-field entry in a workspace identified by its handle.
type Record struct {
	Type   string  `json:"type"`
	Handle Handle  `json:"handle"`
	Fields []Field `json:"fields"`
}

// Clone returns a copy whose field slice can be edited independently.
// Values are immutable so they are shared.
func (r Record) Clone() Record {
	out := r
	out.Fields = make([]Field, len(r.Fields))
	copy(out.Fields, r.Fields)
	return out
}

// FieldIndex returns the index of the first field named name, or -1.
func (r Record) FieldIndex(name string) int {
	for i, f := range r.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value of the field named name.
func (r Record) Get(name string) (Value, bool) {
	i := r.FieldIndex(name)
	if i < 0 {
		return nil, false
	}
	return r.Fields[i].Value, true
}

// Equal reports whether two records have the same type, handle, field names
// and field values in the same order.
func (r Record) Equal(o Record) bool {
	if r.Type != o.Type || r.Handle != o.Handle || len(r.Fields) != len(o.Fields) {
		return false
	}
	for i := range r.Fields {
		if r.Fields[i].Name != o.Fields[i].Name || !ValuesEqual(r.Fields[i].Value, o.Fields[i].Value) {
			return false
		}
	}
	return true
}

// Workspace is one model file in memory: its schema version and its records
// in file order. Handles are unique within a workspace.
type Workspace struct {
	Version VersionTag `json:"version"`
	Records []Record   `json:"records"`
}

// Clone returns a deep copy of the workspace.
func (w *Workspace) Clone() *Workspace {
	out := &Workspace{
		Version: w.Version,
		Records: make([]Record, len(w.Records)),
	}
	for i, r := range w.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Find returns the record with handle h.
func (w *Workspace) Find(h Handle) (Record, bool) {
	for _, r := range w.Records {
		if r.Handle == h {
			return r, true
		}
	}
	return Record{}, false
}

// OfType returns the records of the given type in file order.
func (w *Workspace) OfType(typeName string) []Record {
	var out []Record
	for _, r := range w.Records {
		if r.Type == typeName {
			out = append(out, r)
		}
	}
	return out
}

// Equal reports whether two workspaces have the same version and records.
func (w *Workspace) Equal(o *Workspace) bool {
	if w.Version != o.Version || len(w.Records) != len(o.Records) {
		return false
	}
	for i := range w.Records {
		if !w.Records[i].Equal(o.Records[i]) {
			return false
		}
	}
	return true
}

// RecordedVersion reads the version stored in the workspace's version record.
// Returns false if there is no version record.
func (w *Workspace) RecordedVersion() (VersionTag, bool, error) {
	var found *Record
	for i := range w.Records {
		if w.Records[i].Type == VersionRecordType {
			if found != nil {
				return VersionTag{}, true, fmt.Errorf("multiple %s records", VersionRecordType)
			}
			found = &w.Records[i]
		}
	}
	if found == nil {
		return VersionTag{}, false, nil
	}
	if len(found.Fields) != 1 {
		return VersionTag{}, true, fmt.Errorf("%s record %s has %d fields, want 1", VersionRecordType, found.Handle, len(found.Fields))
	}
	v, err := ParseVersion(found.Fields[0].Value.Text())
	if err != nil {
		return VersionTag{}, true, fmt.Errorf("%s record %s: %w", VersionRecordType, found.Handle, err)
	}
	return v, true, nil
}

// StampVersion sets the workspace version and rewrites the version record's
// field in place. Callers own w.
func (w *Workspace) StampVersion(v VersionTag) {
	w.Version = v
	for i := range w.Records {
		if w.Records[i].Type == VersionRecordType && len(w.Records[i].Fields) == 1 {
			w.Records[i].Fields[0].Value = Text(v.String())
		}
	}
}
