// Package schema describes record layouts per schema version.
//
// A Dictionary answers one question: for version v, what is the ordered
// field layout of record type t? The engine consults it before and after
// every step to check record shape.
package schema

import (
	"fmt"
	"sort"

	"github.com/roach88/osversion/internal/ir"
)

// FieldDef declares one positional field slot.
type FieldDef struct {
	Name     string       `json:"name"`
	Type     ir.FieldType `json:"type"`
	Default  ir.Value     `json:"-"`
	Choices  []string     `json:"choices,omitempty"`
	Required bool         `json:"required,omitempty"`
}

// HasChoice reports whether token is one of the declared choices.
func (d FieldDef) HasChoice(token string) bool {
	for _, c := range d.Choices {
		if c == token {
			return true
		}
	}
	return false
}

// DefaultValue returns the declared default, or Empty.
func (d FieldDef) DefaultValue() ir.Value {
	if d.Default == nil {
		return ir.Empty{}
	}
	return d.Default
}

// TypeDef is the layout of one record type at one version.
// A removed TypeDef tombstones the type from that version onward.
type TypeDef struct {
	Name    string
	Fields  []FieldDef
	Removed bool
}

// Dictionary supplies field layouts per version.
type Dictionary interface {
	// Fields returns the ordered layout of typeName at version v.
	// Returns false if the type does not exist at v.
	Fields(v ir.VersionTag, typeName string) ([]FieldDef, bool)
}

// IndexOf returns the position of the field named name in defs, or -1.
func IndexOf(defs []FieldDef, name string) int {
	for i, d := range defs {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the field names of defs in order.
func Names(defs []FieldDef) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Check verifies that r matches defs in field count and value kinds.
// On mismatch it returns the offending field index (or -1 for a count
// mismatch) and a description.
func Check(defs []FieldDef, r ir.Record) (int, error) {
	if len(r.Fields) != len(defs) {
		return -1, fmt.Errorf("%s has %d fields, schema declares %d", r.Type, len(r.Fields), len(defs))
	}
	for i, d := range defs {
		v := r.Fields[i].Value
		if !ir.Compatible(d.Type, v) {
			kind := "nil"
			if v != nil {
				kind = v.Kind().String()
			}
			return i, fmt.Errorf("field %d (%s) holds %s value %q, schema declares %s",
				i, d.Name, kind, textOf(v), d.Type)
		}
	}
	return -1, nil
}

func textOf(v ir.Value) string {
	if v == nil {
		return ""
	}
	return v.Text()
}

// Layered is an in-memory Dictionary in which each version lists only the
// record types that changed. Lookups fall back to the closest earlier
// version that defines the type.
type Layered struct {
	versions []ir.VersionTag
	layers   map[ir.VersionTag]map[string]TypeDef
}

// NewLayered creates an empty layered dictionary.
func NewLayered() *Layered {
	return &Layered{layers: make(map[ir.VersionTag]map[string]TypeDef)}
}

// Define adds td to version v. Defining the same type twice in one
// version is an error.
func (l *Layered) Define(v ir.VersionTag, td TypeDef) error {
	if td.Name == "" {
		return fmt.Errorf("schema %s: type name is required", v)
	}
	if !td.Removed {
		seen := make(map[string]bool, len(td.Fields))
		for i, f := range td.Fields {
			if f.Name == "" {
				return fmt.Errorf("schema %s: %s field %d has no name", v, td.Name, i)
			}
			if seen[f.Name] {
				return fmt.Errorf("schema %s: %s declares field %q twice", v, td.Name, f.Name)
			}
			seen[f.Name] = true
			if !ir.ValidFieldTypes[f.Type] {
				return fmt.Errorf("schema %s: %s field %q has invalid type %q", v, td.Name, f.Name, f.Type)
			}
		}
	}

	layer, ok := l.layers[v]
	if !ok {
		layer = make(map[string]TypeDef)
		l.layers[v] = layer
		l.versions = append(l.versions, v)
		sort.Slice(l.versions, func(i, j int) bool { return l.versions[i].Less(l.versions[j]) })
	}
	if _, dup := layer[td.Name]; dup {
		return fmt.Errorf("schema %s: type %s defined twice", v, td.Name)
	}
	layer[td.Name] = td
	return nil
}

// Fields implements Dictionary.
func (l *Layered) Fields(v ir.VersionTag, typeName string) ([]FieldDef, bool) {
	for i := len(l.versions) - 1; i >= 0; i-- {
		lv := l.versions[i]
		if v.Less(lv) {
			continue
		}
		if td, ok := l.layers[lv][typeName]; ok {
			if td.Removed {
				return nil, false
			}
			return td.Fields, true
		}
	}
	return nil, false
}

// Versions returns the versions that define at least one layer, ascending.
func (l *Layered) Versions() []ir.VersionTag {
	out := make([]ir.VersionTag, len(l.versions))
	copy(out, l.versions)
	return out
}

// Latest returns the newest version that defines a layer, or the zero tag
// when l is empty.
func (l *Layered) Latest() ir.VersionTag {
	if len(l.versions) == 0 {
		return ir.VersionTag{}
	}
	return l.versions[len(l.versions)-1]
}

// Covers reports whether d describes layouts at v. A dictionary that knows
// its latest version covers nothing newer; any other non-nil dictionary
// covers every version.
func Covers(d Dictionary, v ir.VersionTag) bool {
	if d == nil {
		return false
	}
	if lv, ok := d.(interface{ Latest() ir.VersionTag }); ok {
		latest := lv.Latest()
		return !latest.IsZero() && !latest.Less(v)
	}
	return true
}

// Types returns the names of every type that exists at v, sorted.
func (l *Layered) Types(v ir.VersionTag) []string {
	live := make(map[string]bool)
	for _, lv := range l.versions {
		if v.Less(lv) {
			break
		}
		for name, td := range l.layers[lv] {
			live[name] = !td.Removed
		}
	}
	var out []string
	for name, ok := range live {
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Overlay copies every layer of o into l. A type defined by both at the same
// version takes o's layout.
func (l *Layered) Overlay(o *Layered) {
	for _, v := range o.versions {
		for name, td := range o.layers[v] {
			if _, ok := l.layers[v]; ok {
				delete(l.layers[v], name)
			}
			// Define only fails on malformed or duplicate input; o was
			// validated when it was built and the duplicate was removed.
			_ = l.Define(v, td)
		}
	}
}
