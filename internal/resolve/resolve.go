// Package resolve rewrites cross-record references after a step and checks
// that every reference still lands on a record.
//
// Fixup runs once per step, after every record of the step has been
// rewritten, so a reference to a record later in the workspace resolves the
// same way as one to an earlier record.
package resolve

import (
	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
)

// Remap records that handle Old was replaced by New. References follow
// New[0], the primary replacement.
type Remap struct {
	Old ir.Handle
	New []ir.Handle
}

// Primary returns the handle references to Old should point at.
func (r Remap) Primary() ir.Handle {
	if len(r.New) == 0 {
		return ""
	}
	return r.New[0]
}

// Table accumulates one step's handle changes.
// Not safe for concurrent use; the engine fills it after the rewrite barrier.
type Table struct {
	step  string
	remap map[ir.Handle]Remap
}

// NewTable creates an empty table for the named step.
func NewTable(step string) *Table {
	return &Table{step: step, remap: make(map[ir.Handle]Remap)}
}

// Add records a remap. Identity remaps are ignored. Remapping the same handle
// to two different primaries is an authoring error.
func (t *Table) Add(m Remap) error {
	if m.Old == "" || m.Primary() == "" {
		return ir.NewInvalidStepError(t.step, ir.Record{}, -1, "remap needs an old and a new handle")
	}
	if m.Old == m.Primary() {
		return nil
	}
	if prev, ok := t.remap[m.Old]; ok && prev.Primary() != m.Primary() {
		return ir.NewInvalidStepError(t.step, ir.Record{}, -1,
			"handle %s remapped to both %s and %s", m.Old, prev.Primary(), m.Primary())
	}
	t.remap[m.Old] = m
	return nil
}

// Fixup returns records with every reference rewritten through t, plus one
// report entry per rewritten reference. The input slice and its records are
// not modified; only records that change are copied.
//
// Fails with MALFORMED_RECORD on duplicate handles and DANGLING_REFERENCE on
// any reference that does not resolve to a present handle.
func Fixup(records []ir.Record, t *Table) ([]ir.Record, []report.Entry, error) {
	present := make(map[ir.Handle]bool, len(records))
	for _, r := range records {
		if present[r.Handle] {
			return nil, nil, ir.NewMalformedError(t.step, r, -1, "duplicate handle %s", r.Handle)
		}
		present[r.Handle] = true
	}

	out := make([]ir.Record, len(records))
	var entries []report.Entry

	for i, r := range records {
		out[i] = r
		copied := false
		for j, f := range r.Fields {
			ref, ok := f.Value.(ir.Ref)
			if !ok {
				continue
			}
			target := ref.Handle()
			if m, ok := t.remap[target]; ok {
				if !copied {
					out[i] = r.Clone()
					copied = true
				}
				target = m.Primary()
				out[i].Fields[j].Value = ir.Ref(target)
				entries = append(entries, report.Entry{
					Step:       t.step,
					Kind:       report.KindReferenceRemapped,
					Handle:     r.Handle,
					RecordType: r.Type,
					Field:      f.Name,
					Index:      j,
					Old:        ref.Handle().String(),
					New:        target.String(),
				})
			}
			if !present[target] {
				return nil, nil, ir.NewDanglingError(t.step, r, j, target)
			}
		}
	}

	return out, entries, nil
}

// Verify checks that handles are unique and every reference in records
// resolves, without rewriting anything.
func Verify(step string, records []ir.Record) error {
	_, _, err := Fixup(records, NewTable(step))
	return err
}
