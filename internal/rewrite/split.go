package rewrite

import (
	"strings"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
	"github.com/roach88/osversion/internal/resolve"
	"github.com/roach88/osversion/internal/rule"
	"github.com/roach88/osversion/internal/schema"
)

// Split replaces r with the records edit.Rule produces. References to r
// follow the first output.
func (rw *Rewriter) Split(step *rule.Step, edit rule.SplitType, r ir.Record, newHandle rule.NewHandleFunc) (Outcome, error) {
	if _, err := rw.precheck(step, r); err != nil {
		return Outcome{}, err
	}

	outs, err := edit.Rule(r.Clone(), newHandle)
	if err != nil {
		return Outcome{}, ir.NewInvalidStepError(step.Name(), r, -1, "%s: %v", edit, err)
	}
	if len(outs) == 0 {
		return Outcome{}, ir.NewInvalidStepError(step.Name(), r, -1, "%s: rule produced no records", edit)
	}

	allowed := make(map[string]bool, len(edit.Into))
	for _, t := range edit.Into {
		allowed[t] = true
	}

	seen := make(map[ir.Handle]bool, len(outs))
	news := make([]ir.Handle, len(outs))
	parts := make([]string, len(outs))
	for i, out := range outs {
		if !allowed[out.Type] {
			return Outcome{}, ir.NewInvalidStepError(step.Name(), r, -1, "%s: produced undeclared type %s", edit, out.Type)
		}
		if out.Handle.IsEmpty() || seen[out.Handle] {
			return Outcome{}, ir.NewInvalidStepError(step.Name(), r, -1, "%s: output %d has an empty or repeated handle", edit, i)
		}
		if i > 0 && out.Handle == r.Handle {
			return Outcome{}, ir.NewInvalidStepError(step.Name(), r, -1, "%s: only the primary output may keep the source handle", edit)
		}
		seen[out.Handle] = true
		if err := rw.conform(step, out); err != nil {
			return Outcome{}, err
		}
		news[i] = out.Handle
		parts[i] = out.Type + " " + out.Handle.String()
	}

	o := Outcome{
		Records: outs,
		Touched: true,
		Changed: true,
		Entries: []report.Entry{{
			Step:       step.Name(),
			Kind:       report.KindRecordSplit,
			Handle:     r.Handle,
			RecordType: r.Type,
			Index:      -1,
			Old:        r.Type + " " + r.Handle.String(),
			New:        strings.Join(parts, ", "),
		}},
	}
	if news[0] != r.Handle {
		o.Remaps = []resolve.Remap{{Old: r.Handle, New: news}}
	}
	return o, nil
}

// Group is a set of records merged together, as indices into the step input
// in file order.
type Group struct {
	Key     string
	Members []int
}

// Groups partitions the records of edit's source types by correlation key.
// Groups are ordered by their first member. A record without a key forms a
// group of its own.
func Groups(edit rule.MergeTypes, records []ir.Record) []Group {
	sources := make(map[string]bool, len(edit.From))
	for _, t := range edit.From {
		sources[t] = true
	}

	var groups []Group
	byKey := make(map[string]int)
	for i, r := range records {
		if !sources[r.Type] {
			continue
		}
		key, ok := edit.Key(r)
		if !ok {
			groups = append(groups, Group{Members: []int{i}})
			continue
		}
		if g, exists := byKey[key]; exists {
			groups[g].Members = append(groups[g].Members, i)
			continue
		}
		byKey[key] = len(groups)
		groups = append(groups, Group{Key: key, Members: []int{i}})
	}
	return groups
}

// Merge folds group into one record with handle h. Every consumed handle is
// remapped to h.
func (rw *Rewriter) Merge(step *rule.Step, edit rule.MergeTypes, group []ir.Record, h ir.Handle) (Outcome, error) {
	if len(group) == 0 {
		return Outcome{}, ir.NewInvalidStepError(step.Name(), ir.Record{}, -1, "%s: empty merge group", edit)
	}

	clones := make([]ir.Record, len(group))
	olds := make([]string, len(group))
	for i, r := range group {
		if _, err := rw.precheck(step, r); err != nil {
			return Outcome{}, err
		}
		clones[i] = r.Clone()
		olds[i] = r.Handle.String()
	}

	out, err := edit.Rule(clones, h)
	if err != nil {
		return Outcome{}, ir.NewInvalidStepError(step.Name(), group[0], -1, "%s: %v", edit, err)
	}
	if out.Handle.IsEmpty() {
		out.Handle = h
	}
	if out.Handle != h {
		return Outcome{}, ir.NewInvalidStepError(step.Name(), group[0], -1, "%s: output must carry handle %s", edit, h)
	}
	if out.Type != edit.Into {
		return Outcome{}, ir.NewInvalidStepError(step.Name(), group[0], -1, "%s: produced type %s", edit, out.Type)
	}
	if err := rw.conform(step, out); err != nil {
		return Outcome{}, err
	}

	o := Outcome{
		Records: []ir.Record{out},
		Touched: true,
		Changed: true,
		Entries: []report.Entry{{
			Step:       step.Name(),
			Kind:       report.KindRecordMerged,
			Handle:     h,
			RecordType: out.Type,
			Index:      -1,
			Old:        strings.Join(olds, ", "),
			New:        h.String(),
		}},
	}
	for _, r := range group {
		o.Remaps = append(o.Remaps, resolve.Remap{Old: r.Handle, New: []ir.Handle{h}})
	}
	return o, nil
}

// conform checks a rule-built record against its target layout.
func (rw *Rewriter) conform(step *rule.Step, out ir.Record) error {
	post, ok := rw.dict.Fields(step.To, out.Type)
	if !ok {
		return ir.NewInvalidStepError(step.Name(), out, -1, "type %s is not declared at %s", out.Type, step.To)
	}
	return postcheck(step, post, out)
}

// Layout builds a record of typeName whose fields follow defs, taking values
// by name from vals and falling back to each field's default. Rule bodies
// use it to assemble split and merge outputs.
func Layout(typeName string, h ir.Handle, defs []schema.FieldDef, vals map[string]ir.Value) ir.Record {
	r := ir.Record{Type: typeName, Handle: h, Fields: make([]ir.Field, len(defs))}
	for i, d := range defs {
		v, ok := vals[d.Name]
		if !ok || v == nil {
			v = d.DefaultValue()
		}
		r.Fields[i] = ir.F(d.Name, v)
	}
	return r
}
