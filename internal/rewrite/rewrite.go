// Package rewrite applies one translation step to individual records.
//
// Field edits are executed as a target-index-ordered plan: deletions and
// value edits address the source layout, insertions address the layout left
// after deletions. Authors therefore write each edit against the schema it
// was defined for, never against a layout shifted by other edits in the
// same step.
package rewrite

import (
	"sort"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
	"github.com/roach88/osversion/internal/resolve"
	"github.com/roach88/osversion/internal/rule"
	"github.com/roach88/osversion/internal/schema"
)

// Outcome is the result of rewriting one record (or one merge group).
type Outcome struct {
	// Records replaces the input record(s) at its position. Empty for
	// records consumed by a merge whose output lands elsewhere.
	Records []ir.Record

	// Remaps lists handle changes for the resolver.
	Remaps []resolve.Remap

	// Entries lists report entries in field order.
	Entries []report.Entry

	// Touched is true when the step has rules for the record's type.
	Touched bool

	// Changed is true when the output differs from the input.
	Changed bool
}

// Rewriter applies steps to records against a schema dictionary.
// Stateless and safe for concurrent use.
type Rewriter struct {
	dict schema.Dictionary
}

// New creates a Rewriter.
func New(dict schema.Dictionary) *Rewriter {
	return &Rewriter{dict: dict}
}

// Passthrough wraps r in an untouched outcome.
func Passthrough(r ir.Record) Outcome {
	return Outcome{Records: []ir.Record{r}}
}

// Apply runs step's field edits and type rename on r. Records whose type the
// step does not name pass through unchanged. Split and merge types must go
// through Split and Merge instead.
func (rw *Rewriter) Apply(step *rule.Step, r ir.Record) (Outcome, error) {
	if !step.Touches(r.Type) {
		return Passthrough(r), nil
	}
	if _, ok := step.SplitFor(r.Type); ok {
		return Outcome{}, ir.NewInvalidStepError(step.Name(), r, -1, "split type %s applied as a field edit", r.Type)
	}
	if _, ok := step.MergeFor(r.Type); ok {
		return Outcome{}, ir.NewInvalidStepError(step.Name(), r, -1, "merge type %s applied as a field edit", r.Type)
	}

	pre, err := rw.precheck(step, r)
	if err != nil {
		return Outcome{}, err
	}

	newType := r.Type
	if to, ok := step.RenameFor(r.Type); ok {
		newType = to
	}
	post, ok := rw.dict.Fields(step.To, newType)
	if !ok {
		return Outcome{}, ir.NewInvalidStepError(step.Name(), r, -1, "type %s is not declared at %s", newType, step.To)
	}

	p, err := buildPlan(step, r, pre, step.Records[r.Type])
	if err != nil {
		return Outcome{}, err
	}

	out, entries, err := p.execute(step, r, pre)
	if err != nil {
		return Outcome{}, err
	}
	out.Type = newType

	if newType != r.Type {
		entries = append(entries, report.Entry{
			Step:       step.Name(),
			Kind:       report.KindTypeRenamed,
			Handle:     r.Handle,
			RecordType: r.Type,
			Index:      -1,
			Old:        r.Type,
			New:        newType,
		})
	}

	if err := postcheck(step, post, out); err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Records: []ir.Record{out},
		Entries: entries,
		Touched: true,
		Changed: !out.Equal(r),
	}, nil
}

// precheck validates r against the source layout of its type.
func (rw *Rewriter) precheck(step *rule.Step, r ir.Record) ([]schema.FieldDef, error) {
	pre, ok := rw.dict.Fields(step.From, r.Type)
	if !ok {
		return nil, ir.NewInvalidStepError(step.Name(), r, -1, "type %s is not declared at %s", r.Type, step.From)
	}
	if idx, err := schema.Check(pre, r); err != nil {
		return nil, ir.NewMalformedError(step.Name(), r, idx, "%v", err)
	}
	return pre, nil
}

// postcheck validates a rewritten record against its target layout. A
// mismatch here is a rule authoring error, not a data error.
func postcheck(step *rule.Step, post []schema.FieldDef, out ir.Record) error {
	if idx, err := schema.Check(post, out); err != nil {
		return ir.NewInvalidStepError(step.Name(), out, idx, "output does not match %s layout at %s: %v", out.Type, step.To, err)
	}
	for i, d := range post {
		if out.Fields[i].Name != d.Name {
			return ir.NewInvalidStepError(step.Name(), out, i,
				"output field %d is %q, %s declares %q at %s", i, out.Fields[i].Name, out.Type, d.Name, step.To)
		}
	}
	return nil
}

// plan is the resolved form of one type's field edits.
type plan struct {
	deleted map[int]rule.DeleteField
	renames map[int]rule.RenameField
	retypes map[int]rule.RetypeField
	remaps  map[int]rule.RemapEnumValue
	inserts []rule.InsertField
}

func buildPlan(step *rule.Step, r ir.Record, pre []schema.FieldDef, edits []rule.FieldEdit) (*plan, error) {
	p := &plan{
		deleted: make(map[int]rule.DeleteField),
		renames: make(map[int]rule.RenameField),
		retypes: make(map[int]rule.RetypeField),
		remaps:  make(map[int]rule.RemapEnumValue),
	}

	inRange := func(i int) bool { return i >= 0 && i < len(pre) }

	for _, fe := range edits {
		switch e := fe.(type) {
		case rule.InsertField:
			p.inserts = append(p.inserts, e)
		case rule.DeleteField:
			if !inRange(e.Index) {
				return nil, ir.NewInvalidStepError(step.Name(), r, e.Index, "%s: index out of range for %d fields", e, len(pre))
			}
			if e.Name != "" && pre[e.Index].Name != e.Name {
				return nil, ir.NewInvalidStepError(step.Name(), r, e.Index, "%s: field %d is %q", e, e.Index, pre[e.Index].Name)
			}
			p.deleted[e.Index] = e
		case rule.RenameField:
			idx := schema.IndexOf(pre, e.From)
			if idx < 0 {
				return nil, ir.NewInvalidStepError(step.Name(), r, -1, "%s: no such field at %s", e, step.From)
			}
			p.renames[idx] = e
		case rule.RetypeField:
			if !inRange(e.Index) {
				return nil, ir.NewInvalidStepError(step.Name(), r, e.Index, "%s: index out of range for %d fields", e, len(pre))
			}
			p.retypes[e.Index] = e
		case rule.RemapEnumValue:
			if !inRange(e.Index) {
				return nil, ir.NewInvalidStepError(step.Name(), r, e.Index, "%s: index out of range for %d fields", e, len(pre))
			}
			p.remaps[e.Index] = e
		default:
			return nil, ir.NewInvalidStepError(step.Name(), r, -1, "unknown field edit %T", fe)
		}
	}

	for idx := range p.renames {
		if _, ok := p.deleted[idx]; ok {
			return nil, ir.NewInvalidStepError(step.Name(), r, idx, "field %d is both renamed and deleted", idx)
		}
	}

	sort.Slice(p.inserts, func(i, j int) bool { return p.inserts[i].Index < p.inserts[j].Index })
	return p, nil
}

// execute builds the output field list and its report entries.
func (p *plan) execute(step *rule.Step, r ir.Record, pre []schema.FieldDef) (ir.Record, []report.Entry, error) {
	n := len(pre) - len(p.deleted) + len(p.inserts)
	reserved := make(map[int]rule.InsertField, len(p.inserts))
	for _, ins := range p.inserts {
		if ins.Index >= n {
			return ir.Record{}, nil, ir.NewInvalidStepError(step.Name(), r, ins.Index,
				"%s: target index out of range for %d fields", ins, n)
		}
		reserved[ins.Index] = ins
	}

	// Map each surviving source field to the next free target slot.
	targetOf := make(map[int]int, len(pre))
	slot := 0
	for i := range pre {
		if _, gone := p.deleted[i]; gone {
			continue
		}
		for {
			if _, taken := reserved[slot]; !taken {
				break
			}
			slot++
		}
		targetOf[i] = slot
		slot++
	}

	src := rule.NewSource(r, schema.Names(pre))
	out := ir.Record{Type: r.Type, Handle: r.Handle, Fields: make([]ir.Field, n)}
	entry := func(kind report.Kind, field string, index int, from, to string) report.Entry {
		return report.Entry{
			Step:       step.Name(),
			Kind:       kind,
			Handle:     r.Handle,
			RecordType: r.Type,
			Field:      field,
			Index:      index,
			Old:        from,
			New:        to,
		}
	}

	var entries []report.Entry
	for i := range pre {
		if _, gone := p.deleted[i]; gone {
			entries = append(entries, entry(report.KindFieldDeleted, pre[i].Name, i, r.Fields[i].Value.Text(), ""))
		}
	}

	sourceAt := make(map[int]int, len(targetOf))
	for i, j := range targetOf {
		sourceAt[j] = i
	}

	for j := 0; j < n; j++ {
		if ins, ok := reserved[j]; ok {
			v, err := insertValue(ins, src)
			if err != nil {
				return ir.Record{}, nil, ir.NewInvalidStepError(step.Name(), r, j, "%s: %v", ins, err)
			}
			out.Fields[j] = ir.F(ins.Name, v)
			entries = append(entries, entry(report.KindFieldInserted, ins.Name, j, "", v.Text()))
			continue
		}

		i := sourceAt[j]
		name := pre[i].Name
		v := r.Fields[i].Value

		if rn, ok := p.renames[i]; ok {
			name = rn.To
			entries = append(entries, entry(report.KindFieldRenamed, rn.To, j, rn.From, rn.To))
		}

		if rt, ok := p.retypes[i]; ok {
			coerce := rt.Coerce
			if coerce == nil {
				coerce = ir.Coerce
			}
			nv, err := coerce(v, rt.To)
			if err != nil {
				return ir.Record{}, nil, ir.NewMalformedError(step.Name(), r, i, "%s: %v", rt, err)
			}
			if !ir.ValuesEqual(v, nv) {
				entries = append(entries, entry(report.KindFieldRetyped, name, j, v.Text(), nv.Text()))
			}
			v = nv
		}

		if rm, ok := p.remaps[i]; ok && v.Kind() != ir.KindEmpty {
			tok := v.Text()
			if to, mapped := rm.Map[tok]; mapped {
				v = ir.Token(to)
				entries = append(entries, entry(report.KindEnumRemapped, name, j, tok, to))
			} else {
				entries = append(entries, entry(report.KindUnmappedEnumValue, name, j, tok, tok))
			}
		}

		out.Fields[j] = ir.F(name, v)
	}

	return out, entries, nil
}

func insertValue(ins rule.InsertField, src rule.Source) (ir.Value, error) {
	if ins.Compute != nil {
		v, err := ins.Compute(src)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return ir.Empty{}, nil
		}
		return v, nil
	}
	if ins.Default == nil {
		return ir.Empty{}, nil
	}
	return ins.Default, nil
}
