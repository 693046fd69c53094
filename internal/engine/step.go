package engine

import (
	"golang.org/x/sync/errgroup"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
	"github.com/roach88/osversion/internal/resolve"
	"github.com/roach88/osversion/internal/rewrite"
	"github.com/roach88/osversion/internal/rule"
)

// stepResult is the fresh workspace state produced by one step.
type stepResult struct {
	records  []ir.Record
	entries  []report.Entry
	summary  report.StepSummary
	modified map[ir.Handle]bool
}

// runStep applies one step to records. records is not modified.
func (e *Engine) runStep(step *rule.Step, records []ir.Record) (*stepResult, error) {
	outcomes := make([]rewrite.Outcome, len(records))
	errs := make([]error, len(records))

	// Rewrite: independent records in parallel.
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, r := range records {
		if r.Type == ir.VersionRecordType || !step.Touches(r.Type) {
			outcomes[i] = rewrite.Passthrough(r)
			continue
		}
		if isStructural(step, r.Type) {
			continue
		}
		g.Go(func() error {
			outcomes[i], errs[i] = e.rw.Apply(step, r)
			return nil
		})
	}
	// Errors are kept per record in errs, never returned to the group.
	g.Wait()

	// Splits and merges mint handles, so they run in record order.
	delta := 0
	for i, r := range records {
		if r.Type == ir.VersionRecordType {
			continue
		}
		if st, ok := step.SplitFor(r.Type); ok {
			outcomes[i], errs[i] = e.rw.Split(step, st, r, e.handles.Generate)
			delta += len(outcomes[i].Records) - 1
		}
	}
	for _, te := range step.Types {
		mt, ok := te.(rule.MergeTypes)
		if !ok {
			continue
		}
		for _, grp := range rewrite.Groups(mt, records) {
			members := make([]ir.Record, len(grp.Members))
			for k, idx := range grp.Members {
				members[k] = records[idx]
			}
			first := grp.Members[0]
			outcomes[first], errs[first] = e.rw.Merge(step, mt, members, e.handles.Generate())
			for _, idx := range grp.Members[1:] {
				outcomes[idx] = rewrite.Outcome{Touched: true, Changed: true}
			}
			delta -= len(grp.Members) - 1
		}
	}

	// Lowest failing record wins so errors do not depend on scheduling.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Barrier passed: assemble the fresh state and the remap table.
	table := resolve.NewTable(step.Name())
	next := make([]ir.Record, 0, len(records)+delta)
	res := &stepResult{
		summary:  report.StepSummary{From: step.From, To: step.To},
		modified: make(map[ir.Handle]bool),
	}
	for i, o := range outcomes {
		next = append(next, o.Records...)
		res.entries = append(res.entries, o.Entries...)
		for _, m := range o.Remaps {
			if err := table.Add(m); err != nil {
				return nil, err
			}
		}
		if o.Touched {
			res.summary.Touched++
		}
		if o.Changed {
			res.modified[records[i].Handle] = true
		}
		if len(o.Entries) > 0 {
			e.logger.Debug("record rewritten",
				"step", step.Name(),
				"record_type", records[i].Type,
				"handle", records[i].Handle.String(),
				"entries", len(o.Entries))
		}
	}

	if want := len(records) + delta; len(next) != want {
		return nil, ir.NewInvalidStepError(step.Name(), ir.Record{}, -1,
			"record count %d after step, want %d (%d before, split/merge delta %d)", len(next), want, len(records), delta)
	}

	// Resolve.
	fixed, refEntries, err := resolve.Fixup(next, table)
	if err != nil {
		return nil, err
	}
	for _, re := range refEntries {
		res.modified[re.Handle] = true
	}
	res.entries = append(res.entries, refEntries...)
	res.records = fixed

	before := handleSet(records)
	after := handleSet(fixed)
	res.summary.Records = len(before)
	for h := range after {
		if !before[h] {
			res.summary.Added++
		}
	}
	for h := range before {
		if !after[h] {
			res.summary.Removed++
		}
	}
	for _, en := range res.entries {
		if en.Warning() {
			res.summary.Warnings++
		}
	}
	return res, nil
}

func isStructural(step *rule.Step, typeName string) bool {
	if _, ok := step.SplitFor(typeName); ok {
		return true
	}
	_, ok := step.MergeFor(typeName)
	return ok
}
