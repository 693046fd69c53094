package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
	"github.com/roach88/osversion/internal/resolve"
	"github.com/roach88/osversion/internal/rewrite"
	"github.com/roach88/osversion/internal/rule"
	"github.com/roach88/osversion/internal/schema"
)

// StepSource computes the step chain between two versions.
// Implemented by *registry.Registry.
type StepSource interface {
	StepsBetween(source, target ir.VersionTag) ([]*rule.Step, error)
}

// Engine orchestrates translation steps over a workspace.
type Engine struct {
	steps   StepSource
	dict    schema.Dictionary
	rw      *rewrite.Rewriter
	handles HandleGenerator
	logger  *slog.Logger
	workers int
	strict  bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithWorkers bounds the number of records rewritten concurrently within a
// step. Values below 1 mean 1. Default: runtime.GOMAXPROCS(0).
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithHandleGenerator sets the source of handles for split and merge
// outputs. Default: UUIDGenerator.
func WithHandleGenerator(g HandleGenerator) EngineOption {
	return func(e *Engine) {
		e.handles = g
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStrict validates every record the dictionary knows against the source
// layout before the first step, not only records the steps touch.
func WithStrict(strict bool) EngineOption {
	return func(e *Engine) {
		e.strict = strict
	}
}

// New creates an Engine over a step source and a schema dictionary.
func New(steps StepSource, dict schema.Dictionary, opts ...EngineOption) *Engine {
	e := &Engine{
		steps:   steps,
		dict:    dict,
		rw:      rewrite.New(dict),
		handles: UUIDGenerator{},
		logger:  slog.Default(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Translate returns a copy of ws translated to target together with its
// report. ws is never modified. On error no workspace is returned.
//
// Context is checked between steps; a step runs to completion once started.
func (e *Engine) Translate(ctx context.Context, ws *ir.Workspace, target ir.VersionTag) (*ir.Workspace, *report.Report, error) {
	if ws == nil {
		return nil, nil, errors.New("translate: nil workspace")
	}
	source := ws.Version

	if err := checkVersionRecord(ws); err != nil {
		return nil, nil, err
	}

	if source == target {
		e.logger.Debug("workspace already at target version", "version", target.String())
		return ws.Clone(), report.New(source, target), nil
	}

	steps, err := e.steps.StepsBetween(source, target)
	if err != nil {
		e.logger.Error("no translation chain",
			"from", source.String(),
			"to", target.String(),
			"error", err)
		return nil, nil, err
	}

	if err := resolve.Verify("", ws.Records); err != nil {
		return nil, nil, err
	}
	if e.strict {
		if err := e.validate(source, ws.Records); err != nil {
			return nil, nil, err
		}
	}

	e.logger.Info("translation starting",
		"from", source.String(),
		"to", target.String(),
		"steps", len(steps),
		"records", len(ws.Records))

	rep := report.New(source, target)
	modified := make(map[ir.Handle]bool)
	cur := ws.Clone().Records

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("translate: stopped before step %s: %w", step.Name(), err)
		}

		res, err := e.runStep(step, cur)
		if err != nil {
			e.logger.Error("translation failed",
				"step", step.Name(),
				"error", err)
			return nil, nil, err
		}

		for h := range res.modified {
			modified[h] = true
		}
		rep.Steps = append(rep.Steps, res.summary)
		rep.Entries = append(rep.Entries, res.entries...)
		cur = res.records

		e.logger.Info("step applied",
			"step", step.Name(),
			"records", res.summary.Records,
			"touched", res.summary.Touched,
			"added", res.summary.Added,
			"removed", res.summary.Removed,
			"warnings", res.summary.Warnings)
	}

	out := &ir.Workspace{Version: source, Records: cur}
	out.StampVersion(target)
	countRecords(rep, ws.Records, out.Records, modified)

	e.logger.Info("translation complete",
		"from", source.String(),
		"to", target.String(),
		"added", rep.Added,
		"removed", rep.Removed,
		"modified", rep.Modified,
		"warnings", len(rep.Warnings()))

	return out, rep, nil
}

// checkVersionRecord requires exactly one version record agreeing with the
// workspace's version tag.
func checkVersionRecord(ws *ir.Workspace) error {
	recorded, ok, err := ws.RecordedVersion()
	if err != nil {
		return &ir.TranslationError{
			Code:       ir.ErrCodeMalformedRecord,
			Message:    err.Error(),
			RecordType: ir.VersionRecordType,
			FieldIndex: -1,
		}
	}
	if !ok {
		return &ir.TranslationError{
			Code:       ir.ErrCodeMalformedRecord,
			Message:    "workspace has no " + ir.VersionRecordType + " record",
			RecordType: ir.VersionRecordType,
			FieldIndex: -1,
		}
	}
	if recorded != ws.Version {
		return &ir.TranslationError{
			Code:       ir.ErrCodeMalformedRecord,
			Message:    fmt.Sprintf("version record says %s but workspace is tagged %s", recorded, ws.Version),
			RecordType: ir.VersionRecordType,
			FieldIndex: 0,
		}
	}
	return nil
}

// Check validates ws at its own version without translating it: the
// version record, reference integrity and, for every type the dictionary
// declares, the record layout. It is the input check Translate runs in
// strict mode.
func (e *Engine) Check(ws *ir.Workspace) error {
	if ws == nil {
		return errors.New("check: nil workspace")
	}
	if err := checkVersionRecord(ws); err != nil {
		return err
	}
	if err := resolve.Verify("", ws.Records); err != nil {
		return err
	}
	return e.validate(ws.Version, ws.Records)
}

// validate checks every dictionary-known record against the layout at v.
// Nothing is checked at a version newer than the dictionary.
func (e *Engine) validate(v ir.VersionTag, records []ir.Record) error {
	if !schema.Covers(e.dict, v) {
		return nil
	}
	for _, r := range records {
		if r.Type == ir.VersionRecordType {
			continue
		}
		defs, ok := e.dict.Fields(v, r.Type)
		if !ok {
			continue
		}
		if idx, err := schema.Check(defs, r); err != nil {
			return ir.NewMalformedError("", r, idx, "%v", err)
		}
	}
	return nil
}

// countRecords fills the report's totals from the handle sets before and
// after translation. The version record is not counted.
func countRecords(rep *report.Report, before, after []ir.Record, modified map[ir.Handle]bool) {
	in := handleSet(before)
	out := handleSet(after)
	for h := range out {
		if !in[h] {
			rep.Added++
		} else if modified[h] {
			rep.Modified++
		}
	}
	for h := range in {
		if !out[h] {
			rep.Removed++
		}
	}
}

func handleSet(records []ir.Record) map[ir.Handle]bool {
	set := make(map[ir.Handle]bool, len(records))
	for _, r := range records {
		if r.Type != ir.VersionRecordType {
			set[r.Handle] = true
		}
	}
	return set
}
