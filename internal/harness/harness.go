package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/roach88/osversion/internal/catalog"
	"github.com/roach88/osversion/internal/engine"
	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/osm"
	"github.com/roach88/osversion/internal/store"
)

// Handles minted by split and merge rules during a scenario start with
// this prefix: {0000beef-0000-4000-8000-000000000001}, ...
const generatedPrefix = 0xbeef

// Harness runs scenarios against one catalog.
type Harness struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New creates a harness. Logs are discarded unless logger is non-nil.
func New(cat *catalog.Catalog, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{catalog: cat, logger: logger}
}

// Run executes a scenario against the embedded catalog.
func Run(scenario *Scenario) (*Result, error) {
	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return New(cat, nil).Run(context.Background(), scenario)
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory log for isolation.
//
// Execution flow:
// 1. Decode the model
// 2. Translate it to the target with a deterministic handle generator
// 3. Record the run and read its report back
// 4. Evaluate expectations and assertions
//
// The returned error reports harness failures (unreadable model, log
// errors); translation failures are part of the result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	ws, err := osm.Decode(strings.NewReader(scenario.Model), h.catalog.Dictionary)
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	target := h.catalog.Latest()
	if scenario.Target != "" {
		if target, err = ir.ParseVersion(scenario.Target); err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
	}

	eng := h.engine(scenario.Strict)
	result := NewResult()

	out, rep, err := eng.Translate(ctx, ws, target)
	if scenario.Expect.Error != "" {
		checkError(result, scenario.Expect.Error, err)
		return result, nil
	}
	if err != nil {
		result.Err = err
		result.AddError(fmt.Sprintf("translation failed: %v", err))
		return result, nil
	}
	result.Output = out

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	run, err := st.RecordRun(ctx, ir.MustDigest(ws), ir.MustDigest(out), rep)
	if err != nil {
		return nil, err
	}
	recorded, err := st.ReadReport(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if !reflect.DeepEqual(rep, recorded) {
		result.AddError("report read back from the translation log differs from the engine's report")
	}
	result.RunID = run.ID
	result.Report = recorded

	checkExpect(result, scenario.Expect)
	actx := &AssertionContext{Ctx: ctx, Engine: eng, Target: target}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) engine(strict bool) *engine.Engine {
	return engine.New(h.catalog.Registry, h.catalog.Dictionary,
		engine.WithHandleGenerator(&engine.SequentialGenerator{Prefix: generatedPrefix}),
		engine.WithLogger(h.logger),
		engine.WithWorkers(2),
		engine.WithStrict(strict),
	)
}

func checkError(result *Result, want string, err error) {
	result.Err = err
	if err == nil {
		result.AddError(fmt.Sprintf("expected error %s, translation succeeded", want))
		return
	}
	code, ok := ir.CodeOf(err)
	if !ok {
		result.AddError(fmt.Sprintf("expected error %s, got untyped error: %v", want, err))
		return
	}
	if string(code) != want {
		result.AddError(fmt.Sprintf("expected error %s, got %s: %v", want, code, err))
	}
}

func checkExpect(result *Result, want Expect) {
	if want.Version != "" && result.Output.Version != ir.MustParseVersion(want.Version) {
		result.AddError(fmt.Sprintf("expected version %s, got %s", want.Version, result.Output.Version))
	}
	count := func(name string, want *int, got int) {
		if want != nil && *want != got {
			result.AddError(fmt.Sprintf("expected %s=%d, got %d", name, *want, got))
		}
	}
	rep := result.Report
	count("added", want.Added, rep.Added)
	count("removed", want.Removed, rep.Removed)
	count("modified", want.Modified, rep.Modified)
	count("warnings", want.Warnings, len(rep.Warnings()))
}
