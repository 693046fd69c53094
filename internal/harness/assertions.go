package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/roach88/osversion/internal/engine"
	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
)

// dump renders records and reports in failure messages.
var dump = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Context  any    // Record or report dumped for debugging
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Context != nil {
		fmt.Fprintf(&buf, "\nContext:\n%s", dump.Sdump(e.Context))
	}
	return buf.String()
}

// AssertionContext provides what assertions beyond the result need.
type AssertionContext struct {
	Ctx    context.Context
	Engine *engine.Engine
	Target ir.VersionTag
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertFieldEquals:
		return assertFieldEquals(result.Output, a)
	case AssertRecordCount:
		return assertRecordCount(result.Output, a)
	case AssertRecordAbsent:
		return assertRecordAbsent(result.Output, a)
	case AssertEntryCount:
		return assertEntryCount(result.Report, a)
	case AssertIdempotent:
		return assertIdempotent(result.Output, actx)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertFieldEquals compares the field's text form. An empty value
// matches an empty field.
func assertFieldEquals(ws *ir.Workspace, a Assertion) error {
	r, ok := ws.Find(ir.Handle(a.Handle))
	if !ok {
		return &AssertionError{
			Type:     AssertFieldEquals,
			Expected: fmt.Sprintf("record %s", a.Handle),
			Actual:   "not found in output",
		}
	}
	v, ok := r.Get(a.Field)
	if !ok {
		return &AssertionError{
			Type:     AssertFieldEquals,
			Expected: fmt.Sprintf("field %q on %s %s", a.Field, r.Type, a.Handle),
			Actual:   "no such field",
			Context:  r,
		}
	}
	if v.Text() != a.Value {
		return &AssertionError{
			Type:     AssertFieldEquals,
			Expected: fmt.Sprintf("%s %q = %q", a.Handle, a.Field, a.Value),
			Actual:   fmt.Sprintf("%q (%s)", v.Text(), v.Kind()),
			Context:  r,
		}
	}
	return nil
}

func assertRecordCount(ws *ir.Workspace, a Assertion) error {
	if got := len(ws.OfType(a.RecordType)); got != a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d records of type %s", a.Count, a.RecordType),
			Actual:   fmt.Sprintf("%d records", got),
		}
	}
	return nil
}

func assertRecordAbsent(ws *ir.Workspace, a Assertion) error {
	if r, ok := ws.Find(ir.Handle(a.Handle)); ok {
		return &AssertionError{
			Type:     AssertRecordAbsent,
			Expected: fmt.Sprintf("no record %s", a.Handle),
			Actual:   fmt.Sprintf("found %s", r.Type),
			Context:  r,
		}
	}
	return nil
}

func assertEntryCount(rep *report.Report, a Assertion) error {
	if got := rep.Count(report.Kind(a.Kind)); got != a.Count {
		return &AssertionError{
			Type:     AssertEntryCount,
			Expected: fmt.Sprintf("%d %s entries", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d entries", got),
			Context:  rep.Entries,
		}
	}
	return nil
}

// assertIdempotent translates the output to the same target again.
func assertIdempotent(ws *ir.Workspace, actx *AssertionContext) error {
	again, rep, err := actx.Engine.Translate(actx.Ctx, ws, actx.Target)
	if err != nil {
		return &AssertionError{
			Type:     AssertIdempotent,
			Expected: "second translation succeeds",
			Actual:   err.Error(),
		}
	}
	if !again.Equal(ws) || !rep.Empty() {
		return &AssertionError{
			Type:     AssertIdempotent,
			Expected: "identical workspace and empty report",
			Actual:   fmt.Sprintf("equal=%t entries=%d", again.Equal(ws), len(rep.Entries)),
			Context:  rep,
		}
	}
	return nil
}
