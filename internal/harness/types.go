package harness

import (
	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Output is the translated workspace; nil when the translation failed.
	Output *ir.Workspace `json:"-"`

	// Report is the report read back from the translation log.
	Report *report.Report `json:"report,omitempty"`

	// RunID identifies the recorded run.
	RunID string `json:"run_id,omitempty"`

	// Err is the translation error, if any.
	Err error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
