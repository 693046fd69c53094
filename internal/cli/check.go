package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/osversion/internal/engine"
	"github.com/roach88/osversion/internal/ir"
)

// CheckResult is the payload of a successful check.
type CheckResult struct {
	Version ir.VersionTag `json:"version"`
	Records int           `json:"records"`
	Latest  ir.VersionTag `json:"latest"`
	Steps   int           `json:"steps"` // steps to reach latest, -1 when unreachable
}

// WriteText renders the check outcome on two lines.
func (r *CheckResult) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "ok: %d records at %s\n", r.Records, r.Version); err != nil {
		return err
	}
	var err error
	switch {
	case r.Steps < 0:
		_, err = fmt.Fprintf(w, "no translation path to %s\n", r.Latest)
	case r.Steps == 0:
		_, err = fmt.Fprintln(w, "already at the latest version")
	default:
		_, err = fmt.Fprintf(w, "%d step(s) to %s\n", r.Steps, r.Latest)
	}
	return err
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <model.osm>",
		Short: "Validate a model without translating it",
		Long: `Validate an OpenStudio model at its own version.

Checks the version record, that every reference resolves, and that every
record of a known type matches its layout.

Exit codes:
  0 - Model is valid
  1 - Model is invalid
  2 - Command error (unreadable model, bad rules, etc.)

Examples:
  osversion check model.osm
  osversion check model.osm --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runCheck(cmd *cobra.Command, opts *RootOptions, modelPath string) error {
	f := opts.formatter(cmd)

	cat, ws, err := loadModel(cmd, opts, f, modelPath)
	if err != nil {
		return err
	}

	eng := engine.New(cat.Registry, cat.Dictionary, engine.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	if err := eng.Check(ws); err != nil {
		return translationFailure(f, err)
	}

	result := &CheckResult{
		Version: ws.Version,
		Records: len(ws.Records),
		Latest:  cat.Latest(),
		Steps:   -1,
	}
	if steps, err := cat.Registry.StepsBetween(ws.Version, result.Latest); err == nil {
		result.Steps = len(steps)
	} else {
		f.VerboseLog("%v", err)
	}
	return f.Success(result)
}
