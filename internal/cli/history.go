package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/report"
	"github.com/roach88/osversion/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string // translation log (required)
	Input string // only runs that started from this model
}

// HistoryResult lists recorded runs.
type HistoryResult struct {
	Runs []store.Run `json:"runs"`
}

// WriteText renders one run per line, oldest first.
func (r *HistoryResult) WriteText(w io.Writer) error {
	if len(r.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	for _, run := range r.Runs {
		if _, err := fmt.Fprintf(w, "%4d  %s  %s -> %s  added=%d removed=%d modified=%d warnings=%d\n",
			run.Seq, shortID(run.ID), run.From, run.To,
			run.Added, run.Removed, run.Modified, run.Warnings); err != nil {
			return err
		}
	}
	return nil
}

// RunDetail is one run with its recorded report.
type RunDetail struct {
	Run    store.Run      `json:"run"`
	Report *report.Report `json:"report"`
}

// WriteText renders the run header followed by the report.
func (d *RunDetail) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "run %s (seq %d)\ninput  %s\noutput %s\n\n",
		d.Run.ID, d.Run.Seq, d.Run.InputDigest, d.Run.OutputDigest); err != nil {
		return err
	}
	return d.Report.WriteText(w)
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded translations",
		Long: `List the translations recorded in a log, oldest first, or show the full
report of one run. A run may be named by any unique prefix of its id.

Examples:
  osversion history --db runs.db
  osversion history --db runs.db --input model.osm
  osversion history --db runs.db 3f2a9c`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runHistory(cmd, opts, id)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "translation log path (required)")
	cmd.Flags().StringVar(&opts.Input, "input", "", "only runs translating this model")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, id string) error {
	f := opts.formatter(cmd)

	if _, err := os.Stat(opts.DB); err != nil {
		f.Error(ErrCodeNotFound, fmt.Sprintf("translation log not found: %s", opts.DB), nil)
		return WrapExitError(ExitCommandError, "translation log not found", err)
	}
	st, err := store.Open(opts.DB)
	if err != nil {
		f.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open translation log", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if id != "" {
		return showRun(ctx, f, st, id)
	}

	var runs []store.Run
	if opts.Input != "" {
		digest, derr := inputDigest(cmd, opts, f)
		if derr != nil {
			return derr
		}
		runs, err = st.RunsForInput(ctx, digest)
	} else {
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		f.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	return f.Success(&HistoryResult{Runs: runs})
}

// inputDigest decodes the --input model and returns its digest.
func inputDigest(cmd *cobra.Command, opts *HistoryOptions, f *OutputFormatter) (string, error) {
	_, ws, err := loadModel(cmd, opts.RootOptions, f, opts.Input)
	if err != nil {
		return "", err
	}
	digest, err := ir.Digest(ws)
	if err != nil {
		f.Error(ErrCodeDecodeFailed, err.Error(), nil)
		return "", WrapExitError(ExitCommandError, "failed to digest model", err)
	}
	return digest, nil
}

func showRun(ctx context.Context, f *OutputFormatter, st *store.Store, prefix string) error {
	id, err := resolveRunID(ctx, st, prefix)
	if err != nil {
		code := ErrCodeStoreFailed
		if errors.Is(err, store.ErrRunNotFound) {
			code = ErrCodeNotFound
		}
		f.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "run lookup failed", err)
	}

	run, err := st.GetRun(ctx, id)
	if err != nil {
		f.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "run lookup failed", err)
	}
	rep, err := st.ReadReport(ctx, id)
	if err != nil {
		f.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read report", err)
	}
	return f.Success(&RunDetail{Run: run, Report: rep})
}

// resolveRunID expands a unique id prefix to the full run id.
func resolveRunID(ctx context.Context, st *store.Store, prefix string) (string, error) {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, run := range runs {
		if strings.HasPrefix(run.ID, prefix) {
			matches = append(matches, run.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", store.ErrRunNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run id %s is ambiguous: %d runs match", prefix, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
