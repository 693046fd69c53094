package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/osversion/internal/catalog"
	"github.com/roach88/osversion/internal/engine"
	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/osm"
	"github.com/roach88/osversion/internal/report"
	"github.com/roach88/osversion/internal/store"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Target  string // target version, "" for the latest the catalog reaches
	Output  string // output model path, "" for stdout
	DB      string // translation log, "" to skip recording
	Workers int    // 0 for runtime.GOMAXPROCS
	Strict  bool
}

// TranslateResult is the payload of a successful translation.
type TranslateResult struct {
	Report *report.Report `json:"report"`
	Output string         `json:"output,omitempty"` // path the model was written to
	Model  string         `json:"model,omitempty"`  // translated model, JSON output without --output only
}

// WriteText renders the report and where the model went.
func (r *TranslateResult) WriteText(w io.Writer) error {
	if err := r.Report.WriteText(w); err != nil {
		return err
	}
	if r.Output != "" {
		_, err := fmt.Fprintf(w, "wrote %s\n", r.Output)
		return err
	}
	return nil
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <model.osm>",
		Short: "Translate a model to a newer schema version",
		Long: `Translate an OpenStudio model forward to a target schema version.

The model is read from the file argument, or from stdin when it is "-".
The translated model is written to --output, or to stdout. When the model
goes to stdout in text format, the report goes to stderr.

Exit codes:
  0 - Translation succeeded
  1 - Translation failed (no path, malformed record, dangling reference, ...)
  2 - Command error (unreadable model, bad rules, etc.)

Examples:
  osversion translate model.osm -o model_3_11_0.osm
  osversion translate model.osm --target 3.10.1 --db runs.db
  osversion translate - < model.osm > out.osm`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "target version (default: latest known)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output model file (default: stdout)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record the run in this translation log")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "records rewritten concurrently per step (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "validate every known record before translating")

	return cmd
}

func runTranslate(cmd *cobra.Command, opts *TranslateOptions, modelPath string) error {
	f := opts.formatter(cmd)
	if opts.Format == "text" && opts.Output == "" {
		// Model owns stdout
		f.Writer = cmd.ErrOrStderr()
	}
	logger := opts.Logger(cmd.ErrOrStderr())

	cat, ws, err := loadModel(cmd, opts.RootOptions, f, modelPath)
	if err != nil {
		return err
	}

	target := cat.Latest()
	if opts.Target != "" {
		if target, err = ir.ParseVersion(opts.Target); err != nil {
			f.Error(ErrCodeVersion, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid target", err)
		}
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	engOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithStrict(opts.Strict),
	}
	if opts.Workers > 0 {
		engOpts = append(engOpts, engine.WithWorkers(opts.Workers))
	}
	eng := engine.New(cat.Registry, cat.Dictionary, engOpts...)

	out, rep, err := eng.Translate(ctx, ws, target)
	if err != nil {
		return translationFailure(f, err)
	}

	var model bytes.Buffer
	if err := osm.Encode(&model, out); err != nil {
		f.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to encode model", err)
	}

	result := &TranslateResult{Report: rep}
	switch {
	case opts.Output != "":
		if err := os.WriteFile(opts.Output, model.Bytes(), 0644); err != nil {
			f.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write model", err)
		}
		result.Output = opts.Output
	case opts.Format == "json":
		result.Model = model.String()
	default:
		if _, err := cmd.OutOrStdout().Write(model.Bytes()); err != nil {
			return WrapExitError(ExitCommandError, "failed to write model", err)
		}
	}

	var runID string
	if opts.DB != "" {
		run, err := recordRun(ctx, opts.DB, ws, out, rep)
		if err != nil {
			f.Error(ErrCodeStoreFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		runID = run.ID
		logger.Debug("run recorded", "run_id", run.ID, "seq", run.Seq)
	}

	return f.SuccessWithRun(result, runID)
}

// loadModel loads the catalog and decodes the model at path ("-" for
// stdin). Failures are reported through f and returned as command errors.
func loadModel(cmd *cobra.Command, opts *RootOptions, f *OutputFormatter, path string) (*catalog.Catalog, *ir.Workspace, error) {
	cat, err := loadCatalog(opts, f)
	if err != nil {
		return nil, nil, err
	}

	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		file, err := os.Open(path)
		if err != nil {
			f.Error(ErrCodeNotFound, err.Error(), nil)
			return nil, nil, WrapExitError(ExitCommandError, "failed to open model", err)
		}
		defer file.Close()
		r = file
	}

	ws, err := osm.Decode(r, cat.Dictionary)
	if err != nil {
		f.Error(ErrCodeDecodeFailed, err.Error(), nil)
		return nil, nil, WrapExitError(ExitCommandError, "failed to read model", err)
	}
	f.VerboseLog("read %d records at %s from %s", len(ws.Records), ws.Version, path)
	return cat, ws, nil
}

// loadCatalog loads the catalog for opts.Rules, reporting failures through f.
func loadCatalog(opts *RootOptions, f *OutputFormatter) (*catalog.Catalog, error) {
	cat, err := LoadCatalog(opts.Rules)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			f.Error(loadErr.Code, loadErr.Message, nil)
		}
		return nil, WrapExitError(ExitCommandError, "failed to load rules", err)
	}
	f.VerboseLog("compiled %d rule file(s)", len(cat.Files))
	return cat, nil
}

// translationFailure reports a typed translation error with its code.
func translationFailure(f *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var details any
	var te *ir.TranslationError
	if errors.As(err, &te) {
		code = string(te.Code)
		details = map[string]any{
			"step":        te.Step,
			"handle":      te.Handle,
			"record_type": te.RecordType,
			"field_index": te.FieldIndex,
		}
	}
	f.Error(code, err.Error(), details)
	return WrapExitError(ExitFailure, "translation failed", err)
}

func recordRun(ctx context.Context, dbPath string, in, out *ir.Workspace, rep *report.Report) (store.Run, error) {
	inDigest, err := ir.Digest(in)
	if err != nil {
		return store.Run{}, err
	}
	outDigest, err := ir.Digest(out)
	if err != nil {
		return store.Run{}, err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return store.Run{}, err
	}
	defer st.Close()

	return st.RecordRun(ctx, inDigest, outDigest, rep)
}

// signalContext returns the command context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
