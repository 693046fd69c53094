package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/osversion/internal/ir"
)

// VersionsResult lists what the catalog can translate.
type VersionsResult struct {
	Versions []ir.VersionTag `json:"versions"`
	Latest   ir.VersionTag   `json:"latest"`
	Steps    []string        `json:"steps"`
	Files    []string        `json:"files,omitempty"` // compiled rule files, verbose only
}

// WriteText renders one version per line, latest marked.
func (r *VersionsResult) WriteText(w io.Writer) error {
	for _, v := range r.Versions {
		mark := ""
		if v == r.Latest {
			mark = " (latest)"
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", v, mark); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\n%d step(s):\n", len(r.Steps)); err != nil {
		return err
	}
	for _, s := range r.Steps {
		if _, err := fmt.Fprintf(w, "  %s\n", s); err != nil {
			return err
		}
	}
	for _, file := range r.Files {
		if _, err := fmt.Fprintf(w, "# %s\n", file); err != nil {
			return err
		}
	}
	return nil
}

// NewVersionsCommand creates the versions command.
func NewVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List known schema versions and steps",
		Long: `List the schema versions the catalog can translate between and the
steps that join them. With --rules, overlay files are included.

Examples:
  osversion versions
  osversion versions --rules ./rules --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions(cmd, rootOpts)
		},
	}
	return cmd
}

func runVersions(cmd *cobra.Command, opts *RootOptions) error {
	f := opts.formatter(cmd)

	cat, err := loadCatalog(opts, f)
	if err != nil {
		return err
	}

	versions := cat.Registry.Versions()
	steps := cat.Registry.Steps()
	result := &VersionsResult{
		Versions: versions,
		Latest:   cat.Latest(),
		Steps:    make([]string, len(steps)),
	}
	for i, s := range steps {
		result.Steps[i] = s.Name()
	}
	if opts.Verbose {
		result.Files = cat.Files
	}
	return f.Success(result)
}
