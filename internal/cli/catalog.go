package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/questcore/internal/catalog"
)

// CatalogSummary lists the badges of a valid catalog.
type CatalogSummary struct {
	Dir    string   `json:"dir"`
	Count  int      `json:"count"`
	Badges []string `json:"badges"`
}

// WriteText renders the summary for humans.
func (s CatalogSummary) WriteText(w io.Writer) {
	fmt.Fprintf(w, "✓ %s: %d badge(s)\n", s.Dir, s.Count)
	for _, id := range s.Badges {
		fmt.Fprintf(w, "  %s\n", id)
	}
}

// CatalogErrorDetails locates a catalog error.
type CatalogErrorDetails struct {
	Field  string `json:"field,omitempty"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with CUE badge catalogs",
	}
	cmd.AddCommand(newCatalogValidateCommand(rootOpts))
	return cmd
}

func newCatalogValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <catalog-dir>",
		Short: "Validate a badge catalog",
		Long: `Compile the CUE badge catalog in a directory and report the first error.

Exit codes:
  0 - Catalog is valid
  1 - Catalog has errors
  2 - Directory not found`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogValidate(rootOpts, args[0], cmd)
		},
	}
}

func runCatalogValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	info, err := os.Stat(dir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("catalog directory not found: %s", dir), nil, nil)
	}
	if !info.IsDir() {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("not a directory: %s", dir), nil, nil)
	}

	cat, err := catalog.LoadDir(dir)
	if err != nil {
		var details *CatalogErrorDetails
		var ce *catalog.CompileError
		if errors.As(err, &ce) {
			details = &CatalogErrorDetails{Field: ce.Field}
			if ce.Pos.IsValid() {
				details.File = ce.Pos.Filename()
				details.Line = ce.Pos.Line()
				details.Column = ce.Pos.Column()
			}
		}
		return f.Fail(ExitFailure, ErrCodeCatalog, "invalid catalog", err, details)
	}

	summary := CatalogSummary{Dir: dir, Count: cat.Len(), Badges: []string{}}
	for _, d := range cat.Definitions() {
		summary.Badges = append(summary.Badges, d.ID)
	}
	f.VerboseLog("compiled %d badge(s) from %s", cat.Len(), dir)
	return f.Success(summary)
}
