package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/membercore/integra/internal/schema"
)

// ValidationResult holds registry validation results.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <registry.yaml>",
		Short: "Validate a rule registry file",
		Long: `Validate a rule registry YAML file against the registry schema and the
engine's rule constraints: known collections, declared reference fields,
legal actions per rule kind, and no duplicate rules.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := schema.LoadRegistry(path); err != nil {
		if formatter.Format == "json" {
			_ = formatter.Success(ValidationResult{Valid: false, Error: err.Error()})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Registry invalid")
			fmt.Fprintf(formatter.Writer, "  %v\n", err)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("registry invalid: %v", err))
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Registry valid")
	return nil
}
