package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/membercore/integra/internal/harness"
	"github.com/membercore/integra/internal/schema"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var rules string

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run integrity scenarios and print their traces",
		Long: `Execute one or more scenario files against a fresh engine each and print
the resulting traces. Scenarios pin the clock and the id source, so a
scenario's trace is identical across runs and machines.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, rules, args, cmd)
		},
	}

	cmd.Flags().StringVar(&rules, "rules", "", "rule registry YAML (default: built-in membership rules)")

	return cmd
}

func runScenarios(opts *RootOptions, rules string, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var reg *schema.Registry
	if rules != "" {
		loaded, err := schema.LoadRegistry(rules)
		if err != nil {
			return WrapExitError(ExitCommandError, "load rules", err)
		}
		reg = loaded
	}
	runner := harness.NewRunner(reg)

	traces := make([]*harness.Trace, 0, len(paths))
	for _, path := range paths {
		sc, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "load scenario", err)
		}
		formatter.VerboseLog("running scenario %s (%d ops)", sc.Name, len(sc.Ops))

		trace, err := runner.Run(sc)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("scenario %s", sc.Name), err)
		}
		traces = append(traces, trace)
	}

	if formatter.Format == "json" {
		return formatter.Success(traces)
	}
	enc := json.NewEncoder(formatter.Writer)
	enc.SetIndent("", "  ")
	for _, trace := range traces {
		if err := enc.Encode(trace); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
	}
	return nil
}
