package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/membercore/integra/internal/integrity"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &dataFlags{}
	var member string

	cmd := &cobra.Command{
		Use:   "check [balances|subscriptions|payments]",
		Short: "Run consistency checks over a dataset",
		Long: `Run one named consistency check, or all of them when no entity is given.

balances       recorded balance vs sum of completed payments, per member
subscriptions  active/inactive flags vs subscription date windows
payments       recorded status transitions vs the legal transition table

Exit code 1 signals that inconsistencies were found.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := ""
			if len(args) == 1 {
				entity = args[0]
			}
			return runCheck(rootOpts, flags, entity, member, cmd)
		},
	}

	cmd.Flags().StringVar(&flags.Data, "data", "", "dataset snapshot YAML (required)")
	cmd.Flags().StringVar(&flags.Now, "now", "", "pin the clock to an RFC 3339 instant")
	cmd.Flags().StringVar(&member, "member", "", "scope balance/subscription checks to one member")

	return cmd
}

func runCheck(opts *RootOptions, flags *dataFlags, entity, member string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := flags.loadStore()
	if err != nil {
		return err
	}
	clock, err := flags.clock()
	if err != nil {
		return err
	}

	checker := integrity.NewChecker(store, clock)

	if entity == "" {
		full := checker.RunFull()
		if err := formatter.Success(full); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if !full.Consistent {
			return NewExitError(ExitFailure, "dataset has consistency violations")
		}
		return nil
	}

	result, err := checker.Run(integrity.Entity(entity), member)
	if err != nil {
		var ee *integrity.EngineError
		if errors.As(err, &ee) {
			_ = formatter.Error(string(ee.Code), ee.Message, nil)
			return NewExitError(ExitCommandError, ee.Message)
		}
		return WrapExitError(ExitCommandError, "check", err)
	}

	if err := formatter.Success(result); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !result.Consistent() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s check found violations", entity))
	}
	return nil
}
