package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/membercore/integra/internal/integrity"
	"github.com/membercore/integra/internal/record"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &dataFlags{}

	cmd := &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a record and cascade through its delete rules",
		Long: `Delete a record and apply the declared delete rules to every child
collection: RESTRICT blocks the delete while children exist, CASCADE removes
them, SET_NULL clears their reference, PRESERVE leaves them untouched.

The delete is atomic: if any RESTRICT rule blocks it, no record is removed
or modified.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, flags, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&flags.Data, "data", "", "dataset snapshot YAML (required)")
	cmd.Flags().StringVar(&flags.Rules, "rules", "", "rule registry YAML (default: built-in membership rules)")
	cmd.Flags().StringVar(&flags.Now, "now", "", "pin the clock to an RFC 3339 instant")

	return cmd
}

func runDelete(opts *RootOptions, flags *dataFlags, collection, id string, cmd *cobra.Command) error {
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
	reg, err := flags.loadRegistry()
	if err != nil {
		return err
	}
	clock, err := flags.clock()
	if err != nil {
		return err
	}

	exec := integrity.NewExecutor(store, reg, integrity.WithClock(clock))
	result, err := exec.PerformDelete(record.Collection(collection), id)
	if err != nil {
		var ee *integrity.EngineError
		if errors.As(err, &ee) {
			_ = formatter.Error(string(ee.Code), ee.Message, result)
			code := ExitCommandError
			if integrity.IsCascadeRestricted(err) {
				code = ExitFailure
			}
			return NewExitError(code, ee.Message)
		}
		return WrapExitError(ExitCommandError, "delete", err)
	}

	formatter.VerboseLog("deleted %d, updated %d, preserved %d record set(s)",
		len(result.Deleted), len(result.Updated), len(result.Preserved))
	if err := formatter.Success(result); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
