package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/membercore/integra/internal/integrity"
	"github.com/membercore/integra/internal/record"
)

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &dataFlags{}
	var set []string

	cmd := &cobra.Command{
		Use:   "update <collection> <id>",
		Short: "Update a record and cascade through its update rules",
		Long: `Update a record's fields and apply the declared update rules. A primary
key change (--set id=NEW) cascades the new identifier into every child
collection with a CASCADE rule; LOG rules append an audit entry describing
the change.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, flags, args[0], args[1], set, cmd)
		},
	}

	cmd.Flags().StringVar(&flags.Data, "data", "", "dataset snapshot YAML (required)")
	cmd.Flags().StringVar(&flags.Rules, "rules", "", "rule registry YAML (default: built-in membership rules)")
	cmd.Flags().StringVar(&flags.Now, "now", "", "pin the clock to an RFC 3339 instant")
	cmd.Flags().StringArrayVar(&set, "set", nil, "field change as key=value (repeatable)")

	return cmd
}

func runUpdate(opts *RootOptions, flags *dataFlags, collection, id string, set []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	changes, err := parseChanges(set)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse --set", err)
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
	result, err := exec.PerformUpdate(record.Collection(collection), id, changes)
	if err != nil {
		var ee *integrity.EngineError
		if errors.As(err, &ee) {
			_ = formatter.Error(string(ee.Code), ee.Message, nil)
			return NewExitError(ExitCommandError, ee.Message)
		}
		return WrapExitError(ExitCommandError, "update", err)
	}

	formatter.VerboseLog("updated %d record(s), logged %d audit entr(ies)",
		len(result.Updated), len(result.Logged))
	if err := formatter.Success(result); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// parseChanges turns repeated key=value flags into an update map. Values
// stay strings; fields of other types reject them with a merge error.
func parseChanges(set []string) (map[string]any, error) {
	if len(set) == 0 {
		return nil, errors.New("at least one --set key=value is required")
	}
	changes := make(map[string]any, len(set))
	for _, kv := range set {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed change %q: want key=value", kv)
		}
		changes[key] = value
	}
	return changes, nil
}
