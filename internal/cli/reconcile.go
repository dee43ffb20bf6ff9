package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/membercore/integra/internal/integrity"
	"github.com/membercore/integra/internal/record"
	"github.com/membercore/integra/internal/storage"
)

// auditSource yields the audit entries appended during this run.
type auditSource interface {
	AuditLog() []*record.AuditLogEntry
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &dataFlags{}
	var dbPath string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile member balances against completed payments",
		Long: `Recompute every member's balance from completed payments and correct
the records that drifted. Each correction is reported as an adjustment and
logged to the audit trail. Reconciling a consistent dataset is a no-op.

With --db, corrected balances, adjustments and audit entries are also
persisted to a SQLite ledger. A persistence failure skips that member's
correction so the next run retries it; exit code 1 signals partial failure.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(rootOpts, flags, dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&flags.Data, "data", "", "dataset snapshot YAML (required)")
	cmd.Flags().StringVar(&flags.Now, "now", "", "pin the clock to an RFC 3339 instant")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite ledger for persisted balances and adjustments")

	return cmd
}

func runReconcile(opts *RootOptions, flags *dataFlags, dbPath string, cmd *cobra.Command) error {
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

	var recOpts []integrity.ReconcilerOption
	var ledger *storage.Store
	if dbPath != "" {
		ledger, err = storage.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "open ledger", err)
		}
		defer ledger.Close()
		recOpts = append(recOpts, integrity.WithBalanceWriter(ledger.BalanceWriter(cmd.Context())))
	}

	reconciler := integrity.NewReconciler(store, checker, recOpts...)
	result, runErr := reconciler.ReconcileBalances()
	if runErr != nil && !integrity.IsReconciliationWriteFailed(runErr) {
		return WrapExitError(ExitCommandError, "reconcile", runErr)
	}

	if ledger != nil {
		if err := persistReconciliation(cmd, ledger, store, result, clock); err != nil {
			return WrapExitError(ExitCommandError, "persist reconciliation", err)
		}
	}

	formatter.VerboseLog("reconciled %d member balance(s), %d write failure(s)",
		result.Reconciled, len(result.Failures))
	if err := formatter.Success(result); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if runErr != nil {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d balance write(s) failed; rerun to retry", len(result.Failures)))
	}
	return nil
}

// persistReconciliation records this run's adjustments and audit entries in
// the ledger. Balance rows were already upserted through the BalanceWriter.
func persistReconciliation(cmd *cobra.Command, ledger *storage.Store, store auditSource, result *integrity.ReconcileResult, clock integrity.Clock) error {
	ctx := cmd.Context()
	var errs []error
	for _, adj := range result.Adjustments {
		if err := ledger.SaveAdjustment(ctx, adj, clock.Now()); err != nil {
			errs = append(errs, err)
		}
	}
	for _, entry := range store.AuditLog() {
		if err := ledger.AppendAudit(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
