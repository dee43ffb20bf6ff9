package integrity

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/membercore/integra/internal/dataset"
	"github.com/membercore/integra/internal/record"
)

// BalanceWriter persists a corrected balance record. The dataset store
// satisfies it; a durable adapter (SQLite, the hosted DB) can be chained in
// front of the cache via WithBalanceWriter.
type BalanceWriter interface {
	WriteBalance(b *record.Balance) error
}

// Reconciler rewrites drifted balance caches to the value derived from
// completed payments, recording an audit trail of every adjustment.
//
// Reconciliation is idempotent: a second run over an unchanged snapshot
// reconciles nothing. It is also best-effort across members: one member's
// write failure is reported and the batch continues.
type Reconciler struct {
	store   *dataset.Store
	checker *Checker
	clock   Clock
	ids     IDSource
	writer  BalanceWriter
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithBalanceWriter chains a durable writer in front of the in-store cache.
// The cache is only rewritten after the durable write succeeds, so a failed
// member is retried on the next run.
func WithBalanceWriter(w BalanceWriter) ReconcilerOption {
	return func(r *Reconciler) { r.writer = w }
}

// WithReconcilerIDSource overrides the audit-entry id source.
func WithReconcilerIDSource(ids IDSource) ReconcilerOption {
	return func(r *Reconciler) { r.ids = ids }
}

// NewReconciler creates a reconciler over a store. The checker supplies the
// balance rule and the clock; ids default to UUIDv7.
func NewReconciler(store *dataset.Store, checker *Checker, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:   store,
		checker: checker,
		clock:   checker.clock,
		ids:     UUIDv7Source{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Adjustment records one applied balance correction.
type Adjustment struct {
	MemberID   string  `json:"member_id"`
	OldBalance float64 `json:"old_balance"`
	NewBalance float64 `json:"new_balance"`
	Adjustment float64 `json:"adjustment"`
}

// WriteFailure records one member whose balance write failed.
type WriteFailure struct {
	MemberID string `json:"member_id"`
	Error    string `json:"error"`
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Reconciled  int            `json:"reconciled"`
	Adjustments []Adjustment   `json:"adjustments"`
	Failures    []WriteFailure `json:"failures,omitempty"`
}

// ReconcileBalances runs the balance rule for every member id with at least
// one payment and rewrites each drifted balance to its calculated value with
// a fresh reconciliation stamp.
//
// The returned error is nil when every write succeeded; otherwise it joins
// one RECONCILIATION_WRITE_FAILED error per failed member. The result is
// valid either way.
func (r *Reconciler) ReconcileBalances() (*ReconcileResult, error) {
	r.store.Lock()
	defer r.store.Unlock()

	result := &ReconcileResult{Adjustments: []Adjustment{}}
	var writeErrs []error

	now := r.clock.Now()
	for _, memberID := range r.store.MemberIDsWithPayments() {
		check := r.checker.checkBalance(memberID)
		if check.Consistent {
			continue
		}

		corrected := &record.Balance{
			MemberID:       memberID,
			Amount:         check.Calculated,
			LastReconciled: now,
		}

		if r.writer != nil {
			if err := r.writer.WriteBalance(corrected.Clone().(*record.Balance)); err != nil {
				slog.Warn("balance write failed, cache left for retry",
					"member_id", memberID,
					"error", err,
				)
				result.Failures = append(result.Failures, WriteFailure{MemberID: memberID, Error: err.Error()})
				writeErrs = append(writeErrs, NewReconciliationWriteError(memberID, err))
				continue
			}
		}
		if err := r.store.WriteBalance(corrected); err != nil {
			result.Failures = append(result.Failures, WriteFailure{MemberID: memberID, Error: err.Error()})
			writeErrs = append(writeErrs, NewReconciliationWriteError(memberID, err))
			continue
		}

		if err := r.store.AppendAudit(&record.AuditLogEntry{
			ID:       r.ids.NewID(),
			Table:    record.Balances,
			Record:   memberID,
			EntityID: memberID,
			Action:   record.AuditActionReconcile,
			Changes: map[string]any{
				"amount":     check.Calculated,
				"previous":   check.Recorded,
				"adjustment": check.Difference,
			},
			Timestamp: now,
		}); err != nil {
			return result, fmt.Errorf("append reconcile audit entry: %w", err)
		}

		result.Adjustments = append(result.Adjustments, Adjustment{
			MemberID:   memberID,
			OldBalance: check.Recorded,
			NewBalance: check.Calculated,
			Adjustment: check.Difference,
		})
		slog.Info("balance reconciled",
			"member_id", memberID,
			"old_balance", check.Recorded,
			"new_balance", check.Calculated,
			"adjustment", check.Difference,
		)
	}

	result.Reconciled = len(result.Adjustments)
	return result, errors.Join(writeErrs...)
}
