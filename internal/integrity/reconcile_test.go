package integrity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membercore/integra/internal/dataset"
	"github.com/membercore/integra/internal/record"
	"github.com/membercore/integra/internal/testutil"
)

func driftedStore(t *testing.T) *dataset.Store {
	t.Helper()
	s := dataset.New()
	require.NoError(t, s.Put(record.Payments, &record.Payment{ID: "PAY-001", MemberID: "MEM-001", Amount: 100, Status: record.StatusCompleted}))
	require.NoError(t, s.Put(record.Payments, &record.Payment{ID: "PAY-002", MemberID: "MEM-001", Amount: 150, Status: record.StatusCompleted}))
	require.NoError(t, s.Put(record.Payments, &record.Payment{ID: "PAY-003", MemberID: "MEM-002", Amount: 80, Status: record.StatusCompleted}))
	require.NoError(t, s.WriteBalance(&record.Balance{MemberID: "MEM-001", Amount: 200}))
	require.NoError(t, s.WriteBalance(&record.Balance{MemberID: "MEM-002", Amount: 80}))
	return s
}

func newTestReconciler(s *dataset.Store, opts ...ReconcilerOption) *Reconciler {
	checker := NewChecker(s, testutil.NewFixedClockAt("2025-06-15T12:00:00Z"))
	opts = append([]ReconcilerOption{WithReconcilerIDSource(testutil.NewSequenceIDSource("REC"))}, opts...)
	return NewReconciler(s, checker, opts...)
}

func TestReconcileBalances(t *testing.T) {
	s := driftedStore(t)
	r := newTestReconciler(s)

	result, err := r.ReconcileBalances()
	require.NoError(t, err)

	assert.Equal(t, 1, result.Reconciled)
	require.Len(t, result.Adjustments, 1)
	assert.Equal(t, Adjustment{
		MemberID:   "MEM-001",
		OldBalance: 200,
		NewBalance: 250,
		Adjustment: 50,
	}, result.Adjustments[0])
	assert.Empty(t, result.Failures)

	// Cache rewritten with a fresh reconciliation stamp.
	b, ok := s.Balance("MEM-001")
	require.True(t, ok)
	assert.Equal(t, 250.0, b.Amount)
	assert.Equal(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), b.LastReconciled)

	// MEM-002 was already consistent and is untouched.
	b2, _ := s.Balance("MEM-002")
	assert.Equal(t, 80.0, b2.Amount)
	assert.True(t, b2.LastReconciled.IsZero())

	// One RECONCILE audit entry per adjustment.
	log := s.AuditLog()
	require.Len(t, log, 1)
	entry := log[0]
	assert.Equal(t, "REC-0001", entry.ID)
	assert.Equal(t, record.Balances, entry.Table)
	assert.Equal(t, "MEM-001", entry.Record)
	assert.Equal(t, record.AuditActionReconcile, entry.Action)
	assert.Equal(t, 250.0, entry.Changes["amount"])
	assert.Equal(t, 200.0, entry.Changes["previous"])
	assert.Equal(t, 50.0, entry.Changes["adjustment"])
}

func TestReconcileIsIdempotent(t *testing.T) {
	s := driftedStore(t)
	r := newTestReconciler(s)

	first, err := r.ReconcileBalances()
	require.NoError(t, err)
	require.Equal(t, 1, first.Reconciled)

	second, err := r.ReconcileBalances()
	require.NoError(t, err)
	assert.Equal(t, 0, second.Reconciled)
	assert.Empty(t, second.Adjustments)
	assert.Len(t, s.AuditLog(), 1, "no new audit entries on the second run")
}

func TestReconcileCreatesMissingBalance(t *testing.T) {
	s := dataset.New()
	require.NoError(t, s.Put(record.Payments, &record.Payment{ID: "PAY-001", MemberID: "MEM-001", Amount: 120, Status: record.StatusCompleted}))

	result, err := newTestReconciler(s).ReconcileBalances()
	require.NoError(t, err)

	require.Len(t, result.Adjustments, 1)
	assert.Equal(t, 0.0, result.Adjustments[0].OldBalance)
	assert.Equal(t, 120.0, result.Adjustments[0].NewBalance)

	b, ok := s.Balance("MEM-001")
	require.True(t, ok)
	assert.Equal(t, 120.0, b.Amount)
}

func TestReconcileIgnoresNonCompletedPayments(t *testing.T) {
	s := dataset.New()
	require.NoError(t, s.Put(record.Payments, &record.Payment{ID: "PAY-001", MemberID: "MEM-001", Amount: 100, Status: record.StatusPending}))

	result, err := newTestReconciler(s).ReconcileBalances()
	require.NoError(t, err)

	// Calculated and recorded are both zero: nothing to reconcile, and no
	// balance record is invented.
	assert.Equal(t, 0, result.Reconciled)
	_, ok := s.Balance("MEM-001")
	assert.False(t, ok)
}

// failingWriter rejects writes for one member id.
type failingWriter struct {
	memberID string
	err      error
	written  []*record.Balance
}

func (w *failingWriter) WriteBalance(b *record.Balance) error {
	if b.MemberID == w.memberID {
		return w.err
	}
	w.written = append(w.written, b)
	return nil
}

func TestReconcileWriteFailureIsBestEffort(t *testing.T) {
	s := dataset.New()
	require.NoError(t, s.Put(record.Payments, &record.Payment{ID: "PAY-001", MemberID: "MEM-001", Amount: 100, Status: record.StatusCompleted}))
	require.NoError(t, s.Put(record.Payments, &record.Payment{ID: "PAY-002", MemberID: "MEM-002", Amount: 200, Status: record.StatusCompleted}))

	writer := &failingWriter{memberID: "MEM-001", err: errors.New("connection reset")}
	r := newTestReconciler(s, WithBalanceWriter(writer))

	result, err := r.ReconcileBalances()
	require.Error(t, err)
	assert.True(t, IsReconciliationWriteFailed(err))

	// The failed member is reported; the other member still reconciled.
	assert.Equal(t, 1, result.Reconciled)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "MEM-001", result.Failures[0].MemberID)
	assert.Contains(t, result.Failures[0].Error, "connection reset")
	require.Len(t, result.Adjustments, 1)
	assert.Equal(t, "MEM-002", result.Adjustments[0].MemberID)

	// The failed member's cache is untouched, so the next run retries it.
	_, ok := s.Balance("MEM-001")
	assert.False(t, ok)
	require.Len(t, s.AuditLog(), 1)
	assert.Equal(t, "MEM-002", s.AuditLog()[0].Record)

	// Retry with a healed writer picks up the failed member.
	writer.memberID = ""
	retry, err := r.ReconcileBalances()
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Reconciled)
	assert.Equal(t, "MEM-001", retry.Adjustments[0].MemberID)
}
