package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberMerge(t *testing.T) {
	m := &Member{ID: "MEM-001", Name: "Ahmed", Email: "ahmed@example.com"}

	err := m.Merge(map[string]any{"name": "Ahmed Ali", "id": "MEM-100"})
	require.NoError(t, err)
	assert.Equal(t, "MEM-100", m.ID)
	assert.Equal(t, "Ahmed Ali", m.Name)
	assert.Equal(t, "ahmed@example.com", m.Email)
}

func TestMergeRejectsUnknownField(t *testing.T) {
	m := &Member{ID: "MEM-001", Name: "Ahmed"}

	err := m.Merge(map[string]any{"name": "Changed", "nickname": "A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")

	// No partial merge: the valid field must not have been applied.
	assert.Equal(t, "Ahmed", m.Name)
}

func TestMergeRejectsMistypedValue(t *testing.T) {
	p := &Payment{ID: "PAY-001", MemberID: "MEM-001", Amount: 100, Status: StatusPending}

	err := p.Merge(map[string]any{"amount": "lots", "status": "completed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
	assert.Equal(t, 100.0, p.Amount)
	assert.Equal(t, StatusPending, p.Status)
}

func TestPaymentMergeCoercesNumbers(t *testing.T) {
	p := &Payment{ID: "PAY-001", Amount: 0, Status: StatusPending}

	require.NoError(t, p.Merge(map[string]any{"amount": 150, "refundAmount": 25.5}))
	assert.Equal(t, 150.0, p.Amount)
	assert.Equal(t, 25.5, p.RefundAmount)
}

func TestPaymentMergeRejectsUnknownStatus(t *testing.T) {
	p := &Payment{ID: "PAY-001", Status: StatusPending}

	err := p.Merge(map[string]any{"status": "exploded"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown payment status")
	assert.Equal(t, StatusPending, p.Status)
}

func TestSubscriptionMergeParsesDates(t *testing.T) {
	s := &Subscription{ID: "SUB-001", MemberID: "MEM-001"}

	require.NoError(t, s.Merge(map[string]any{
		"startDate": "2025-01-01",
		"endDate":   "2025-12-31T23:59:59Z",
		"isActive":  true,
	}))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), s.StartDate)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), s.EndDate)
	assert.True(t, s.IsActive)
}

func TestDocumentRef(t *testing.T) {
	owner := "MEM-001"
	d := &Document{ID: "DOC-001", UploadedBy: &owner}

	v, ok := d.Ref(FieldUploadedBy)
	require.True(t, ok)
	assert.Equal(t, "MEM-001", v)

	// Clearing the ref nulls the pointer.
	require.True(t, d.SetRef(FieldUploadedBy, ""))
	assert.Nil(t, d.UploadedBy)

	v, ok = d.Ref(FieldUploadedBy)
	require.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = d.Ref(FieldMemberID)
	assert.False(t, ok)
}

func TestDocumentMergeNullableRef(t *testing.T) {
	owner := "MEM-001"
	d := &Document{ID: "DOC-001", UploadedBy: &owner}

	require.NoError(t, d.Merge(map[string]any{"uploadedBy": nil}))
	assert.Nil(t, d.UploadedBy)

	require.NoError(t, d.Merge(map[string]any{"uploadedBy": "MEM-002"}))
	require.NotNil(t, d.UploadedBy)
	assert.Equal(t, "MEM-002", *d.UploadedBy)
}

func TestDocumentCloneIsDeep(t *testing.T) {
	owner := "MEM-001"
	d := &Document{ID: "DOC-001", UploadedBy: &owner}

	c := d.Clone().(*Document)
	c.SetRef(FieldUploadedBy, "MEM-002")

	assert.Equal(t, "MEM-001", *d.UploadedBy)
	assert.Equal(t, "MEM-002", *c.UploadedBy)
}

func TestAuditLogEntryImmutable(t *testing.T) {
	e := &AuditLogEntry{ID: "AUD-001", Table: Members, Record: "MEM-001", Action: AuditActionUpdate}

	err := e.Merge(map[string]any{"action": "DELETE"})
	require.Error(t, err)
	assert.Equal(t, AuditActionUpdate, e.Action)
}

func TestAuditLogEntryCloneCopiesChanges(t *testing.T) {
	e := &AuditLogEntry{
		ID:      "AUD-001",
		Table:   Members,
		Record:  "MEM-001",
		Action:  AuditActionUpdate,
		Changes: map[string]any{"name": "Ahmed"},
	}

	c := e.Clone().(*AuditLogEntry)
	c.Changes["name"] = "Tampered"

	assert.Equal(t, "Ahmed", e.Changes["name"])
}

func TestBalanceRecordID(t *testing.T) {
	b := &Balance{MemberID: "MEM-001", Amount: 250}
	assert.Equal(t, "MEM-001", b.RecordID())

	v, ok := b.Ref(FieldMemberID)
	require.True(t, ok)
	assert.Equal(t, "MEM-001", v)
}

func TestNewFactory(t *testing.T) {
	for _, c := range AllCollections {
		rec, err := New(c)
		require.NoError(t, err, "collection %s", c)
		require.NotNil(t, rec)
	}

	_, err := New(Collection("invoices"))
	assert.Error(t, err)
}

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection("payments")
	require.NoError(t, err)
	assert.Equal(t, Payments, c)

	_, err = ParseCollection("invoices")
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseTime("2025-06-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC), got)

	_, err = ParseTime("June 15th")
	assert.Error(t, err)
}

func TestPaymentStatusKnown(t *testing.T) {
	for _, s := range []PaymentStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded} {
		assert.True(t, s.Known(), "status %s", s)
	}
	assert.False(t, PaymentStatus("exploded").Known())
	assert.False(t, PaymentStatus("").Known())
}
