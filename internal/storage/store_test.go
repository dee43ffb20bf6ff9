package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membercore/integra/internal/integrity"
	"github.com/membercore/integra/internal/record"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "integra.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "integra.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an already-migrated database is a no-op migration.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	balances, err := s.LoadBalances(context.Background())
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestSaveAndLoadBalances(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stamp := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveBalance(ctx, &record.Balance{MemberID: "MEM-001", Amount: 250, LastReconciled: stamp}))
	require.NoError(t, s.SaveBalance(ctx, &record.Balance{MemberID: "MEM-002", Amount: 80}))

	balances, err := s.LoadBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, 250.0, balances["MEM-001"].Amount)
	assert.Equal(t, stamp, balances["MEM-001"].LastReconciled)
	assert.True(t, balances["MEM-002"].LastReconciled.IsZero())

	// Upsert replaces the row.
	require.NoError(t, s.SaveBalance(ctx, &record.Balance{MemberID: "MEM-001", Amount: 300, LastReconciled: stamp.Add(time.Hour)}))
	balances, err = s.LoadBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, 300.0, balances["MEM-001"].Amount)
}

func TestBalanceWriterAdapter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var w integrity.BalanceWriter = s.BalanceWriter(ctx)
	require.NoError(t, w.WriteBalance(&record.Balance{MemberID: "MEM-001", Amount: 120}))

	balances, err := s.LoadBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120.0, balances["MEM-001"].Amount)
}

func TestAppendAndReadAuditLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stamp := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	first := &record.AuditLogEntry{
		ID:       "LOG-0001",
		Table:    record.Members,
		Record:   "MEM-001",
		EntityID: "MEM-001",
		Action:   record.AuditActionUpdate,
		Changes: map[string]any{
			"name": "Ahmed Ali",
		},
		Timestamp: stamp,
	}
	second := &record.AuditLogEntry{
		ID:        "REC-0001",
		Table:     record.Balances,
		Record:    "MEM-001",
		EntityID:  "MEM-001",
		Action:    record.AuditActionReconcile,
		Timestamp: stamp,
	}
	require.NoError(t, s.AppendAudit(ctx, first))
	require.NoError(t, s.AppendAudit(ctx, second))

	// Re-appending the same id is a no-op, not an error.
	require.NoError(t, s.AppendAudit(ctx, first))

	entries, err := s.ReadAuditLog(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "LOG-0001", entries[0].ID)
	assert.Equal(t, record.Members, entries[0].Table)
	assert.Equal(t, "MEM-001", entries[0].Record)
	assert.Equal(t, record.AuditActionUpdate, entries[0].Action)
	assert.Equal(t, "Ahmed Ali", entries[0].Changes["name"])
	assert.Equal(t, stamp, entries[0].Timestamp)

	assert.Equal(t, "REC-0001", entries[1].ID)
	assert.Equal(t, record.AuditActionReconcile, entries[1].Action)
	assert.Empty(t, entries[1].Changes)
}

func TestSaveAdjustment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	adj := integrity.Adjustment{MemberID: "MEM-001", OldBalance: 200, NewBalance: 250, Adjustment: 50}
	require.NoError(t, s.SaveAdjustment(ctx, adj, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, s.SaveAdjustment(ctx, adj, time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)))

	// Adjustments are an append-only history: same member twice is two rows.
	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM adjustments WHERE member_id = ?", "MEM-001").Scan(&count))
	assert.Equal(t, 2, count)
}
