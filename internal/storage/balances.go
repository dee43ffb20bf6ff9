package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/membercore/integra/internal/integrity"
	"github.com/membercore/integra/internal/record"
)

// SaveBalance upserts one member's reconciled balance.
func (s *Store) SaveBalance(ctx context.Context, b *record.Balance) error {
	var reconciled any
	if !b.LastReconciled.IsZero() {
		reconciled = b.LastReconciled.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (member_id, amount, last_reconciled)
		VALUES (?, ?, ?)
		ON CONFLICT(member_id) DO UPDATE SET
			amount = excluded.amount,
			last_reconciled = excluded.last_reconciled
	`, b.MemberID, b.Amount, reconciled)
	if err != nil {
		return fmt.Errorf("save balance for %s: %w", b.MemberID, err)
	}
	return nil
}

// LoadBalances returns all stored balances keyed by member id.
func (s *Store) LoadBalances(ctx context.Context) (map[string]*record.Balance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, amount, last_reconciled FROM balances ORDER BY member_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]*record.Balance)
	for rows.Next() {
		var (
			b          record.Balance
			reconciled sql.NullString
		)
		if err := rows.Scan(&b.MemberID, &b.Amount, &reconciled); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		if reconciled.Valid {
			ts, err := time.Parse(time.RFC3339, reconciled.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_reconciled for %s: %w", b.MemberID, err)
			}
			b.LastReconciled = ts
		}
		balances[b.MemberID] = &b
	}
	return balances, rows.Err()
}

// SaveAdjustment records one applied reconciliation adjustment.
func (s *Store) SaveAdjustment(ctx context.Context, adj integrity.Adjustment, appliedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adjustments (member_id, old_balance, new_balance, adjustment, applied_at)
		VALUES (?, ?, ?, ?, ?)
	`, adj.MemberID, adj.OldBalance, adj.NewBalance, adj.Adjustment, appliedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save adjustment for %s: %w", adj.MemberID, err)
	}
	return nil
}

// balanceSink adapts the store to the reconciler's writer contract with a
// bound context.
type balanceSink struct {
	ctx   context.Context
	store *Store
}

// BalanceWriter returns a writer the reconciler can chain in front of its
// in-memory cache, binding the given context to each write.
func (s *Store) BalanceWriter(ctx context.Context) integrity.BalanceWriter {
	return &balanceSink{ctx: ctx, store: s}
}

func (w *balanceSink) WriteBalance(b *record.Balance) error {
	return w.store.SaveBalance(w.ctx, b)
}
