package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/membercore/integra/internal/record"
)

// AppendAudit durably stores one audit log entry.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: re-appending the same
// entry (e.g. after a retried batch) is silently ignored.
//
// Changes are serialized as canonical JSON so stored bytes are stable
// across runs and safe to hash or diff.
func (s *Store) AppendAudit(ctx context.Context, entry *record.AuditLogEntry) error {
	changes := entry.Changes
	if changes == nil {
		changes = map[string]any{}
	}
	changesJSON, err := record.MarshalCanonical(changes)
	if err != nil {
		return fmt.Errorf("append audit %s: %w", entry.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, entity_table, record_id, entity_id, action, changes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		entry.ID,
		string(entry.Table),
		entry.Record,
		entry.EntityID,
		entry.Action,
		string(changesJSON),
		entry.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("append audit %s: %w", entry.ID, err)
	}
	return nil
}

// ReadAuditLog returns the stored audit trail in insertion order.
func (s *Store) ReadAuditLog(ctx context.Context) ([]*record.AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_table, record_id, entity_id, action, changes, created_at
		FROM audit_log
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	defer rows.Close()

	var entries []*record.AuditLogEntry
	for rows.Next() {
		var (
			entry       record.AuditLogEntry
			table       string
			changesJSON string
			createdAt   string
		)
		if err := rows.Scan(&entry.ID, &table, &entry.Record, &entry.EntityID, &entry.Action, &changesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entry.Table = record.Collection(table)
		if err := json.Unmarshal([]byte(changesJSON), &entry.Changes); err != nil {
			return nil, fmt.Errorf("decode changes for %s: %w", entry.ID, err)
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp for %s: %w", entry.ID, err)
		}
		entry.Timestamp = ts
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
