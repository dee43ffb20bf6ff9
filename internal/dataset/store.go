// Package dataset holds the in-memory snapshot of named record collections
// the integrity engine operates on.
//
// A Store is always passed into engine calls explicitly, never held as a
// module-level singleton, so tests construct isolated stores per case.
//
// Concurrency model: single-writer, multiple-reader. The Store embeds an
// RWMutex; engine entry points that mutate (cascade delete/update,
// reconciliation) take the write lock for the whole call, read-only passes
// (consistency checks) take the read lock. The accessor methods themselves
// do not lock: a cascade must see one consistent snapshot from its RESTRICT
// pre-pass through its last side effect, and per-method locking cannot give
// that. Single-goroutine callers (setup code, tests) may call accessors
// directly.
package dataset

import (
	"fmt"
	"sync"

	"github.com/membercore/integra/internal/record"
)

// Store is the in-memory dataset snapshot: one insertion-ordered collection
// per declared collection tag.
type Store struct {
	sync.RWMutex

	collections map[record.Collection]*collection
}

// collection keeps records by id plus the insertion order of ids.
// Iteration order is stable within one snapshot, which the resolver and
// the checks rely on for deterministic output.
type collection struct {
	records map[string]record.Record
	order   []string
}

// New creates an empty store with every declared collection present.
func New() *Store {
	s := &Store{collections: make(map[record.Collection]*collection, len(record.AllCollections))}
	for _, c := range record.AllCollections {
		s.collections[c] = &collection{records: make(map[string]record.Record)}
	}
	return s
}

// Get returns the record with the given id, if present.
func (s *Store) Get(c record.Collection, id string) (record.Record, bool) {
	col, ok := s.collections[c]
	if !ok {
		return nil, false
	}
	rec, ok := col.records[id]
	return rec, ok
}

// Put inserts or replaces a record. Inserts append to the collection's
// iteration order; replacements keep their position.
func (s *Store) Put(c record.Collection, rec record.Record) error {
	col, ok := s.collections[c]
	if !ok {
		return fmt.Errorf("unknown collection %q", c)
	}
	id := rec.RecordID()
	if id == "" {
		return fmt.Errorf("record for %s has empty id", c)
	}
	if _, exists := col.records[id]; !exists {
		col.order = append(col.order, id)
	}
	col.records[id] = rec
	return nil
}

// Delete removes a record. Returns false when the record was not present.
func (s *Store) Delete(c record.Collection, id string) bool {
	col, ok := s.collections[c]
	if !ok {
		return false
	}
	if _, exists := col.records[id]; !exists {
		return false
	}
	delete(col.records, id)
	for i, oid := range col.order {
		if oid == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	return true
}

// Rekey moves a record from oldID to newID, keeping its iteration position.
// The record itself must already carry the new id (via Record.Rekey).
func (s *Store) Rekey(c record.Collection, oldID, newID string) error {
	col, ok := s.collections[c]
	if !ok {
		return fmt.Errorf("unknown collection %q", c)
	}
	rec, exists := col.records[oldID]
	if !exists {
		return fmt.Errorf("rekey %s: record %q not found", c, oldID)
	}
	if _, taken := col.records[newID]; taken && newID != oldID {
		return fmt.Errorf("rekey %s: id %q already in use", c, newID)
	}
	delete(col.records, oldID)
	col.records[newID] = rec
	for i, oid := range col.order {
		if oid == oldID {
			col.order[i] = newID
			break
		}
	}
	return nil
}

// All returns the collection's records in insertion order.
func (s *Store) All(c record.Collection) []record.Record {
	col, ok := s.collections[c]
	if !ok {
		return nil
	}
	out := make([]record.Record, 0, len(col.order))
	for _, id := range col.order {
		out = append(out, col.records[id])
	}
	return out
}

// Len returns the number of records in a collection.
func (s *Store) Len(c record.Collection) int {
	col, ok := s.collections[c]
	if !ok {
		return 0
	}
	return len(col.records)
}

// Has reports whether a record exists.
func (s *Store) Has(c record.Collection, id string) bool {
	_, ok := s.Get(c, id)
	return ok
}

// AppendAudit appends an audit log entry. Entries are never updated or
// deleted through the store.
func (s *Store) AppendAudit(entry *record.AuditLogEntry) error {
	return s.Put(record.AuditLogs, entry)
}

// AuditLog returns the audit log entries in append order.
func (s *Store) AuditLog() []*record.AuditLogEntry {
	recs := s.All(record.AuditLogs)
	out := make([]*record.AuditLogEntry, 0, len(recs))
	for _, rec := range recs {
		if e, ok := rec.(*record.AuditLogEntry); ok {
			out = append(out, e)
		}
	}
	return out
}

// Balance returns the cached balance record for a member, if present.
func (s *Store) Balance(memberID string) (*record.Balance, bool) {
	rec, ok := s.Get(record.Balances, memberID)
	if !ok {
		return nil, false
	}
	b, ok := rec.(*record.Balance)
	return b, ok
}

// WriteBalance inserts or replaces a member's cached balance.
// Satisfies the reconciler's balance-writer contract.
func (s *Store) WriteBalance(b *record.Balance) error {
	return s.Put(record.Balances, b)
}

// MemberIDsWithPayments returns the distinct member ids appearing in the
// payments collection, in first-seen payment order. Consistency checks and
// reconciliation iterate members in this order.
func (s *Store) MemberIDsWithPayments() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range s.All(record.Payments) {
		p, ok := rec.(*record.Payment)
		if !ok || p.MemberID == "" {
			continue
		}
		if !seen[p.MemberID] {
			seen[p.MemberID] = true
			ids = append(ids, p.MemberID)
		}
	}
	return ids
}

// Clone returns a deep copy of the store: same collections, same order,
// cloned records. Used by tests asserting that an aborted cascade left the
// dataset untouched.
func (s *Store) Clone() *Store {
	out := New()
	for _, c := range record.AllCollections {
		src := s.collections[c]
		dst := out.collections[c]
		dst.order = make([]string, len(src.order))
		copy(dst.order, src.order)
		for id, rec := range src.records {
			dst.records[id] = rec.Clone()
		}
	}
	return out
}
