package integrity

import (
	"fmt"
	"log/slog"

	"github.com/membercore/integra/internal/dataset"
	"github.com/membercore/integra/internal/record"
	"github.com/membercore/integra/internal/schema"
)

// Executor orchestrates cascade deletes and updates against one dataset
// snapshot, applying the registry's per-collection policies.
//
// Each call takes the store's write lock for its full duration: RESTRICT
// evaluation and side-effect application must see one consistent snapshot.
type Executor struct {
	store *dataset.Store
	reg   *schema.Registry
	res   *Resolver
	clock Clock
	ids   IDSource
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithClock overrides the executor's clock. Tests use a fixed clock so audit
// timestamps are deterministic.
func WithClock(c Clock) ExecutorOption {
	return func(e *Executor) { e.clock = c }
}

// WithIDSource overrides the executor's audit-entry id source.
func WithIDSource(ids IDSource) ExecutorOption {
	return func(e *Executor) { e.ids = ids }
}

// NewExecutor creates an executor over a store and a rule registry.
// Defaults: system clock, UUIDv7 ids.
func NewExecutor(store *dataset.Store, reg *schema.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store: store,
		reg:   reg,
		res:   NewResolver(reg, store),
		clock: SystemClock{},
		ids:   UUIDv7Source{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PerformDelete deletes one record and applies the collection's onDelete
// rules to every related collection.
//
// All RESTRICT rules are evaluated before any side effect is applied, so a
// blocked delete leaves every collection exactly as it was. On the abort
// path the returned result's Blocked list names the offending child
// collection, and the error is CASCADE_RESTRICTED.
func (e *Executor) PerformDelete(c record.Collection, id string) (*DeleteResult, error) {
	e.store.Lock()
	defer e.store.Unlock()

	if !c.Known() {
		return nil, NewUnknownCollectionError(c)
	}
	if _, ok := e.store.Get(c, id); !ok {
		return nil, NewRecordNotFoundError(c, id)
	}

	rules := e.reg.DeleteRules(c)
	result := newDeleteResult()

	// RESTRICT pre-pass. Nothing may be mutated before every restrict rule
	// has been checked against the snapshot.
	for _, rule := range rules {
		if rule.Action != schema.Restrict {
			continue
		}
		related := e.res.FindRelated(rule.Child, c, id)
		if len(related) > 0 {
			result.Blocked = append(result.Blocked, BlockedSet{
				Collection: rule.Child,
				Count:      len(related),
				Reason:     fmt.Sprintf("cannot delete: %d related %s exist", len(related), rule.Child),
			})
			slog.Warn("cascade delete blocked",
				"collection", c,
				"record_id", id,
				"blocking_collection", rule.Child,
				"blocking_count", len(related),
			)
			return result, NewRestrictedError(c, id, rule.Child, len(related))
		}
	}

	// Apply pass: side effects in rule declaration order.
	var childRefs []RecordRef
	for _, rule := range rules {
		related := e.res.FindRelated(rule.Child, c, id)

		switch rule.Action {
		case schema.Restrict:
			// Already cleared by the pre-pass.

		case schema.Cascade:
			for _, rec := range related {
				e.store.Delete(rule.Child, rec.RecordID())
				childRefs = append(childRefs, RecordRef{Collection: rule.Child, RecordID: rec.RecordID()})
			}

		case schema.SetNull:
			field, ok := e.reg.RefField(rule.Child, c)
			if !ok {
				// Resolver found nothing without a declared field, so this
				// branch only fires for a rule with no matching ref.
				continue
			}
			for _, rec := range related {
				old, _ := rec.Ref(field)
				rec.SetRef(field, "")
				oldCopy := old
				result.Updated = append(result.Updated, FieldChange{
					Collection: rule.Child,
					RecordID:   rec.RecordID(),
					Field:      field,
					OldValue:   &oldCopy,
					NewValue:   nil,
				})
			}

		case schema.Preserve:
			result.Preserved = append(result.Preserved, PreservedSet{
				Collection: rule.Child,
				Count:      len(related),
			})

		default:
			return nil, NewUnknownRuleError(fmt.Sprintf("action %s is not valid for delete of %s", rule.Action, c))
		}
	}

	// Delete the target last; list it first.
	e.store.Delete(c, id)
	result.Deleted = append(result.Deleted, RecordRef{Collection: c, RecordID: id})
	result.Deleted = append(result.Deleted, childRefs...)

	slog.Info("cascade delete complete",
		"collection", c,
		"record_id", id,
		"deleted", len(result.Deleted),
		"updated", len(result.Updated),
		"preserved", len(result.Preserved),
	)
	return result, nil
}

// PerformUpdate applies a field-level merge to one record and then the
// collection's onUpdate rules.
//
// CASCADE on update propagates only a primary-key rename: when updates
// changes the record's id, every related record's foreign key is rewritten
// to the new id. LOG appends one audit entry capturing the change set.
// Other actions are no-ops on update.
func (e *Executor) PerformUpdate(c record.Collection, id string, updates map[string]any) (*UpdateResult, error) {
	e.store.Lock()
	defer e.store.Unlock()

	if !c.Known() {
		return nil, NewUnknownCollectionError(c)
	}
	rec, ok := e.store.Get(c, id)
	if !ok {
		return nil, NewRecordNotFoundError(c, id)
	}

	newID, pkChanged := primaryKeyChange(id, updates)

	if err := rec.Merge(updates); err != nil {
		return nil, NewInvalidUpdateError(c, id, err)
	}
	if pkChanged {
		if err := e.store.Rekey(c, id, newID); err != nil {
			// Roll the merge back so a failed rekey leaves no partial effect.
			rec.Rekey(id)
			return nil, NewInvalidUpdateError(c, id, err)
		}
	}

	result := newUpdateResult()
	result.Updated = append(result.Updated, UpdateRecord{
		Collection: c,
		RecordID:   id,
		Changes:    copyChanges(updates),
	})

	for _, rule := range e.reg.UpdateRules(c) {
		switch rule.Action {
		case schema.Cascade:
			if !pkChanged {
				continue
			}
			field, ok := e.reg.RefField(rule.Child, c)
			if !ok {
				continue
			}
			for _, child := range e.res.FindRelated(rule.Child, c, id) {
				child.SetRef(field, newID)
				result.Updated = append(result.Updated, UpdateRecord{
					Collection: rule.Child,
					RecordID:   child.RecordID(),
					Field:      field,
					OldValue:   id,
					NewValue:   newID,
				})
			}

		case schema.Log:
			entry := &record.AuditLogEntry{
				ID:        e.ids.NewID(),
				Table:     c,
				Record:    id,
				EntityID:  id,
				Action:    record.AuditActionUpdate,
				Changes:   copyChanges(updates),
				Timestamp: e.clock.Now(),
			}
			if err := e.store.AppendAudit(entry); err != nil {
				return nil, fmt.Errorf("append audit entry: %w", err)
			}
			result.Logged = append(result.Logged, entry)

		default:
			// RESTRICT, SET_NULL and PRESERVE have no update semantics.
		}
	}

	slog.Info("cascade update complete",
		"collection", c,
		"record_id", id,
		"updated", len(result.Updated),
		"logged", len(result.Logged),
		"pk_changed", pkChanged,
	)
	return result, nil
}

// primaryKeyChange reports whether updates renames the primary key, and to
// what.
func primaryKeyChange(id string, updates map[string]any) (string, bool) {
	v, ok := updates["id"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == id {
		return "", false
	}
	return s, true
}

func copyChanges(updates map[string]any) map[string]any {
	out := make(map[string]any, len(updates))
	for k, v := range updates {
		out[k] = v
	}
	return out
}
