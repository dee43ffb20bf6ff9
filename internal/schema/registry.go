// Package schema declares the entities, foreign-key relationships and
// cascade policies the integrity engine enforces.
//
// A Registry is pure configuration: no runtime state, no side effects.
// Rules are kept in declaration order and evaluated in that order by the
// cascade executor, so rule iteration is stable across runs.
package schema

import (
	"fmt"

	"github.com/membercore/integra/internal/record"
)

// Action is a cascade policy applied to one related collection when a
// parent record is deleted or updated. Using an enumerated type (not
// free-form strings) makes unhandled cases a compile-time visible switch
// arm.
type Action uint8

const (
	ActionUnknown Action = iota

	// Restrict aborts the parent delete when dependent children exist.
	Restrict

	// Cascade deletes children on parent delete, or propagates a
	// primary-key rename into child reference fields on parent update.
	Cascade

	// SetNull severs the child's reference by clearing its foreign key.
	SetNull

	// Preserve leaves children untouched and merely reports their count.
	Preserve

	// Log appends an audit log entry describing the parent update.
	Log
)

// String returns the registry spelling of the action.
func (a Action) String() string {
	switch a {
	case Restrict:
		return "RESTRICT"
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET_NULL"
	case Preserve:
		return "PRESERVE"
	case Log:
		return "LOG"
	default:
		return "UNKNOWN"
	}
}

// ParseAction converts a registry spelling to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "RESTRICT":
		return Restrict, nil
	case "CASCADE":
		return Cascade, nil
	case "SET_NULL":
		return SetNull, nil
	case "PRESERVE":
		return Preserve, nil
	case "LOG":
		return Log, nil
	default:
		return ActionUnknown, fmt.Errorf("unknown cascade action %q", s)
	}
}

// ValidOnDelete reports whether the action may appear in an onDelete rule.
// Log is update-only in this design.
func (a Action) ValidOnDelete() bool {
	switch a {
	case Restrict, Cascade, SetNull, Preserve:
		return true
	}
	return false
}

// ValidOnUpdate reports whether the action may appear in an onUpdate rule.
// Only Cascade (primary-key propagation) and Log are meaningful on update.
func (a Action) ValidOnUpdate() bool {
	return a == Cascade || a == Log
}

// Rule pairs a related (child) collection with the action applied to it.
type Rule struct {
	Child  record.Collection
	Action Action
}

type refKey struct {
	child  record.Collection
	parent record.Collection
}

// Registry holds, per parent collection, the ordered onDelete and onUpdate
// rule lists, plus the (child, parent) to foreign-key-field map the
// relationship resolver consults.
type Registry struct {
	onDelete map[record.Collection][]Rule
	onUpdate map[record.Collection][]Rule
	refs     map[refKey]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		onDelete: make(map[record.Collection][]Rule),
		onUpdate: make(map[record.Collection][]Rule),
		refs:     make(map[refKey]string),
	}
}

// DeclareRef declares the foreign-key field a child collection uses to
// reference a parent collection. Each (child, parent) pair is declared once.
func (r *Registry) DeclareRef(child, parent record.Collection, field string) error {
	if !child.Known() {
		return fmt.Errorf("declare ref: unknown collection %q", child)
	}
	if !parent.Known() {
		return fmt.Errorf("declare ref: unknown collection %q", parent)
	}
	if field == "" {
		return fmt.Errorf("declare ref: empty field for (%s, %s)", child, parent)
	}
	key := refKey{child: child, parent: parent}
	if existing, ok := r.refs[key]; ok {
		return fmt.Errorf("declare ref: (%s, %s) already mapped to %q", child, parent, existing)
	}
	r.refs[key] = field
	return nil
}

// RefField returns the foreign-key field name for a (child, parent) pair.
// ok is false when no relationship is declared; that is not an error,
// absence of a relationship is valid and resolves to "no related records".
func (r *Registry) RefField(child, parent record.Collection) (string, bool) {
	field, ok := r.refs[refKey{child: child, parent: parent}]
	return field, ok
}

// OnDelete appends an onDelete rule for the parent collection.
// Rules keep declaration order; one rule per (parent, child) pair.
func (r *Registry) OnDelete(parent, child record.Collection, action Action) error {
	if err := r.checkRule(parent, child); err != nil {
		return fmt.Errorf("onDelete: %w", err)
	}
	if !action.ValidOnDelete() {
		return fmt.Errorf("onDelete: action %s is not valid for delete rules", action)
	}
	for _, rule := range r.onDelete[parent] {
		if rule.Child == child {
			return fmt.Errorf("onDelete: duplicate rule for (%s, %s)", parent, child)
		}
	}
	r.onDelete[parent] = append(r.onDelete[parent], Rule{Child: child, Action: action})
	return nil
}

// OnUpdate appends an onUpdate rule for the parent collection.
func (r *Registry) OnUpdate(parent, child record.Collection, action Action) error {
	if err := r.checkRule(parent, child); err != nil {
		return fmt.Errorf("onUpdate: %w", err)
	}
	if !action.ValidOnUpdate() {
		return fmt.Errorf("onUpdate: action %s is not valid for update rules", action)
	}
	for _, rule := range r.onUpdate[parent] {
		if rule.Child == child {
			return fmt.Errorf("onUpdate: duplicate rule for (%s, %s)", parent, child)
		}
	}
	r.onUpdate[parent] = append(r.onUpdate[parent], Rule{Child: child, Action: action})
	return nil
}

func (r *Registry) checkRule(parent, child record.Collection) error {
	if !parent.Known() {
		return fmt.Errorf("unknown collection %q", parent)
	}
	if !child.Known() {
		return fmt.Errorf("unknown collection %q", child)
	}
	return nil
}

// DeleteRules returns the onDelete rules for a parent in declaration order.
// The returned slice is a copy; callers cannot mutate registry state.
func (r *Registry) DeleteRules(parent record.Collection) []Rule {
	rules := r.onDelete[parent]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// UpdateRules returns the onUpdate rules for a parent in declaration order.
func (r *Registry) UpdateRules(parent record.Collection) []Rule {
	rules := r.onUpdate[parent]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Default returns the registry for the membership system: members are the
// aggregate root; payments block member deletion, subscriptions and
// notifications follow it, documents are severed, audit logs are kept.
func Default() *Registry {
	r := NewRegistry()

	mustRef := func(child, parent record.Collection, field string) {
		if err := r.DeclareRef(child, parent, field); err != nil {
			panic(err)
		}
	}
	mustDelete := func(parent, child record.Collection, action Action) {
		if err := r.OnDelete(parent, child, action); err != nil {
			panic(err)
		}
	}
	mustUpdate := func(parent, child record.Collection, action Action) {
		if err := r.OnUpdate(parent, child, action); err != nil {
			panic(err)
		}
	}

	mustRef(record.Payments, record.Members, record.FieldMemberID)
	mustRef(record.Subscriptions, record.Members, record.FieldMemberID)
	mustRef(record.Documents, record.Members, record.FieldUploadedBy)
	mustRef(record.Notifications, record.Members, record.FieldMemberID)
	mustRef(record.AuditLogs, record.Members, record.FieldEntityID)
	mustRef(record.Balances, record.Members, record.FieldMemberID)

	mustDelete(record.Members, record.Payments, Restrict)
	mustDelete(record.Members, record.Subscriptions, Cascade)
	mustDelete(record.Members, record.Documents, SetNull)
	mustDelete(record.Members, record.Notifications, Cascade)
	mustDelete(record.Members, record.AuditLogs, Preserve)

	mustUpdate(record.Members, record.Payments, Cascade)
	mustUpdate(record.Members, record.Subscriptions, Cascade)
	mustUpdate(record.Members, record.Documents, Cascade)
	mustUpdate(record.Members, record.Notifications, Cascade)
	mustUpdate(record.Members, record.AuditLogs, Log)

	mustDelete(record.Payments, record.AuditLogs, Preserve)
	mustUpdate(record.Payments, record.AuditLogs, Log)

	return r
}
