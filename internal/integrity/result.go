package integrity

import "github.com/membercore/integra/internal/record"

// RecordRef names one record touched by a cascade.
type RecordRef struct {
	Collection record.Collection `json:"collection"`
	RecordID   string            `json:"record_id"`
}

// FieldChange describes one foreign-key rewrite performed by a cascade.
// NewValue is nil when the field was cleared (SET_NULL).
type FieldChange struct {
	Collection record.Collection `json:"collection"`
	RecordID   string            `json:"record_id"`
	Field      string            `json:"field"`
	OldValue   *string           `json:"old_value,omitempty"`
	NewValue   *string           `json:"new_value"`
}

// PreservedSet reports the child records a PRESERVE rule left untouched.
// Recorded even when the count is zero, for observability.
type PreservedSet struct {
	Collection record.Collection `json:"collection"`
	Count      int               `json:"count"`
}

// BlockedSet reports the child records that blocked a RESTRICTed delete.
type BlockedSet struct {
	Collection record.Collection `json:"collection"`
	Count      int               `json:"count"`
	Reason     string            `json:"reason"`
}

// DeleteResult describes every side effect of a cascade delete.
// Deleted lists the target record first, then cascaded children in rule
// declaration order. Blocked is populated only on the abort path,
// immediately before the CASCADE_RESTRICTED error is returned.
type DeleteResult struct {
	Deleted   []RecordRef    `json:"deleted"`
	Updated   []FieldChange  `json:"updated"`
	Preserved []PreservedSet `json:"preserved"`
	Blocked   []BlockedSet   `json:"blocked"`
}

// UpdateRecord describes one record touched by a cascade update: either the
// primary update (Changes set) or a propagated foreign-key rewrite (Field,
// OldValue, NewValue set).
type UpdateRecord struct {
	Collection record.Collection `json:"collection"`
	RecordID   string            `json:"record_id"`
	Changes    map[string]any    `json:"changes,omitempty"`
	Field      string            `json:"field,omitempty"`
	OldValue   string            `json:"old_value,omitempty"`
	NewValue   string            `json:"new_value,omitempty"`
}

// UpdateResult describes every side effect of a cascade update.
// Updated lists the primary update first, then propagated foreign-key
// rewrites in rule declaration order.
type UpdateResult struct {
	Updated []UpdateRecord          `json:"updated"`
	Logged  []*record.AuditLogEntry `json:"logged"`
}

func newDeleteResult() *DeleteResult {
	return &DeleteResult{
		Deleted:   []RecordRef{},
		Updated:   []FieldChange{},
		Preserved: []PreservedSet{},
		Blocked:   []BlockedSet{},
	}
}

func newUpdateResult() *UpdateResult {
	return &UpdateResult{
		Updated: []UpdateRecord{},
		Logged:  []*record.AuditLogEntry{},
	}
}
