package integrity

import (
	"errors"
	"fmt"

	"github.com/membercore/integra/internal/record"
)

// EngineError represents an error detected during a cascade or
// reconciliation call. It carries structured fields so callers can react to
// the category (retry, surface to the operator, fix configuration) without
// parsing messages.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Collection is the collection the failed operation targeted.
	Collection record.Collection

	// RecordID identifies the target record, when known.
	RecordID string

	// Child is the blocking child collection (CASCADE_RESTRICTED only).
	Child record.Collection

	// Count is the number of blocking child records (CASCADE_RESTRICTED only).
	Count int
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeRecordNotFound indicates the target record does not exist.
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// ErrCodeCascadeRestricted indicates a delete was blocked by a RESTRICT
	// rule with existing child records. No mutation occurred.
	ErrCodeCascadeRestricted ErrorCode = "CASCADE_RESTRICTED"

	// ErrCodeUnknownCollection indicates an operation named a collection the
	// schema does not declare.
	ErrCodeUnknownCollection ErrorCode = "UNKNOWN_COLLECTION"

	// ErrCodeUnknownRule indicates a misconfigured rule or an unknown
	// consistency-rule name.
	ErrCodeUnknownRule ErrorCode = "UNKNOWN_RULE"

	// ErrCodeInvalidUpdate indicates an update payload that cannot be merged
	// (unknown field or mistyped value). No mutation occurred.
	ErrCodeInvalidUpdate ErrorCode = "INVALID_UPDATE"

	// ErrCodeReconciliationWriteFailed indicates the balance write for one
	// member failed during reconciliation. Other members are unaffected.
	ErrCodeReconciliationWriteFailed ErrorCode = "RECONCILIATION_WRITE_FAILED"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Collection != "" && e.RecordID != "" {
		return fmt.Sprintf("%s: %s (%s:%s)", e.Code, e.Message, e.Collection, e.RecordID)
	}
	if e.Collection != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Collection)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRecordNotFound reports whether err is a RECORD_NOT_FOUND engine error.
// Uses errors.As to handle wrapped errors.
func IsRecordNotFound(err error) bool {
	return hasCode(err, ErrCodeRecordNotFound)
}

// IsCascadeRestricted reports whether err is a CASCADE_RESTRICTED engine error.
func IsCascadeRestricted(err error) bool {
	return hasCode(err, ErrCodeCascadeRestricted)
}

// IsUnknownCollection reports whether err is an UNKNOWN_COLLECTION engine error.
func IsUnknownCollection(err error) bool {
	return hasCode(err, ErrCodeUnknownCollection)
}

// IsReconciliationWriteFailed reports whether err is a
// RECONCILIATION_WRITE_FAILED engine error.
func IsReconciliationWriteFailed(err error) bool {
	return hasCode(err, ErrCodeReconciliationWriteFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// NewRecordNotFoundError creates an EngineError for a missing target record.
func NewRecordNotFoundError(c record.Collection, id string) *EngineError {
	return &EngineError{
		Code:       ErrCodeRecordNotFound,
		Message:    fmt.Sprintf("record %s not found in %s", id, c),
		Collection: c,
		RecordID:   id,
	}
}

// NewRestrictedError creates an EngineError for a delete blocked by a
// RESTRICT rule. It carries the offending child collection and count.
func NewRestrictedError(c record.Collection, id string, child record.Collection, count int) *EngineError {
	return &EngineError{
		Code:       ErrCodeCascadeRestricted,
		Message:    fmt.Sprintf("cannot delete %s:%s, %d related %s records exist", c, id, count, child),
		Collection: c,
		RecordID:   id,
		Child:      child,
		Count:      count,
	}
}

// NewUnknownCollectionError creates an EngineError for an undeclared collection.
func NewUnknownCollectionError(c record.Collection) *EngineError {
	return &EngineError{
		Code:       ErrCodeUnknownCollection,
		Message:    fmt.Sprintf("unknown collection %q", c),
		Collection: c,
	}
}

// NewUnknownRuleError creates an EngineError for a misconfigured or unknown rule.
func NewUnknownRuleError(message string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownRule,
		Message: message,
	}
}

// NewInvalidUpdateError creates an EngineError for an unmergeable update payload.
func NewInvalidUpdateError(c record.Collection, id string, cause error) *EngineError {
	return &EngineError{
		Code:       ErrCodeInvalidUpdate,
		Message:    cause.Error(),
		Collection: c,
		RecordID:   id,
	}
}

// NewReconciliationWriteError creates an EngineError for a failed balance
// write during reconciliation.
func NewReconciliationWriteError(memberID string, cause error) *EngineError {
	return &EngineError{
		Code:       ErrCodeReconciliationWriteFailed,
		Message:    fmt.Sprintf("write balance for member %s: %v", memberID, cause),
		Collection: record.Balances,
		RecordID:   memberID,
	}
}
