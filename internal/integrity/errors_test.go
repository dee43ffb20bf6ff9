package integrity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/membercore/integra/internal/record"
)

func TestEngineErrorFormatting(t *testing.T) {
	err := NewRecordNotFoundError(record.Members, "MEM-404")
	assert.Equal(t, "RECORD_NOT_FOUND: record MEM-404 not found in members (members:MEM-404)", err.Error())

	err = NewUnknownCollectionError(record.Collection("invoices"))
	assert.Equal(t, `UNKNOWN_COLLECTION: unknown collection "invoices" (invoices)`, err.Error())

	err = NewUnknownRuleError("no consistency rule for \"invoices\"")
	assert.Equal(t, `UNKNOWN_RULE: no consistency rule for "invoices"`, err.Error())
}

func TestRestrictedErrorFields(t *testing.T) {
	err := NewRestrictedError(record.Members, "MEM-001", record.Payments, 3)
	assert.Equal(t, ErrCodeCascadeRestricted, err.Code)
	assert.Equal(t, record.Payments, err.Child)
	assert.Equal(t, 3, err.Count)
	assert.Contains(t, err.Error(), "cannot delete members:MEM-001, 3 related payments records exist")
}

func TestPredicatesUnwrap(t *testing.T) {
	base := NewRecordNotFoundError(record.Members, "MEM-404")
	wrapped := fmt.Errorf("performing delete: %w", base)

	assert.True(t, IsRecordNotFound(wrapped))
	assert.False(t, IsCascadeRestricted(wrapped))
	assert.False(t, IsRecordNotFound(errors.New("unrelated")))
	assert.False(t, IsRecordNotFound(nil))

	joined := errors.Join(
		NewReconciliationWriteError("MEM-001", errors.New("disk full")),
		NewReconciliationWriteError("MEM-002", errors.New("disk full")),
	)
	assert.True(t, IsReconciliationWriteFailed(joined))
}
