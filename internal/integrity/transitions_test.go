package integrity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/membercore/integra/internal/record"
)

func TestLegalTransitionTable(t *testing.T) {
	all := []record.PaymentStatus{
		record.StatusPending,
		record.StatusProcessing,
		record.StatusCompleted,
		record.StatusFailed,
		record.StatusCancelled,
		record.StatusRefunded,
	}

	legal := map[record.PaymentStatus][]record.PaymentStatus{
		record.StatusPending:    {record.StatusProcessing, record.StatusCancelled, record.StatusFailed},
		record.StatusProcessing: {record.StatusCompleted, record.StatusFailed, record.StatusCancelled},
		record.StatusCompleted:  {record.StatusRefunded},
		record.StatusFailed:     {record.StatusPending},
		record.StatusCancelled:  {},
		record.StatusRefunded:   {},
	}

	// Exhaustive: every (from, to) pair is either in the legal set or illegal.
	for _, from := range all {
		allowed := make(map[record.PaymentStatus]bool)
		for _, to := range legal[from] {
			allowed[to] = true
		}
		for _, to := range all {
			t.Run(fmt.Sprintf("%s_to_%s", from, to), func(t *testing.T) {
				assert.Equal(t, allowed[to], LegalTransition(from, to))
			})
		}
	}
}

func TestLegalTransitionUnknownStatus(t *testing.T) {
	assert.False(t, LegalTransition(record.PaymentStatus("exploded"), record.StatusPending))
	assert.False(t, LegalTransition(record.StatusPending, record.PaymentStatus("exploded")))
	assert.False(t, LegalTransition("", record.StatusPending))
}

func TestNoSelfTransitions(t *testing.T) {
	for from := range legalTransitions {
		assert.False(t, LegalTransition(from, from), "self transition %s", from)
	}
}
