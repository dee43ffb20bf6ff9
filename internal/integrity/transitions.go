package integrity

import "github.com/membercore/integra/internal/record"

// legalTransitions is the permitted prior-to-next status table for the
// payment lifecycle. Terminal states (cancelled, refunded) allow nothing.
var legalTransitions = map[record.PaymentStatus][]record.PaymentStatus{
	record.StatusPending:    {record.StatusProcessing, record.StatusCancelled, record.StatusFailed},
	record.StatusProcessing: {record.StatusCompleted, record.StatusFailed, record.StatusCancelled},
	record.StatusCompleted:  {record.StatusRefunded},
	record.StatusFailed:     {record.StatusPending},
	record.StatusCancelled:  {},
	record.StatusRefunded:   {},
}

// LegalTransition reports whether a payment may move from one status to
// another. Unknown statuses allow nothing.
func LegalTransition(from, to record.PaymentStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
