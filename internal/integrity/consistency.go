package integrity

import (
	"fmt"
	"math"
	"time"

	"github.com/membercore/integra/internal/dataset"
	"github.com/membercore/integra/internal/record"
)

// BalanceTolerance is the floating-point slack allowed between a cached
// balance and the value derived from completed payments.
const BalanceTolerance = 0.01

// Date-window violations reported by the subscription rule.
const (
	IssueActivePastEnd     = "active subscription with past end date"
	IssueActiveFutureStart = "active subscription with future start date"
	IssueInactiveInRange   = "inactive subscription within valid date range"
)

const dateLayout = "2006-01-02"

// Entity names a consistency rule for the string-keyed dispatch entry point.
type Entity string

const (
	EntityBalances      Entity = "balances"
	EntitySubscriptions Entity = "subscriptions"
	EntityPayments      Entity = "payments"
)

// Checker runs the named consistency rules over one dataset snapshot.
// Rules are pure: they read the snapshot and report drift, never mutate.
type Checker struct {
	store *dataset.Store
	clock Clock
}

// NewChecker creates a checker over a store. A nil clock means system time.
func NewChecker(store *dataset.Store, clock Clock) *Checker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Checker{store: store, clock: clock}
}

// BalanceCheck is the balance rule's verdict for one member.
// Difference is calculated minus recorded.
type BalanceCheck struct {
	Consistent bool    `json:"consistent"`
	Calculated float64 `json:"calculated"`
	Recorded   float64 `json:"recorded"`
	Difference float64 `json:"difference"`
}

// SubscriptionViolation is one date-window inconsistency.
// The date fields carry whichever boundary the violation is about.
type SubscriptionViolation struct {
	SubscriptionID string `json:"subscription_id"`
	Issue          string `json:"issue"`
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	DateRange      string `json:"date_range,omitempty"`
}

// SubscriptionCheck is the subscription rule's verdict for one member.
type SubscriptionCheck struct {
	Consistent bool                    `json:"consistent"`
	Violations []SubscriptionViolation `json:"violations"`
}

// TransitionViolation is one illegal payment status transition.
type TransitionViolation struct {
	PaymentID  string    `json:"payment_id"`
	Transition string    `json:"transition"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// TransitionCheck is the payment-transition rule's verdict (global, not
// scoped to a member).
type TransitionCheck struct {
	Consistent bool                  `json:"consistent"`
	Violations []TransitionViolation `json:"violations"`
}

// CheckResult is the verdict of one named rule, as returned by the
// string-keyed Run dispatch. Exactly one of the payload fields is set.
type CheckResult struct {
	Entity        Entity             `json:"entity"`
	MemberID      string             `json:"member_id,omitempty"`
	Balance       *BalanceCheck      `json:"balance,omitempty"`
	Subscriptions *SubscriptionCheck `json:"subscriptions,omitempty"`
	Payments      *TransitionCheck   `json:"payments,omitempty"`
}

// Consistent reports the verdict of whichever rule ran.
func (r *CheckResult) Consistent() bool {
	switch {
	case r.Balance != nil:
		return r.Balance.Consistent
	case r.Subscriptions != nil:
		return r.Subscriptions.Consistent
	case r.Payments != nil:
		return r.Payments.Consistent
	}
	return false
}

// MemberBalanceCheck pairs a member id with its balance verdict.
type MemberBalanceCheck struct {
	MemberID string `json:"member_id"`
	BalanceCheck
}

// MemberSubscriptionCheck pairs a member id with its subscription verdict.
type MemberSubscriptionCheck struct {
	MemberID string `json:"member_id"`
	SubscriptionCheck
}

// FullCheck aggregates every rule over the whole snapshot.
// Consistent is true iff every sub-check is consistent.
type FullCheck struct {
	Consistent    bool                      `json:"consistent"`
	Balances      []MemberBalanceCheck      `json:"balances"`
	Subscriptions []MemberSubscriptionCheck `json:"subscriptions"`
	Payments      TransitionCheck           `json:"payments"`
}

// Run dispatches one named rule. Balance and subscription rules require a
// member id scope; the payment rule is global and ignores scopeID.
// An unknown entity is an UNKNOWN_RULE error.
func (c *Checker) Run(entity Entity, scopeID string) (*CheckResult, error) {
	c.store.RLock()
	defer c.store.RUnlock()

	switch entity {
	case EntityBalances:
		if scopeID == "" {
			return nil, fmt.Errorf("balance check requires a member id")
		}
		check := c.checkBalance(scopeID)
		return &CheckResult{Entity: entity, MemberID: scopeID, Balance: &check}, nil

	case EntitySubscriptions:
		if scopeID == "" {
			return nil, fmt.Errorf("subscription check requires a member id")
		}
		check := c.checkSubscriptions(scopeID)
		return &CheckResult{Entity: entity, MemberID: scopeID, Subscriptions: &check}, nil

	case EntityPayments:
		check := c.checkTransitions()
		return &CheckResult{Entity: entity, Payments: &check}, nil

	default:
		return nil, NewUnknownRuleError(fmt.Sprintf("no consistency rule for %q", entity))
	}
}

// CheckBalance runs the balance rule for one member.
func (c *Checker) CheckBalance(memberID string) BalanceCheck {
	c.store.RLock()
	defer c.store.RUnlock()
	return c.checkBalance(memberID)
}

// CheckSubscriptions runs the subscription date-window rule for one member.
func (c *Checker) CheckSubscriptions(memberID string) SubscriptionCheck {
	c.store.RLock()
	defer c.store.RUnlock()
	return c.checkSubscriptions(memberID)
}

// CheckPaymentTransitions runs the global payment-transition rule.
func (c *Checker) CheckPaymentTransitions() TransitionCheck {
	c.store.RLock()
	defer c.store.RUnlock()
	return c.checkTransitions()
}

// RunFull runs the balance and subscription rules once per distinct member
// id appearing in payments, plus the global transition rule.
func (c *Checker) RunFull() FullCheck {
	c.store.RLock()
	defer c.store.RUnlock()

	full := FullCheck{
		Consistent:    true,
		Balances:      []MemberBalanceCheck{},
		Subscriptions: []MemberSubscriptionCheck{},
	}

	for _, memberID := range c.store.MemberIDsWithPayments() {
		balance := c.checkBalance(memberID)
		if !balance.Consistent {
			full.Consistent = false
		}
		full.Balances = append(full.Balances, MemberBalanceCheck{MemberID: memberID, BalanceCheck: balance})

		subs := c.checkSubscriptions(memberID)
		if !subs.Consistent {
			full.Consistent = false
		}
		full.Subscriptions = append(full.Subscriptions, MemberSubscriptionCheck{MemberID: memberID, SubscriptionCheck: subs})
	}

	full.Payments = c.checkTransitions()
	if !full.Payments.Consistent {
		full.Consistent = false
	}
	return full
}

// checkBalance derives the member's balance from completed payments and
// compares it against the cached record (0 when absent).
func (c *Checker) checkBalance(memberID string) BalanceCheck {
	var calculated float64
	for _, rec := range c.store.All(record.Payments) {
		p, ok := rec.(*record.Payment)
		if !ok || p.MemberID != memberID {
			continue
		}
		if p.Status == record.StatusCompleted {
			calculated += p.Amount - p.RefundAmount
		}
	}

	var recorded float64
	if b, ok := c.store.Balance(memberID); ok {
		recorded = b.Amount
	}

	return BalanceCheck{
		Consistent: math.Abs(calculated-recorded) < BalanceTolerance,
		Calculated: calculated,
		Recorded:   recorded,
		Difference: calculated - recorded,
	}
}

// checkSubscriptions classifies each of the member's subscriptions against
// "now". The three violation conditions are mutually exclusive for records
// whose start precedes their end, so one pass yields at most one violation
// per subscription.
func (c *Checker) checkSubscriptions(memberID string) SubscriptionCheck {
	now := c.clock.Now()
	check := SubscriptionCheck{Consistent: true, Violations: []SubscriptionViolation{}}

	for _, rec := range c.store.All(record.Subscriptions) {
		sub, ok := rec.(*record.Subscription)
		if !ok || sub.MemberID != memberID {
			continue
		}

		if sub.IsActive {
			if sub.EndDate.Before(now) {
				check.Violations = append(check.Violations, SubscriptionViolation{
					SubscriptionID: sub.ID,
					Issue:          IssueActivePastEnd,
					EndDate:        sub.EndDate.Format(dateLayout),
				})
			}
			if sub.StartDate.After(now) {
				check.Violations = append(check.Violations, SubscriptionViolation{
					SubscriptionID: sub.ID,
					Issue:          IssueActiveFutureStart,
					StartDate:      sub.StartDate.Format(dateLayout),
				})
			}
		} else {
			if !sub.StartDate.After(now) && !sub.EndDate.Before(now) {
				check.Violations = append(check.Violations, SubscriptionViolation{
					SubscriptionID: sub.ID,
					Issue:          IssueInactiveInRange,
					DateRange:      fmt.Sprintf("%s to %s", sub.StartDate.Format(dateLayout), sub.EndDate.Format(dateLayout)),
				})
			}
		}
	}

	check.Consistent = len(check.Violations) == 0
	return check
}

// checkTransitions verifies every payment carrying a previous status against
// the legal transition table.
func (c *Checker) checkTransitions() TransitionCheck {
	check := TransitionCheck{Consistent: true, Violations: []TransitionViolation{}}

	for _, rec := range c.store.All(record.Payments) {
		p, ok := rec.(*record.Payment)
		if !ok || p.PreviousStatus == "" {
			continue
		}
		if !LegalTransition(p.PreviousStatus, p.Status) {
			check.Violations = append(check.Violations, TransitionViolation{
				PaymentID:  p.ID,
				Transition: fmt.Sprintf("%s → %s", p.PreviousStatus, p.Status),
				Timestamp:  p.UpdatedAt,
			})
		}
	}

	check.Consistent = len(check.Violations) == 0
	return check
}
