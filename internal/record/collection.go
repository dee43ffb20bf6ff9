package record

import "fmt"

// Collection identifies one of the named entity collections the engine
// operates on. Collections are an enumerated tag, not free-form strings,
// so an unhandled collection is a compile-time visible switch case rather
// than a silent typo.
type Collection string

const (
	Members       Collection = "members"
	Payments      Collection = "payments"
	Subscriptions Collection = "subscriptions"
	Documents     Collection = "documents"
	Notifications Collection = "notifications"
	AuditLogs     Collection = "audit_logs"
	Balances      Collection = "balances"
)

// AllCollections lists every known collection in declaration order.
// This order is stable and is the order stores initialize collections in.
var AllCollections = []Collection{
	Members,
	Payments,
	Subscriptions,
	Documents,
	Notifications,
	AuditLogs,
	Balances,
}

// Known reports whether c names one of the declared collections.
func (c Collection) Known() bool {
	switch c {
	case Members, Payments, Subscriptions, Documents, Notifications, AuditLogs, Balances:
		return true
	}
	return false
}

// ParseCollection converts a string to a Collection, rejecting unknown names.
func ParseCollection(s string) (Collection, error) {
	c := Collection(s)
	if !c.Known() {
		return "", fmt.Errorf("unknown collection %q", s)
	}
	return c, nil
}

// Reference field names. Every foreign-key relationship is declared once as
// a (child, parent) pair mapped to one of these field names; the registry is
// the single source of truth for which pair uses which field.
const (
	FieldMemberID   = "memberId"
	FieldUploadedBy = "uploadedBy"
	FieldEntityID   = "entityId"
)
