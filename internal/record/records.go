package record

import (
	"fmt"
	"time"
)

// Record is the common surface every stored entity exposes to the engine.
//
// The engine never reaches into concrete structs: cascade rules apply
// uniformly across heterogeneous record shapes, so all it needs is the
// primary key, reference-field access by declared field name, field-level
// merge for updates, and deep copy for snapshot isolation.
//
// Ref and SetRef operate on declared reference fields only (memberId,
// uploadedBy, entityId). A cleared reference is the empty string; concrete
// types that model a nullable reference (Document.UploadedBy) translate
// that to nil.
type Record interface {
	// RecordID returns the primary key.
	RecordID() string

	// Rekey changes the primary key. Callers owning a store index must
	// re-index the record themselves.
	Rekey(id string)

	// Ref returns the value of the named reference field.
	// ok is false when the record has no such field.
	Ref(field string) (value string, ok bool)

	// SetRef assigns the named reference field. An empty value clears it.
	// Returns false when the record has no such field.
	SetRef(field, value string) bool

	// Merge applies a field-level update (merge, not replace).
	// Unknown fields and mistyped values are errors; no partial merge
	// is left behind on error.
	Merge(changes map[string]any) error

	// Clone returns a deep copy.
	Clone() Record
}

// PaymentStatus is the lifecycle state of a Payment.
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusCompleted  PaymentStatus = "completed"
	StatusFailed     PaymentStatus = "failed"
	StatusCancelled  PaymentStatus = "cancelled"
	StatusRefunded   PaymentStatus = "refunded"
)

// Known reports whether s is one of the declared payment statuses.
func (s PaymentStatus) Known() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Member is an identity record, the root of most cascades.
type Member struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

func (m *Member) RecordID() string { return m.ID }
func (m *Member) Rekey(id string)  { m.ID = id }

func (m *Member) Ref(string) (string, bool) { return "", false }
func (m *Member) SetRef(string, string) bool {
	return false
}

func (m *Member) Merge(changes map[string]any) error {
	staged := *m
	for field, v := range changes {
		switch field {
		case "id":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.ID = s
		case "name":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.Name = s
		case "email":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.Email = s
		default:
			return unknownField(Members, field)
		}
	}
	*m = staged
	return nil
}

func (m *Member) Clone() Record {
	c := *m
	return &c
}

// Payment records money received from a member.
// PreviousStatus, when set, is the status the payment held before its most
// recent transition; the consistency checker validates that transition.
type Payment struct {
	ID             string        `json:"id" yaml:"id"`
	MemberID       string        `json:"memberId" yaml:"memberId"`
	Amount         float64       `json:"amount" yaml:"amount"`
	RefundAmount   float64       `json:"refundAmount,omitempty" yaml:"refundAmount,omitempty"`
	Status         PaymentStatus `json:"status" yaml:"status"`
	PreviousStatus PaymentStatus `json:"previousStatus,omitempty" yaml:"previousStatus,omitempty"`
	UpdatedAt      time.Time     `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

func (p *Payment) RecordID() string { return p.ID }
func (p *Payment) Rekey(id string)  { p.ID = id }

func (p *Payment) Ref(field string) (string, bool) {
	if field == FieldMemberID {
		return p.MemberID, true
	}
	return "", false
}

func (p *Payment) SetRef(field, value string) bool {
	if field == FieldMemberID {
		p.MemberID = value
		return true
	}
	return false
}

func (p *Payment) Merge(changes map[string]any) error {
	staged := *p
	for field, v := range changes {
		switch field {
		case "id":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.ID = s
		case "memberId":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.MemberID = s
		case "amount":
			f, err := floatValue(field, v)
			if err != nil {
				return err
			}
			staged.Amount = f
		case "refundAmount":
			f, err := floatValue(field, v)
			if err != nil {
				return err
			}
			staged.RefundAmount = f
		case "status":
			s, err := statusValue(field, v)
			if err != nil {
				return err
			}
			staged.Status = s
		case "previousStatus":
			s, err := statusValue(field, v)
			if err != nil {
				return err
			}
			staged.PreviousStatus = s
		case "updatedAt":
			t, err := timeValue(field, v)
			if err != nil {
				return err
			}
			staged.UpdatedAt = t
		default:
			return unknownField(Payments, field)
		}
	}
	*p = staged
	return nil
}

func (p *Payment) Clone() Record {
	c := *p
	return &c
}

// Subscription is a member's dated membership window.
type Subscription struct {
	ID        string    `json:"id" yaml:"id"`
	MemberID  string    `json:"memberId" yaml:"memberId"`
	Plan      string    `json:"plan,omitempty" yaml:"plan,omitempty"`
	StartDate time.Time `json:"startDate" yaml:"startDate"`
	EndDate   time.Time `json:"endDate" yaml:"endDate"`
	IsActive  bool      `json:"isActive" yaml:"isActive"`
}

func (s *Subscription) RecordID() string { return s.ID }
func (s *Subscription) Rekey(id string)  { s.ID = id }

func (s *Subscription) Ref(field string) (string, bool) {
	if field == FieldMemberID {
		return s.MemberID, true
	}
	return "", false
}

func (s *Subscription) SetRef(field, value string) bool {
	if field == FieldMemberID {
		s.MemberID = value
		return true
	}
	return false
}

func (s *Subscription) Merge(changes map[string]any) error {
	staged := *s
	for field, v := range changes {
		switch field {
		case "id":
			str, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.ID = str
		case "memberId":
			str, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.MemberID = str
		case "plan":
			str, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.Plan = str
		case "startDate":
			t, err := timeValue(field, v)
			if err != nil {
				return err
			}
			staged.StartDate = t
		case "endDate":
			t, err := timeValue(field, v)
			if err != nil {
				return err
			}
			staged.EndDate = t
		case "isActive":
			b, ok := v.(bool)
			if !ok {
				return mistypedField(field, "bool", v)
			}
			staged.IsActive = b
		default:
			return unknownField(Subscriptions, field)
		}
	}
	*s = staged
	return nil
}

func (s *Subscription) Clone() Record {
	c := *s
	return &c
}

// Document is an uploaded file. UploadedBy is a nullable reference to the
// uploading member; severing it (SET_NULL) leaves the document in place.
type Document struct {
	ID         string  `json:"id" yaml:"id"`
	UploadedBy *string `json:"uploadedBy" yaml:"uploadedBy"`
	Filename   string  `json:"filename,omitempty" yaml:"filename,omitempty"`
}

func (d *Document) RecordID() string { return d.ID }
func (d *Document) Rekey(id string)  { d.ID = id }

func (d *Document) Ref(field string) (string, bool) {
	if field == FieldUploadedBy {
		if d.UploadedBy == nil {
			return "", true
		}
		return *d.UploadedBy, true
	}
	return "", false
}

func (d *Document) SetRef(field, value string) bool {
	if field != FieldUploadedBy {
		return false
	}
	if value == "" {
		d.UploadedBy = nil
	} else {
		v := value
		d.UploadedBy = &v
	}
	return true
}

func (d *Document) Merge(changes map[string]any) error {
	staged := *d
	for field, v := range changes {
		switch field {
		case "id":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.ID = s
		case "uploadedBy":
			if v == nil {
				staged.UploadedBy = nil
				break
			}
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.UploadedBy = &s
		case "filename":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.Filename = s
		default:
			return unknownField(Documents, field)
		}
	}
	*d = staged
	return nil
}

func (d *Document) Clone() Record {
	c := *d
	if d.UploadedBy != nil {
		v := *d.UploadedBy
		c.UploadedBy = &v
	}
	return &c
}

// Notification is a message addressed to a member.
type Notification struct {
	ID       string `json:"id" yaml:"id"`
	MemberID string `json:"memberId" yaml:"memberId"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

func (n *Notification) RecordID() string { return n.ID }
func (n *Notification) Rekey(id string)  { n.ID = id }

func (n *Notification) Ref(field string) (string, bool) {
	if field == FieldMemberID {
		return n.MemberID, true
	}
	return "", false
}

func (n *Notification) SetRef(field, value string) bool {
	if field == FieldMemberID {
		n.MemberID = value
		return true
	}
	return false
}

func (n *Notification) Merge(changes map[string]any) error {
	staged := *n
	for field, v := range changes {
		switch field {
		case "id":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.ID = s
		case "memberId":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.MemberID = s
		case "message":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.Message = s
		default:
			return unknownField(Notifications, field)
		}
	}
	*n = staged
	return nil
}

func (n *Notification) Clone() Record {
	c := *n
	return &c
}

// Balance is the cached derived balance for one member (1:1 by member id).
// Amount must track the sum of amount minus refundAmount over that member's
// completed payments; the reconciler rewrites it when it drifts.
type Balance struct {
	MemberID       string    `json:"memberId" yaml:"memberId"`
	Amount         float64   `json:"amount" yaml:"amount"`
	LastReconciled time.Time `json:"lastReconciled,omitempty" yaml:"lastReconciled,omitempty"`
}

func (b *Balance) RecordID() string { return b.MemberID }
func (b *Balance) Rekey(id string)  { b.MemberID = id }

func (b *Balance) Ref(field string) (string, bool) {
	if field == FieldMemberID {
		return b.MemberID, true
	}
	return "", false
}

func (b *Balance) SetRef(field, value string) bool {
	if field == FieldMemberID {
		b.MemberID = value
		return true
	}
	return false
}

func (b *Balance) Merge(changes map[string]any) error {
	staged := *b
	for field, v := range changes {
		switch field {
		case "memberId":
			s, err := stringValue(field, v)
			if err != nil {
				return err
			}
			staged.MemberID = s
		case "amount":
			f, err := floatValue(field, v)
			if err != nil {
				return err
			}
			staged.Amount = f
		case "lastReconciled":
			t, err := timeValue(field, v)
			if err != nil {
				return err
			}
			staged.LastReconciled = t
		default:
			return unknownField(Balances, field)
		}
	}
	*b = staged
	return nil
}

func (b *Balance) Clone() Record {
	c := *b
	return &c
}

// AuditLogEntry is an immutable record of a mutation. Entries are
// append-only: the engine writes them and never updates or deletes them.
type AuditLogEntry struct {
	ID        string         `json:"id" yaml:"id"`
	Table     Collection     `json:"table" yaml:"table"`
	Record    string         `json:"recordId" yaml:"recordId"`
	EntityID  string         `json:"entityId,omitempty" yaml:"entityId,omitempty"`
	Action    string         `json:"action" yaml:"action"`
	Changes   map[string]any `json:"changes,omitempty" yaml:"changes,omitempty"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
}

// Audit actions recorded by the engine.
const (
	AuditActionUpdate    = "UPDATE"
	AuditActionReconcile = "RECONCILE"
)

func (a *AuditLogEntry) RecordID() string { return a.ID }
func (a *AuditLogEntry) Rekey(id string)  { a.ID = id }

func (a *AuditLogEntry) Ref(field string) (string, bool) {
	if field == FieldEntityID {
		return a.EntityID, true
	}
	return "", false
}

func (a *AuditLogEntry) SetRef(field, value string) bool {
	if field == FieldEntityID {
		a.EntityID = value
		return true
	}
	return false
}

// Merge always fails: audit log entries are immutable once written.
func (a *AuditLogEntry) Merge(map[string]any) error {
	return fmt.Errorf("audit log entries are immutable")
}

func (a *AuditLogEntry) Clone() Record {
	c := *a
	if a.Changes != nil {
		c.Changes = make(map[string]any, len(a.Changes))
		for k, v := range a.Changes {
			c.Changes[k] = v
		}
	}
	return &c
}

// New returns a zero record of the given collection's concrete type.
// Used by snapshot loaders that decode by collection name.
func New(c Collection) (Record, error) {
	switch c {
	case Members:
		return &Member{}, nil
	case Payments:
		return &Payment{}, nil
	case Subscriptions:
		return &Subscription{}, nil
	case Documents:
		return &Document{}, nil
	case Notifications:
		return &Notification{}, nil
	case Balances:
		return &Balance{}, nil
	case AuditLogs:
		return &AuditLogEntry{}, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
}

// Merge value coercion helpers. Updates arrive as map[string]any decoded
// from YAML/JSON, so numbers may be int or float64 and times may be strings.

func stringValue(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", mistypedField(field, "string", v)
	}
	return s, nil
}

func floatValue(field string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, mistypedField(field, "number", v)
	}
}

func statusValue(field string, v any) (PaymentStatus, error) {
	s, ok := v.(string)
	if !ok {
		return "", mistypedField(field, "string", v)
	}
	status := PaymentStatus(s)
	if !status.Known() {
		return "", fmt.Errorf("field %q: unknown payment status %q", field, s)
	}
	return status, nil
}

func timeValue(field string, v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := ParseTime(t)
		if err != nil {
			return time.Time{}, fmt.Errorf("field %q: %w", field, err)
		}
		return parsed, nil
	default:
		return time.Time{}, mistypedField(field, "timestamp", v)
	}
}

// ParseTime accepts the two timestamp spellings the surrounding system
// uses: bare dates (2025-01-01) and RFC 3339.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t, nil
}

func unknownField(c Collection, field string) error {
	return fmt.Errorf("unknown field %q for %s", field, c)
}

func mistypedField(field, want string, got any) error {
	return fmt.Errorf("field %q: expected %s, got %T", field, want, got)
}
