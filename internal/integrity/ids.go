package integrity

import (
	"time"

	"github.com/google/uuid"
)

// IDSource generates identifiers for records the engine creates (audit log
// entries). Implemented by UUIDv7Source (production) and the test sequence
// source in internal/testutil.
type IDSource interface {
	NewID() string
}

// Clock supplies the engine's notion of "now" for date-window checks, audit
// timestamps and reconciliation stamps. Production uses SystemClock; tests
// inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// UUIDv7Source generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so audit entries
// sort by creation time when ordered by id.
//
// Thread-safety: UUIDv7Source is stateless and safe for concurrent use.
type UUIDv7Source struct{}

// NewID returns a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Source) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
