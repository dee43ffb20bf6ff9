// Package testutil provides deterministic clocks and id sources for tests.
package testutil

import (
	"sync"
	"time"
)

// FixedClock is a thread-safe wall clock pinned to a known instant.
//
// Tests pin the clock so date-window checks and audit timestamps are
// reproducible, and advance it explicitly when a scenario needs time to
// pass.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock pinned to t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// NewFixedClockAt parses an RFC 3339 timestamp and pins a clock to it.
// Panics on a malformed timestamp; intended for test literals.
func NewFixedClockAt(rfc3339 string) *FixedClock {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		panic(err)
	}
	return NewFixedClock(t)
}

// Now returns the pinned instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to a new instant.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
