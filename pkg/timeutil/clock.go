// Package timeutil provides the clock used to stamp profile writes and unlocks.
package timeutil

import (
	"sync"
	"time"
)

// StorePrecision is the resolution timestamps are truncated to before they
// are persisted. PostgreSQL timestamptz keeps microseconds, so values read
// back compare equal to the values written.
const StorePrecision = time.Microsecond

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time truncated to StorePrecision.
func (SystemClock) Now() time.Time {
	return Normalize(time.Now())
}

// Normalize converts t to UTC at StorePrecision.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(StorePrecision)
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock starting at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: Normalize(t)}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = Normalize(c.now.Add(d))
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = Normalize(t)
	c.mu.Unlock()
}
