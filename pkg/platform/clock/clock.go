// Package clock provides the registry's logical time source.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current logical time.
type Clock interface {
	Now() time.Time
}

// Monotonic truncates a wall clock to millisecond resolution and never goes
// backwards. Consecutive readings may be equal.
type Monotonic struct {
	mu     sync.Mutex
	source func() time.Time
	last   int64
}

// NewMonotonic wraps source; a nil source means time.Now.
func NewMonotonic(source func() time.Time) *Monotonic {
	if source == nil {
		source = time.Now
	}
	return &Monotonic{source: source}
}

// Now returns max(previous reading, source()) in whole milliseconds.
func (c *Monotonic) Now() time.Time {
	ms := c.source().UnixMilli()

	c.mu.Lock()
	if ms < c.last {
		ms = c.last
	}
	c.last = ms
	c.mu.Unlock()

	return time.UnixMilli(ms).UTC()
}

// Fixed is a Clock pinned to a single instant. Used by tests and tooling.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }
