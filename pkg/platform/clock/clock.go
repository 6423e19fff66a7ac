// Package clock supplies "now" to services. Time is always injected so that
// TTL arithmetic stays deterministic under test.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current instant. Implementations never go backwards.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock without the monotonic guard.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

type monotonic struct {
	mu   sync.Mutex
	src  func() time.Time
	last time.Time
}

// NewMonotonic wraps src so that successive readings are non-decreasing even if
// the source steps back (NTP adjustments, leap smearing).
func NewMonotonic(src func() time.Time) Clock {
	return &monotonic{src: src}
}

// System is the wall clock with the monotonic guard applied, truncated to
// microseconds to match PostgreSQL timestamptz precision.
func System() Clock {
	return NewMonotonic(func() time.Time {
		return time.Now().UTC().Truncate(time.Microsecond)
	})
}

func (m *monotonic) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.src()
	if now.Before(m.last) {
		return m.last
	}
	m.last = now
	return now
}

// Manual is a clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now = m.now.Add(d)
	}
	return m.now
}

// Set jumps to t if t is not earlier than the current reading.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.After(m.now) {
		m.now = t
	}
}
