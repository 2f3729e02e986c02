// Package internal provides internal utilities for the rrweb package.
package internal

import (
	"sync"
	"time"
)

// Clock is an interface for obtaining the current time.
// This abstraction allows for deterministic testing of event timing.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now, which carries a monotonic reading.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// MockClock is a Clock whose time only moves when told to.
// It is safe for concurrent use.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMockClock creates a MockClock initialized to t.
// A zero t starts the clock at a fixed, non-zero instant.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &MockClock{current: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the clock forward by d.
// Panics if d is negative.
func (m *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("MockClock.Advance: duration must be non-negative")
	}
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}
