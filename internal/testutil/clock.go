package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall-clock reading a ManualClock starts at.
var Epoch = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// ManualClock is a clock that only moves when told to.
//
// It satisfies feature.Clock, so timing tests advance time explicitly
// instead of sleeping, and elapsed durations are exact.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu     sync.Mutex
	offset time.Duration
}

// NewManualClock creates a clock reading Epoch.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns Epoch plus every duration passed to Advance.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Epoch.Add(c.offset)
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}
