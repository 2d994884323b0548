package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of FakeClock.
var Epoch = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

// FakeClock is a thread-safe wall clock for tests.
//
// Every call to Now() advances the clock by Step (default one second) so
// rows written in sequence get distinct, ordered timestamps. Advance moves
// it further for expiry tests.
//
// Satisfies both engine.Clock and store.Clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFakeClock creates a clock starting at Epoch.
//
// The first call to Now() returns Epoch + 1s.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: Epoch, step: time.Second}
}

// Now advances the clock by its step and returns the new time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Current returns the time without advancing.
func (c *FakeClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset returns the clock to Epoch.
func (c *FakeClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch
}
