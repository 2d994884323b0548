package engine

import "time"

// Clock supplies wall time for expiry cutoffs and lifecycle event
// timestamps.
//
// Production uses SystemClock. Tests inject testutil.FakeClock so expiry
// can be driven without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
//
// Thread-safety: SystemClock is stateless and safe for concurrent use.
type SystemClock struct{}

// Now returns the current wall time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
