package testing

import (
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

// SteppingClock is a FakeClock whose After advances simulated time by the
// requested duration, so timed waits return at once in tests.
type SteppingClock struct {
	*testingclock.FakeClock
}

// NewSteppingClock returns a SteppingClock starting at t.
func NewSteppingClock(t time.Time) *SteppingClock {
	return &SteppingClock{FakeClock: testingclock.NewFakeClock(t)}
}

// After registers a waiter for d and steps the clock past it.
func (c *SteppingClock) After(d time.Duration) <-chan time.Time {
	ch := c.FakeClock.After(d)
	c.Step(d)
	return ch
}
