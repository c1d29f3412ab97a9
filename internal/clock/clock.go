package clock

import "time"

// Clock provides the current time so that record timestamps can be
// controlled in tests
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Fake is a manually driven Clock
type Fake struct {
	CurrentTime time.Time
	Step        time.Duration
}

// NewFake creates a Fake that starts at t and moves forward by step on every call to Now
func NewFake(t time.Time, step time.Duration) *Fake {
	return &Fake{CurrentTime: t, Step: step}
}

// Now returns the fake time and advances it by Step
func (c *Fake) Now() time.Time {
	now := c.CurrentTime
	c.CurrentTime = c.CurrentTime.Add(c.Step)
	return now
}
