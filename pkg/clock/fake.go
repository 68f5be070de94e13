package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when told to. After advances
// the clock by the requested duration and fires at once, so a loop that
// waits on After runs to completion without real delays while still seeing
// time pass.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	waited time.Duration
	afters int
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{now: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
		c.waited += d
	}
	c.afters++
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Waited returns the total duration consumed through After.
func (c *FakeClock) Waited() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waited
}

// AfterCount returns how many times After was called.
func (c *FakeClock) AfterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.afters
}
