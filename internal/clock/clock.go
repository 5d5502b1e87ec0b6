package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the time source and scheduler the game machines run on.
// Every suspension point (countdowns, settle delays, crash resolution)
// is a Timer created through AfterFunc so it can be cancelled.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	// Stop reports whether the call prevented the timer from firing.
	Stop() bool
}

type clockworkClock struct {
	clockwork.Clock
}

func New() Clock {
	return clockworkClock{clockwork.NewRealClock()}
}

func (c clockworkClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.Clock.AfterFunc(d, f)
}

// Fake is a virtual clock over clockwork.FakeClock. Advance returns only
// after every callback that came due has finished.
type Fake struct {
	fc *clockwork.FakeClock

	mu      sync.Mutex
	settled *sync.Cond
	due     map[*fakeTimer]time.Time
}

type fakeTimer struct {
	clock *Fake
	timer clockwork.Timer
}

func NewFake(start time.Time) *Fake {
	c := &Fake{
		fc:  clockwork.NewFakeClockAt(start),
		due: make(map[*fakeTimer]time.Time),
	}
	c.settled = sync.NewCond(&c.mu)
	return c
}

func (c *Fake) Now() time.Time {
	return c.fc.Now()
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	t := &fakeTimer{clock: c}

	c.mu.Lock()
	c.due[t] = c.fc.Now().Add(d)
	c.mu.Unlock()

	t.timer = c.fc.AfterFunc(d, func() {
		defer c.finish(t)
		f()
	})
	return t
}

// Advance moves virtual time forward by d and waits for the callbacks of
// every timer that came due. Timers those callbacks schedule are measured
// from the new time.
func (c *Fake) Advance(d time.Duration) {
	c.fc.Advance(d)

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.runningLocked() {
		c.settled.Wait()
	}
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.due)
}

func (c *Fake) runningLocked() bool {
	now := c.fc.Now()
	for _, at := range c.due {
		if !at.After(now) {
			return true
		}
	}
	return false
}

func (c *Fake) finish(t *fakeTimer) {
	c.mu.Lock()
	delete(c.due, t)
	c.mu.Unlock()
	c.settled.Broadcast()
}

func (t *fakeTimer) Stop() bool {
	if !t.timer.Stop() {
		return false
	}
	t.clock.finish(t)
	return true
}
