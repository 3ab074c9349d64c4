package hal

import (
	"sort"
	"sync"
	"time"
)

// timerClock is a Clock that can fire one-shot deadlines.
type timerClock interface {
	Clock
	arm(at time.Duration, fire func()) (cancel func())
}

type realClock struct {
	start time.Time
}

func newRealClock() *realClock {
	return &realClock{start: time.Now()}
}

func (c *realClock) Now() time.Duration { return time.Since(c.start) }

func (c *realClock) arm(at time.Duration, fire func()) func() {
	d := at - c.Now()
	if d < 0 {
		d = 0
	}
	t := time.AfterFunc(d, fire)
	return func() { t.Stop() }
}

// ManualClock is a Clock that only moves when told to.
//
// With a non-zero step, every Now call advances the clock by step after
// reading it, so a flow that reads the clock twice observes exactly one step.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	step   time.Duration
	seq    uint64
	timers []manualTimer
}

type manualTimer struct {
	id   uint64
	at   time.Duration
	fire func()
}

// NewManualClock returns a clock at zero that advances by step per reading.
func NewManualClock(step time.Duration) *ManualClock {
	return &ManualClock{step: step}
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	now := c.now
	c.now += c.step
	due := c.dueLocked()
	c.mu.Unlock()
	fireAll(due)
	return now
}

// Advance moves the clock forward by d and fires every deadline that passed.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	due := c.dueLocked()
	c.mu.Unlock()
	fireAll(due)
}

// Pending reports how many deadlines are armed.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *ManualClock) arm(at time.Duration, fire func()) func() {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.timers = append(c.timers, manualTimer{id: id, at: at, fire: fire})
	sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at < c.timers[j].at })
	due := c.dueLocked()
	c.mu.Unlock()
	fireAll(due)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, t := range c.timers {
			if t.id == id {
				c.timers = append(c.timers[:i], c.timers[i+1:]...)
				return
			}
		}
	}
}

func (c *ManualClock) dueLocked() []func() {
	var due []func()
	for len(c.timers) > 0 && c.timers[0].at <= c.now {
		due = append(due, c.timers[0].fire)
		c.timers = c.timers[1:]
	}
	return due
}

func fireAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
