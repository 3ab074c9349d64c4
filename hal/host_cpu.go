package hal

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

type hostCPU struct {
	id int
	h  *Host

	masked  atomic.Bool
	pending atomic.Bool
	event   chan struct{}

	mu     sync.Mutex
	cancel func()

	logger Logger
}

func newHostCPU(id int, h *Host) *hostCPU {
	c := &hostCPU{
		id:     id,
		h:      h,
		event:  make(chan struct{}, 1),
		logger: h.logger.forCore(id),
	}
	// Cores come out of reset with interrupts masked.
	c.masked.Store(true)
	return c
}

func (c *hostCPU) ID() int        { return c.id }
func (c *hostCPU) Logger() Logger { return c.logger }

func (c *hostCPU) DisableInterrupts() IRQState {
	return IRQState(c.masked.Swap(true))
}

func (c *hostCPU) RestoreInterrupts(s IRQState) {
	c.masked.Store(bool(s))
}

func (c *hostCPU) InterruptsMasked() bool { return c.masked.Load() }

func (c *hostCPU) TakeIRQ() (IRQ, bool) {
	if c.masked.Load() {
		return IRQNone, false
	}
	if c.pending.Swap(false) {
		return IRQTimer, true
	}
	return IRQNone, false
}

func (c *hostCPU) SetTimerDeadline(at time.Duration) {
	if c.h.Halted() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = c.h.clock.arm(at, c.raise)
}

func (c *hostCPU) stopTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *hostCPU) raise() {
	c.pending.Store(true)
	c.signal()
}

func (c *hostCPU) signal() {
	select {
	case c.event <- struct{}{}:
	default:
	}
}

func (c *hostCPU) WaitForEvent() {
	select {
	case <-c.event:
	case <-c.h.halt:
	}
}

func (c *hostCPU) Relax() {
	if c.h.oversubscribed {
		runtime.Gosched()
	}
}

func (c *hostCPU) String() string { return fmt.Sprintf("cpu%d", c.id) }
