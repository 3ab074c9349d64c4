package kernel

import (
	"runtime"

	"spindle/hal"
)

// PreemptionGuard keeps the calling thread from being preempted until
// Release. Guards nest; only the outermost Release restores preemption.
type PreemptionGuard struct {
	ctx      *Context
	was      bool
	released bool
}

// DisablePreemption returns a guard that must be released by the same thread.
func (c *Context) DisablePreemption() *PreemptionGuard {
	return &PreemptionGuard{ctx: c, was: c.t.preemptible.Swap(false)}
}

// Release restores preemption. If a preemption was deferred while the
// guard was held, the thread yields before Release returns.
func (g *PreemptionGuard) Release() {
	if g.released {
		panic("kernel: preemption guard released twice")
	}
	g.released = true
	if !g.was {
		return
	}

	t := g.ctx.t
	if t.idle {
		panic("kernel: preemption restored on the idle thread")
	}
	t.preemptible.Store(true)
	if t.pendingPreemption.Swap(false) {
		g.ctx.k.yield(t)
	}
	g.ctx.k.deliver(t)
}

// deliver services the interrupts latched on the core running t. It must be
// called by t's own flow.
func (k *Kernel) deliver(t *Thread) {
	if t.delivering {
		return
	}
	t.delivering = true
	defer func() { t.delivering = false }()

	for {
		if k.m.Halted() {
			if t.idle {
				return
			}
			runtime.Goexit()
		}
		c := t.core
		irq, ok := c.cpu.TakeIRQ()
		if !ok {
			return
		}
		if irq == hal.IRQTimer && k.tick(c) {
			k.preempt(t)
		}
	}
}

// preempt yields t if it is preemptible and records the preemption otherwise.
func (k *Kernel) preempt(t *Thread) {
	if t.idle {
		return
	}
	if !t.preemptible.Load() {
		t.pendingPreemption.Store(true)
		return
	}
	t.core.preemptions.Add(1)
	k.yield(t)
}
