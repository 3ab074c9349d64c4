package kernel

import (
	"fmt"
	"runtime"
)

// handoff is what a leaving thread passes to the thread that resumes on
// the same core.
type handoff struct {
	prev *Thread
	fn   func(prev *Thread)
}

// contextSwitch moves the core from cur to next. fn runs on next's side of
// the switch, with the thread that was left, before next continues.
// contextSwitch returns when cur is resumed, possibly on another core.
func (k *Kernel) contextSwitch(cur, next *Thread, fn func(prev *Thread)) {
	k.leave(cur, next, fn)
	k.sw.Swap(cur.exec, next.exec)
	if k.m.Halted() {
		if cur.idle {
			return
		}
		runtime.Goexit()
	}
	k.resumed(cur)
}

func (k *Kernel) leave(cur, next *Thread, fn func(prev *Thread)) {
	c := cur.core
	cur.runtime.Add(int64(k.clock.Now() - cur.lastStarted))

	// Switching with interrupts masked means a spinlock is held.
	if c.cpu.InterruptsMasked() {
		panic(fmt.Sprintf("kernel: %v switching with interrupts disabled", cur))
	}
	c.cpu.DisableInterrupts()

	if next.idle {
		if next != c.idle {
			panic(fmt.Sprintf("kernel: core %d switching to %v of another core", c.id, next))
		}
	} else if !next.state.CompareAndSwap(uint32(StateReady), uint32(StateRunning)) {
		panic(fmt.Sprintf("kernel: switching to %v in state %v", next, next.State()))
	}
	if !cur.idle {
		cur.state.CompareAndSwap(uint32(StateRunning), uint32(StateBlocked))
	}

	c.pending = handoff{prev: cur, fn: fn}
	next.core = c
	c.setMe(next)
	c.switches.Add(1)
	if k.cfg.Trace {
		c.log.WriteLineString(fmt.Sprintf("switch %v -> %v", cur, next))
	}
}

// resumed runs on the resuming side of every switch, including a thread's
// first run.
func (k *Kernel) resumed(t *Thread) {
	c := t.core
	h := c.pending
	c.pending = handoff{}
	if h.fn != nil {
		h.fn(h.prev)
	}
	t.lastStarted = k.clock.Now()
	c.cpu.RestoreInterrupts(false)
}

// yield switches to the least-run ready thread, if any, and puts t back in
// the ready queue.
func (k *Kernel) yield(t *Thread) {
	if t.idle {
		panic("kernel: the idle thread must never yield")
	}
	c := t.core
	next := k.ready.pop(c)
	if next == nil {
		return
	}
	k.contextSwitch(t, next, func(prev *Thread) { k.schedule(c, prev) })
}

// block switches away from t unconditionally. fn receives t once it is off
// the core; t runs again only after someone schedules it.
func (k *Kernel) block(t *Thread, fn func(*Thread)) {
	if t.idle {
		panic("kernel: the idle thread must never block")
	}
	g := t.ctx.DisablePreemption()
	c := t.core
	next := k.ready.pop(c)
	if next == nil {
		next = c.idle
	}
	k.contextSwitch(t, next, fn)
	// Interrupts latched while t was parked are taken here, on resume.
	g.Release()
}

// schedule makes t ready. c is the calling core, or nil before any core is up.
func (k *Kernel) schedule(c *core, t *Thread) {
	if t.idle {
		panic("kernel: the idle thread must never be scheduled")
	}
	if !t.state.CompareAndSwap(uint32(StateBlocked), uint32(StateReady)) {
		panic(fmt.Sprintf("kernel: scheduling %v in state %v", t, t.State()))
	}
	k.ready.push(c, t)
	k.m.SendEvent()
}
