package kernel

import (
	"fmt"
	"sync/atomic"

	"spindle/hal"
)

// core is the kernel's record of one CPU.
type core struct {
	id  int
	k   *Kernel
	cpu hal.CPU
	log hal.Logger

	// current is the registry slot; only the core's own flow stores to it.
	current atomic.Pointer[Thread]
	idle    *Thread

	// pending is written by the leaving side of a switch and consumed by
	// the resuming side, both on this core.
	pending handoff

	timers Spinlock[timerHeap]
	online atomic.Bool

	switches    atomic.Uint64
	preemptions atomic.Uint64
}

func newCore(k *Kernel, id int, cpu hal.CPU) *core {
	return &core{id: id, k: k, cpu: cpu, log: cpu.Logger()}
}

func (c *core) setMe(t *Thread) { c.current.Store(t) }

// PerCore holds one value per core.
type PerCore[T any] struct {
	slots []perCoreSlot[T]
}

type perCoreSlot[T any] struct {
	busy  atomic.Bool
	value T
}

// NewPerCore creates a PerCore with init(core) in each slot.
func NewPerCore[T any](k *Kernel, init func(core int) T) *PerCore[T] {
	p := &PerCore[T]{slots: make([]perCoreSlot[T], k.NumCores())}
	if init != nil {
		for i := range p.slots {
			p.slots[i].value = init(i)
		}
	}
	return p
}

// WithCurrent runs f on the calling core's value with preemption disabled,
// so the thread stays on that core. f must not yield or block; it may stop
// the thread, which releases the slot on the way out.
// Re-entering the same core's value panics.
func (p *PerCore[T]) WithCurrent(ctx *Context, f func(v *T)) {
	g := ctx.DisablePreemption()
	id := ctx.t.core.id
	s := &p.slots[id]
	if !s.busy.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("kernel: per-core value of core %d already in use", id))
	}
	p.run(s, f)
	g.Release()
}

// run clears the busy flag even when f ends the thread with Stop, whose
// unwinding runs before the thread leaves its core.
func (p *PerCore[T]) run(s *perCoreSlot[T], f func(v *T)) {
	defer s.busy.Store(false)
	f(&s.value)
}

// Each calls f with every core's value. Values may be changing underneath.
func (p *PerCore[T]) Each(f func(core int, v *T)) {
	for i := range p.slots {
		f(i, &p.slots[i].value)
	}
}
