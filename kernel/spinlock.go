package kernel

import (
	"runtime"
	"sync/atomic"

	"spindle/hal"
)

// Spinlock is a busy-wait lock for short critical sections. Local
// interrupts stay masked while it is held, so the holder cannot be
// preempted and must not yield, block or stop. Waiters park in wfe between
// attempts; every unlock signals an event.
//
// The zero value is an unlocked Spinlock holding the zero T.
type Spinlock[T any] struct {
	locked atomic.Bool
	value  T
}

// NewSpinlock returns an unlocked Spinlock holding v.
func NewSpinlock[T any](v T) *Spinlock[T] {
	return &Spinlock[T]{value: v}
}

// SpinGuard is proof of holding a Spinlock.
type SpinGuard[T any] struct {
	l    *Spinlock[T]
	v    *T
	c    *core
	prev hal.IRQState
	t    *Thread
}

// Lock acquires l on the calling thread's core.
func (l *Spinlock[T]) Lock(ctx *Context) Guard[T] {
	g := l.acquire(ctx.t.core)
	g.t = ctx.t
	return g
}

// TryLock acquires l if it is free.
func (l *Spinlock[T]) TryLock(ctx *Context) (Guard[T], bool) {
	c := ctx.t.core
	prev := c.cpu.DisableInterrupts()
	if !l.locked.CompareAndSwap(false, true) {
		c.cpu.RestoreInterrupts(prev)
		return nil, false
	}
	return &SpinGuard[T]{l: l, v: &l.value, c: c, prev: prev, t: ctx.t}, true
}

// acquire spins until l is held by core c. A nil core is the boot flow,
// before any core is online.
func (l *Spinlock[T]) acquire(c *core) *SpinGuard[T] {
	for {
		if c == nil {
			if l.locked.CompareAndSwap(false, true) {
				return &SpinGuard[T]{l: l, v: &l.value}
			}
			runtime.Gosched()
			continue
		}

		prev := c.cpu.DisableInterrupts()
		if l.locked.CompareAndSwap(false, true) {
			return &SpinGuard[T]{l: l, v: &l.value, c: c, prev: prev}
		}
		c.cpu.RestoreInterrupts(prev)
		c.cpu.WaitForEvent()
	}
}

// Value returns the protected value. It must not be used after Unlock.
func (g *SpinGuard[T]) Value() *T { return g.v }

// Unlock releases the lock, restores the interrupt state captured by Lock
// and services any interrupt that arrived meanwhile.
func (g *SpinGuard[T]) Unlock() {
	g.release()
	if g.t != nil && !g.prev.Masked() {
		g.t.k.deliver(g.t)
	}
}

func (g *SpinGuard[T]) release() {
	l := g.l
	if l == nil {
		panic("kernel: spinlock guard unlocked twice")
	}
	g.l = nil
	if !l.locked.Swap(false) {
		panic("kernel: unlock of an unlocked spinlock")
	}
	if g.c != nil {
		g.c.k.m.SendEvent()
		g.c.cpu.RestoreInterrupts(g.prev)
	}
}
