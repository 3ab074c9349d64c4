package kernel

import (
	"fmt"
	"sync/atomic"
)

// BlockingLock is a mutex that puts contending threads to sleep.
//
// count is 1 when the lock is free; a value n <= 0 means it is held and
// -n threads are waiting or about to wait. Waiters are woken most recent
// first.
type BlockingLock[T any] struct {
	count   atomic.Int64
	waiters waitStack
	value   T
}

// NewBlockingLock returns an unlocked BlockingLock holding v.
func NewBlockingLock[T any](v T) *BlockingLock[T] {
	l := &BlockingLock[T]{value: v}
	l.count.Store(1)
	return l
}

// BlockingGuard is proof of holding a BlockingLock.
type BlockingGuard[T any] struct {
	l   *BlockingLock[T]
	ctx *Context
}

// Lock acquires l, blocking the calling thread while another holds it.
func (l *BlockingLock[T]) Lock(ctx *Context) Guard[T] {
	t := ctx.t
	if t.idle {
		panic("kernel: the idle thread must never block")
	}

	// The thread must reach the wait stack before an unlocker looks for it.
	pg := ctx.DisablePreemption()
	if l.count.Add(-1) != 0 {
		ctx.k.block(t, l.waiters.push)
		if n := l.count.Load(); n > 0 {
			panic(fmt.Sprintf("kernel: blocking lock woke %v with count %d", t, n))
		}
	}
	pg.Release()
	return &BlockingGuard[T]{l: l, ctx: ctx}
}

// Value returns the protected value. It must not be used after Unlock.
func (g *BlockingGuard[T]) Value() *T { return &g.l.value }

// Unlock releases the lock and hands it to the most recent waiter, if any.
func (g *BlockingGuard[T]) Unlock() {
	l := g.l
	if l == nil {
		panic("kernel: blocking lock guard unlocked twice")
	}
	g.l = nil

	n := l.count.Add(1)
	if n > 1 {
		panic("kernel: unlock of an unlocked blocking lock")
	}
	if n == 1 {
		return
	}

	// A waiter has counted itself but may still be switching out.
	ctx := g.ctx
	for {
		if w := l.waiters.pop(); w != nil {
			ctx.Schedule(w)
			return
		}
		ctx.t.core.cpu.Relax()
		ctx.Safepoint()
	}
}

// Waiting reports whether any thread is parked on l.
func (l *BlockingLock[T]) Waiting() bool { return !l.waiters.empty() }
