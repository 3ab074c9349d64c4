package kernel

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"spindle/hal"
)

// ThreadID identifies a thread for its whole lifetime. Ids are never reused.
type ThreadID uint64

func (id ThreadID) Uint64() uint64 { return uint64(id) }

func (id ThreadID) String() string { return strconv.FormatUint(uint64(id), 10) }

// State is the scheduling state of a thread.
type State uint32

const (
	// StateBlocked threads are neither running nor ready; new threads start here.
	StateBlocked State = iota
	StateReady
	StateRunning
	StateDead
	// StateIdle marks an idle thread, which is always either running or
	// parked on its own core.
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateBlocked:
		return "blocked"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDead:
		return "dead"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Thread is a handle to a thread control block. Handles are plain pointers;
// the stack region is released when a stopped thread is reaped.
type Thread struct {
	id   ThreadID
	k    *Kernel
	ctx  *Context
	idle bool

	exec       hal.ExecContext
	stack      hal.Stack
	stackFreed atomic.Bool
	work       func(*Context)

	state   atomic.Uint32
	runtime atomic.Int64 // nanoseconds

	// Only touched by the flow running the thread.
	lastStarted time.Duration
	delivering  bool

	preemptible       atomic.Bool
	pendingPreemption atomic.Bool

	// core is set by whoever resumes the thread, before the handoff.
	core *core

	// next links the thread into a wait list or the dead list.
	next atomic.Pointer[Thread]
}

func (k *Kernel) newThread(work func(*Context)) *Thread {
	t := &Thread{
		id:   ThreadID(k.nextID.Add(1)),
		k:    k,
		work: work,
	}
	t.ctx = &Context{k: k, t: t}
	return t
}

func (t *Thread) ID() ThreadID { return t.id }

// Runtime reports the CPU time accumulated up to the thread's last switch.
func (t *Thread) Runtime() time.Duration { return time.Duration(t.runtime.Load()) }

func (t *Thread) State() State { return State(t.state.Load()) }

// IsIdle reports whether t is a core's idle thread.
func (t *Thread) IsIdle() bool { return t.idle }

// Stack returns the stack region owned by the thread.
func (t *Thread) Stack() hal.Stack { return t.stack }

func (t *Thread) String() string {
	if t == nil {
		return "thread <nil>"
	}
	if t.idle {
		return "idle " + t.id.String()
	}
	return "thread " + t.id.String()
}

// trampoline is the first code a thread runs on its own context.
func (k *Kernel) trampoline(t *Thread) {
	defer k.finish(t)
	k.resumed(t)
	k.deliver(t)
	t.work(t.ctx)
}

// finish runs when a thread's work returns, calls Stop or panics.
func (k *Kernel) finish(t *Thread) {
	if r := recover(); r != nil {
		k.kernelPanic(t.core, t, r)
		return
	}
	if k.m.Halted() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			k.kernelPanic(t.core, t, r)
		}
	}()
	k.exit(t)
}

// exit releases what the dead list holds, then leaves t's context for good.
// The last active thread halts the machine instead.
func (k *Kernel) exit(t *Thread) {
	t.preemptible.Store(false)
	k.reap()

	if k.active.Add(-1) == 0 {
		t.state.Store(uint32(StateDead))
		k.log.WriteLineString("kernel: last thread stopped, halting")
		k.m.Shutdown(0)
		return
	}

	c := t.core
	next := k.ready.pop(c)
	if next == nil {
		next = c.idle
	}
	t.state.Store(uint32(StateDead))
	k.leave(t, next, k.dead.push)
	k.sw.Handoff(next.exec)
}

// reap frees the stacks of dead threads and reports how many it freed.
func (k *Kernel) reap() int {
	n := 0
	for t := k.dead.pop(); t != nil; t = k.dead.pop() {
		k.freeStack(t)
		n++
	}
	return n
}

func (k *Kernel) freeStack(t *Thread) {
	if t.State() != StateDead {
		panic(fmt.Sprintf("kernel: reaping %v in state %v", t, t.State()))
	}
	if t.stackFreed.Swap(true) {
		panic(fmt.Sprintf("kernel: stack of %v freed twice", t))
	}
	if err := k.mem.FreeStack(t.stack); err != nil {
		panic(fmt.Errorf("kernel: %v: %w", t, err))
	}
}
