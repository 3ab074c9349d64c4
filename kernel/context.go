package kernel

import (
	"runtime"

	"spindle/hal"
)

// Context is a thread's view of the kernel. It is passed to the thread's
// work and must only be used by that thread.
type Context struct {
	k *Kernel
	t *Thread
}

func (c *Context) Kernel() *Kernel { return c.k }

// Current returns the thread running on the calling core.
func (c *Context) Current() *Thread { return c.t.core.current.Load() }

// CoreID reports the core the calling thread is running on. The answer may
// be stale as soon as the thread can be preempted.
func (c *Context) CoreID() int { return c.t.core.id }

// Logger returns the logger of the calling core.
func (c *Context) Logger() hal.Logger { return c.t.core.log }

// Yield lets the least-run ready thread have the core. It returns
// immediately if no thread is ready.
func (c *Context) Yield() { c.k.yield(c.t) }

// Block switches away from the calling thread. fn is called with the
// blocked thread once it is off the core; it runs with interrupts disabled
// and must not block. The thread resumes after it is scheduled again.
func (c *Context) Block(fn func(*Thread)) { c.k.block(c.t, fn) }

// Stop terminates the calling thread. Deferred calls run first.
func (c *Context) Stop() {
	runtime.Goexit()
}

// Spawn creates a thread; see Kernel.Spawn.
func (c *Context) Spawn(work func(*Context)) (*Thread, error) {
	return c.k.Spawn(work)
}

// Schedule makes a blocked or newly spawned thread ready.
func (c *Context) Schedule(t *Thread) { c.k.schedule(c.t.core, t) }

// Start spawns work and schedules it.
func (c *Context) Start(work func(*Context)) (*Thread, error) {
	t, err := c.k.Spawn(work)
	if err != nil {
		return nil, err
	}
	c.Schedule(t)
	return t, nil
}

// Safepoint delivers pending interrupts. Long-running loops call it so the
// preemption timer can take effect.
func (c *Context) Safepoint() { c.k.deliver(c.t) }

// Fatal escalates err to a kernel panic.
func (c *Context) Fatal(err error) { panic(err) }

// Schedule makes a blocked or newly spawned thread ready from outside any
// thread, such as the boot flow.
func (k *Kernel) Schedule(t *Thread) { k.schedule(nil, t) }
