package hal

import (
	"runtime"
	"sync/atomic"
)

// hostContext is a goroutine that runs only while it holds a core.
type hostContext struct {
	wake    chan struct{}
	entry   func()
	started atomic.Bool
	adopted bool
}

func (*hostContext) execContext() {}

type hostSwitcher struct {
	halt <-chan struct{}
}

func (s *hostSwitcher) NewContext(entry func()) ExecContext {
	return &hostContext{wake: make(chan struct{}, 1), entry: entry}
}

func (s *hostSwitcher) Adopt() ExecContext {
	c := &hostContext{wake: make(chan struct{}, 1), adopted: true}
	c.started.Store(true)
	return c
}

func (s *hostSwitcher) Swap(from, to ExecContext) {
	f := from.(*hostContext)
	s.resume(to.(*hostContext))
	select {
	case <-f.wake:
	case <-s.halt:
		if f.adopted {
			return
		}
		runtime.Goexit()
	}
}

func (s *hostSwitcher) Handoff(to ExecContext) {
	s.resume(to.(*hostContext))
}

func (s *hostSwitcher) resume(c *hostContext) {
	if c.started.CompareAndSwap(false, true) {
		go c.entry()
		return
	}
	select {
	case c.wake <- struct{}{}:
	default:
		panic("hal: context resumed while already runnable")
	}
}
