package kernel

import (
	"fmt"
	"runtime/debug"
)

// PanicInfo contains details about a kernel panic.
type PanicInfo struct {
	Core     int
	ThreadID ThreadID
	Value    any
	Stack    []byte
}

func (p PanicInfo) String() string {
	return fmt.Sprintf("kernel panic: core=%d thread=%d: %v", p.Core, p.ThreadID, p.Value)
}

// InPanicMode reports whether the kernel has panicked.
func (k *Kernel) InPanicMode() bool {
	return k.panicActive.Load()
}

// SetPanicHandler installs the kernel's panic handler.
//
// The handler is invoked at most once (on the first panic), before the
// machine halts. It must not panic.
func (k *Kernel) SetPanicHandler(fn func(PanicInfo)) {
	k.panicHandler.Store(fn)
}

// kernelPanic reports a panic raised on c by t and halts the machine.
func (k *Kernel) kernelPanic(c *core, t *Thread, v any) {
	info := PanicInfo{Core: -1, Value: v}
	if c != nil {
		info.Core = c.id
	}
	if t != nil {
		info.ThreadID = t.id
	}
	k.triggerPanic(info)
	k.m.Shutdown(PanicExitCode)
}

func (k *Kernel) triggerPanic(info PanicInfo) {
	k.panicOnce.Do(func() {
		k.panicActive.Store(true)
		info.Stack = debug.Stack()
		k.log.WriteLineString(info.String())
		if v := k.panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
