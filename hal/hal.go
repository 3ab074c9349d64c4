package hal

import (
	"errors"
	"time"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var (
	ErrNotImplemented = errors.New("not implemented")

	// ErrOutOfMemory reports that no stack region is available.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrDoubleFree reports a release of a stack region that is not allocated.
	ErrDoubleFree = errors.New("double free")
)

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// IRQ identifies a latched interrupt line.
type IRQ uint8

const (
	IRQNone IRQ = iota
	IRQTimer
)

func (q IRQ) String() string {
	switch q {
	case IRQNone:
		return "none"
	case IRQTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// IRQState is the local interrupt mask state captured by DisableInterrupts.
type IRQState bool

// Masked reports whether interrupts were masked when the state was captured.
func (s IRQState) Masked() bool { return bool(s) }

// CPU is one core of the machine.
//
// Every method except ID and Logger must only be called by the flow that
// currently owns the core.
type CPU interface {
	ID() int

	// DisableInterrupts masks local interrupts and returns the prior state.
	DisableInterrupts() IRQState
	// RestoreInterrupts puts back a state returned by DisableInterrupts.
	RestoreInterrupts(IRQState)
	InterruptsMasked() bool

	// TakeIRQ acknowledges one latched interrupt. It never reports an
	// interrupt while local interrupts are masked.
	TakeIRQ() (IRQ, bool)

	// SetTimerDeadline programs the core-local timer to raise IRQTimer
	// once the machine clock reaches at. A later call replaces the deadline.
	SetTimerDeadline(at time.Duration)

	// WaitForEvent parks the core until an event is signalled, an
	// interrupt is latched or the machine halts (wfe).
	WaitForEvent()

	// Relax is a spin-wait hint.
	Relax()

	Logger() Logger
}

// Clock is the machine's monotonic time source.
type Clock interface {
	Now() time.Duration
}

// Stack is a fixed-size stack region handed out by Memory.
type Stack struct {
	Base uintptr
	Size int

	slot int
}

// Valid reports whether s was returned by Memory.AllocStack.
func (s Stack) Valid() bool { return s.Size > 0 }

// Memory hands out stack regions.
type Memory interface {
	StackSize() int
	AllocStack() (Stack, error)
	FreeStack(Stack) error
	StacksInUse() int
}

// ExecContext is an opaque saved execution context.
type ExecContext interface {
	execContext()
}

// Switcher is the architecture context-switch primitive.
type Switcher interface {
	// NewContext prepares a context that runs entry the first time it is
	// switched to.
	NewContext(entry func()) ExecContext

	// Adopt turns the calling flow into a context that can be switched away
	// from and back to.
	Adopt() ExecContext

	// Swap saves the caller into from and resumes to. It returns once
	// another flow swaps back into from. If the machine halts while from is
	// parked, Swap returns for adopted contexts and terminates the flow of
	// any other context.
	Swap(from, to ExecContext)

	// Handoff resumes to without saving the caller, which must not use the
	// core afterwards.
	Handoff(to ExecContext)
}

// Machine is the contact point between the kernel and the hardware.
type Machine interface {
	NumCores() int
	CPU(core int) CPU
	Clock() Clock
	Memory() Memory
	Switcher() Switcher

	// PrivilegeLevel reports the exception level the kernel runs at.
	PrivilegeLevel() int

	// SendEvent signals every core (sev).
	SendEvent()

	// Shutdown halts all cores. Only the first call takes effect.
	Shutdown(code int)
	Halted() bool
	Done() <-chan struct{}
	ExitCode() int

	Logger() Logger
	Display() Display
}

// KernelPrivilegeLevel is the exception level the kernel expects to boot at (EL1).
const KernelPrivilegeLevel = 1
