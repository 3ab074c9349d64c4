package hal

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCores is the core count of the reference board.
const DefaultCores = 4

// MaxCores bounds the simulated core count.
const MaxCores = 8

// MachineConfig describes the simulated machine.
type MachineConfig struct {
	Cores     int
	StackSize int
	MaxStacks int

	// PrivilegeLevel overrides the boot exception level (0 = EL1).
	PrivilegeLevel int

	// Clock replaces the wall clock, typically with a ManualClock in tests.
	Clock *ManualClock

	// Log receives log lines; nil means colored stdout.
	Log io.Writer

	FramebufferWidth  int
	FramebufferHeight int
}

// Host is the host implementation of Machine: cores are simulated by
// goroutines that hand a core token to each other.
type Host struct {
	cpus   []*hostCPU
	clock  timerClock
	mem    *hostMemory
	sw     *hostSwitcher
	fb     *hostFramebuffer
	logger *hostLogger
	el     int

	oversubscribed bool

	halt     chan struct{}
	halted   atomic.Bool
	haltOnce sync.Once
	code     atomic.Int64
}

// NewHost returns a host machine.
func NewHost(cfg MachineConfig) (*Host, error) {
	if cfg.Cores == 0 {
		cfg.Cores = DefaultCores
	}
	if cfg.Cores < 1 || cfg.Cores > MaxCores {
		return nil, fmt.Errorf("hal: invalid core count %d (want 1..%d)", cfg.Cores, MaxCores)
	}
	if cfg.PrivilegeLevel == 0 {
		cfg.PrivilegeLevel = KernelPrivilegeLevel
	}
	if cfg.FramebufferWidth <= 0 || cfg.FramebufferHeight <= 0 {
		cfg.FramebufferWidth, cfg.FramebufferHeight = 320, 320
	}
	mem, err := newHostMemory(cfg.StackSize, cfg.MaxStacks)
	if err != nil {
		return nil, err
	}

	h := &Host{
		mem:    mem,
		fb:     newHostFramebuffer(cfg.FramebufferWidth, cfg.FramebufferHeight),
		logger: newHostLogger(cfg.Log),
		el:     cfg.PrivilegeLevel,
		halt:   make(chan struct{}),
	}
	if cfg.Clock != nil {
		h.clock = cfg.Clock
	} else {
		h.clock = newRealClock()
	}
	h.sw = &hostSwitcher{halt: h.halt}

	avail := HostCPUs()
	if p := runtime.GOMAXPROCS(0); p < avail {
		avail = p
	}
	h.oversubscribed = cfg.Cores > avail

	h.cpus = make([]*hostCPU, cfg.Cores)
	for i := range h.cpus {
		h.cpus[i] = newHostCPU(i, h)
	}
	return h, nil
}

func (h *Host) NumCores() int      { return len(h.cpus) }
func (h *Host) CPU(core int) CPU   { return h.cpus[core] }
func (h *Host) Clock() Clock       { return h.clock }
func (h *Host) Memory() Memory     { return h.mem }
func (h *Host) Switcher() Switcher { return h.sw }
func (h *Host) PrivilegeLevel() int {
	return h.el
}
func (h *Host) Logger() Logger         { return h.logger }
func (h *Host) Display() Display       { return hostDisplay{fb: h.fb} }
func (h *Host) Halted() bool           { return h.halted.Load() }
func (h *Host) Done() <-chan struct{}  { return h.halt }
func (h *Host) ExitCode() int          { return int(h.code.Load()) }
func (h *Host) Oversubscribed() bool   { return h.oversubscribed }
func (h *Host) Uptime() time.Duration  { return h.clock.Now() }

// TeeLog copies every log line to w, tinted per core with ANSI colors.
// A nil w stops the copy.
func (h *Host) TeeLog(w io.Writer) { h.logger.setTee(w) }

// SendEvent latches an event on every core.
func (h *Host) SendEvent() {
	for _, c := range h.cpus {
		c.signal()
	}
}

// Shutdown halts the machine with the given exit code.
func (h *Host) Shutdown(code int) {
	h.haltOnce.Do(func() {
		h.code.Store(int64(code))
		h.halted.Store(true)
		for _, c := range h.cpus {
			c.stopTimer()
		}
		close(h.halt)
		h.logger.WriteLineString(fmt.Sprintf("machine: halted (code %d)", code))
	})
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }
