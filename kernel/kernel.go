package kernel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spindle/hal"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPreemptPeriod is the timer slice given to a preemptible thread.
	DefaultPreemptPeriod = 10 * time.Millisecond

	// PanicExitCode is the machine exit code after a kernel panic.
	PanicExitCode = 101
)

var (
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrPrivilegeLevel     = errors.New("wrong privilege level")
)

// Config is fixed for the lifetime of a Kernel.
type Config struct {
	// PreemptPeriod is the preemption timer slice; zero disables preemption.
	PreemptPeriod time.Duration

	// Trace logs every context switch.
	Trace bool
}

// Kernel multiplexes the machine's cores across threads.
type Kernel struct {
	m     hal.Machine
	clock hal.Clock
	mem   hal.Memory
	sw    hal.Switcher
	log   hal.Logger
	cfg   Config

	cores []*core
	ready readyQueue
	dead  waitStack

	nextID atomic.Uint64
	active atomic.Int64

	initialized atomic.Bool

	panicActive  atomic.Bool
	panicOnce    sync.Once
	panicHandler atomic.Value // func(PanicInfo)
}

// New creates a kernel for m. Init must be called before any thread exists.
func New(m hal.Machine, cfg Config) *Kernel {
	k := &Kernel{
		m:     m,
		clock: m.Clock(),
		mem:   m.Memory(),
		sw:    m.Switcher(),
		log:   m.Logger(),
		cfg:   cfg,
	}
	k.cores = make([]*core, m.NumCores())
	for i := range k.cores {
		k.cores[i] = newCore(k, i, m.CPU(i))
	}
	return k
}

// Machine returns the machine the kernel runs on.
func (k *Kernel) Machine() hal.Machine { return k.m }

// NumCores reports the number of cores the kernel schedules on.
func (k *Kernel) NumCores() int { return len(k.cores) }

// Active reports the number of spawned threads that have not stopped.
func (k *Kernel) Active() int { return int(k.active.Load()) }

// Idle returns the idle thread of a core.
func (k *Kernel) Idle(core int) *Thread { return k.cores[core].idle }

// Init creates the idle threads. It must run exactly once, at EL1, before
// any core is brought up; a second call panics.
func (k *Kernel) Init() error {
	if el := k.m.PrivilegeLevel(); el != hal.KernelPrivilegeLevel {
		return fmt.Errorf("kernel: init at EL%d: %w", el, ErrPrivilegeLevel)
	}
	if !k.initialized.CompareAndSwap(false, true) {
		panic(fmt.Errorf("kernel: init: %w", ErrAlreadyInitialized))
	}

	// Idle threads take ids 1..NumCores and are never counted as active.
	for _, c := range k.cores {
		t := k.newThread(nil)
		t.idle = true
		t.state.Store(uint32(StateIdle))
		c.idle = t
	}

	period := "off"
	if k.cfg.PreemptPeriod > 0 {
		period = k.cfg.PreemptPeriod.String()
	}
	k.log.WriteLineString(fmt.Sprintf("kernel: init: %d cores, preemption %s", len(k.cores), period))
	return nil
}

// PerCoreInit installs the core's idle thread as its current thread and
// arms the preemption timer. It must run exactly once on each core, from
// the flow that boots that core; a second call panics.
func (k *Kernel) PerCoreInit(id int) error {
	if !k.initialized.Load() {
		return fmt.Errorf("kernel: per-core init %d: %w", id, ErrNotInitialized)
	}
	if id < 0 || id >= len(k.cores) {
		return fmt.Errorf("kernel: per-core init: no core %d", id)
	}
	c := k.cores[id]
	if !c.online.CompareAndSwap(false, true) {
		panic(fmt.Errorf("kernel: per-core init %d: %w", id, ErrAlreadyInitialized))
	}

	idle := c.idle
	idle.exec = k.sw.Adopt()
	idle.core = c
	idle.lastStarted = k.clock.Now()
	c.setMe(idle)

	if k.cfg.PreemptPeriod > 0 {
		k.armPreemption(c)
	}
	c.log.WriteLineString("kernel: core online")
	return nil
}

// RunCore brings up a core on the calling flow and runs its idle loop until
// the machine halts.
func (k *Kernel) RunCore(id int) error {
	if err := k.PerCoreInit(id); err != nil {
		return err
	}
	c := k.cores[id]
	defer func() {
		if r := recover(); r != nil {
			k.kernelPanic(c, c.current.Load(), r)
		}
	}()

	c.cpu.RestoreInterrupts(false)
	k.idleLoop(c)
	return nil
}

// Run boots every core, starts main as the first thread and blocks until
// the machine halts. It returns the machine exit code.
func (k *Kernel) Run(main func(*Context)) (int, error) {
	if err := k.Init(); err != nil {
		return 0, err
	}
	t, err := k.Spawn(main)
	if err != nil {
		return 0, err
	}
	k.schedule(nil, t)

	var g errgroup.Group
	for i := range k.cores {
		g.Go(func() error {
			if err := k.RunCore(i); err != nil {
				k.m.Shutdown(PanicExitCode)
				return err
			}
			return nil
		})
	}
	err = g.Wait()
	return k.m.ExitCode(), err
}

// Spawn creates a thread that will run work once it is scheduled. The
// thread starts preemptible with zero runtime and is not yet ready.
func (k *Kernel) Spawn(work func(*Context)) (*Thread, error) {
	if !k.initialized.Load() {
		return nil, fmt.Errorf("kernel: spawn: %w", ErrNotInitialized)
	}
	if work == nil {
		return nil, errors.New("kernel: spawn: nil work")
	}

	stack, err := k.mem.AllocStack()
	if errors.Is(err, hal.ErrOutOfMemory) && k.reap() > 0 {
		stack, err = k.mem.AllocStack()
	}
	if err != nil {
		return nil, fmt.Errorf("kernel: spawn: %w", err)
	}

	t := k.newThread(work)
	t.stack = stack
	t.preemptible.Store(true)
	t.state.Store(uint32(StateBlocked))
	t.exec = k.sw.NewContext(func() { k.trampoline(t) })
	k.active.Add(1)
	return t, nil
}

// CoreStats is a snapshot of one core.
type CoreStats struct {
	ID          int
	Online      bool
	Current     ThreadID
	Idle        bool
	Switches    uint64
	Preemptions uint64
}

// Stats is a snapshot of the scheduler.
type Stats struct {
	Active  int
	Ready   int
	Spawned uint64
	Cores   []CoreStats
}

// Stats returns a snapshot that may be taken from any goroutine.
func (k *Kernel) Stats() Stats {
	s := Stats{
		Active: k.Active(),
		Ready:  k.ready.len(),
		Cores:  make([]CoreStats, len(k.cores)),
	}
	if n := k.nextID.Load(); n > uint64(len(k.cores)) {
		s.Spawned = n - uint64(len(k.cores))
	}
	for i, c := range k.cores {
		cs := CoreStats{
			ID:          c.id,
			Online:      c.online.Load(),
			Switches:    c.switches.Load(),
			Preemptions: c.preemptions.Load(),
		}
		if t := c.current.Load(); t != nil {
			cs.Current = t.id
			cs.Idle = t.idle
		}
		s.Cores[i] = cs
	}
	return s
}

func (k *Kernel) idleLoop(c *core) {
	idle := c.idle
	for !k.m.Halted() {
		k.deliver(idle)
		if next := k.ready.pop(c); next != nil {
			k.contextSwitch(idle, next, nil)
			continue
		}
		c.cpu.WaitForEvent()
	}
}
