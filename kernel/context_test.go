package kernel

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"spindle/hal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockedThreadRunsAfterSchedule(t *testing.T) {
	k := newTestKernel(t, 1, hal.NewManualClock(0), Config{})

	var parked atomic.Pointer[Thread]
	var log []string
	code := runKernel(t, k, func(ctx *Context) {
		w, err := ctx.Start(func(ctx *Context) {
			log = append(log, "blocking")
			ctx.Block(func(self *Thread) { parked.Store(self) })
			log = append(log, "woken")
		})
		if err != nil {
			ctx.Fatal(err)
		}

		for parked.Load() == nil {
			ctx.Yield()
		}
		assert.Same(t, w, parked.Load())
		assert.Equal(t, StateBlocked, w.State())

		// Nothing else is ready, so the blocked thread stays off the core.
		ctx.Yield()
		log = append(log, "scheduling")
		ctx.Schedule(w)
		for w.State() != StateDead {
			ctx.Yield()
		}
	})

	require.Equal(t, 0, code)
	assert.Equal(t, []string{"blocking", "scheduling", "woken"}, log)
}

func TestBlockSwitchesToIdleWhenNothingIsReady(t *testing.T) {
	clock := hal.NewManualClock(0)
	k := newTestKernel(t, 1, clock, Config{})

	var parked atomic.Pointer[Thread]
	code := runKernel(t, k, func(ctx *Context) {
		helper, err := ctx.Spawn(func(ctx *Context) {
			ctx.Schedule(parked.Load())
		})
		if err != nil {
			ctx.Fatal(err)
		}

		// The handoff runs on the idle side once the caller is off the core.
		ctx.Block(func(self *Thread) {
			parked.Store(self)
			ctx.k.schedule(nil, helper)
		})
		assert.Equal(t, StateDead, helper.State())
	})

	require.Equal(t, 0, code)
	assert.GreaterOrEqual(t, k.Stats().Cores[0].Switches, uint64(3))
}

func TestRuntimeAccruesWhileRunning(t *testing.T) {
	clock := hal.NewManualClock(time.Millisecond)
	k := newTestKernel(t, 1, clock, Config{})

	var seen []time.Duration
	code := runKernel(t, k, func(ctx *Context) {
		w, err := ctx.Start(func(ctx *Context) {
			for i := 0; i < 3; i++ {
				ctx.Yield()
			}
		})
		if err != nil {
			ctx.Fatal(err)
		}
		for w.State() != StateDead {
			seen = append(seen, w.Runtime())
			ctx.Yield()
		}
		seen = append(seen, w.Runtime())
	})

	require.Equal(t, 0, code)
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Greater(t, seen[len(seen)-1], time.Duration(0))
}

func TestCurrentAndCoreID(t *testing.T) {
	k := newTestKernel(t, 4, nil, Config{PreemptPeriod: time.Millisecond})

	const threads = 32
	var bad atomic.Int64
	var done atomic.Int64
	code := runKernel(t, k, func(ctx *Context) {
		for i := 0; i < threads; i++ {
			_, err := ctx.Start(func(ctx *Context) {
				g := ctx.DisablePreemption()
				if ctx.Current() != ctx.t || ctx.CoreID() < 0 || ctx.CoreID() >= 4 {
					bad.Add(1)
				}
				g.Release()
				done.Add(1)
			})
			if err != nil {
				ctx.Fatal(err)
			}
		}
		for done.Load() < threads {
			ctx.Yield()
		}
	})

	require.Equal(t, 0, code)
	assert.Equal(t, int64(0), bad.Load())
}

func TestIdleThreadIsNeverScheduled(t *testing.T) {
	k := newTestKernel(t, 2, hal.NewManualClock(0), Config{})
	got := capturePanics(k)

	code := runKernel(t, k, func(ctx *Context) {
		ctx.Schedule(ctx.Kernel().Idle(1))
		t.Errorf("Schedule(idle) returned")
	})

	assert.Equal(t, PanicExitCode, code)
	require.NotNil(t, got.Load())
	assert.Contains(t, fmt.Sprint(got.Load().Value), "idle thread must never be scheduled")
	assert.True(t, k.InPanicMode())
}

func TestIdleThreadsNeverEnterWaitLists(t *testing.T) {
	k := newTestKernel(t, 1, hal.NewManualClock(0), Config{})
	require.NoError(t, k.Init())

	idle := k.Idle(0)
	assert.Panics(t, func() { k.ready.push(nil, idle) })
	assert.Panics(t, func() { k.dead.push(idle) })
	assert.Panics(t, func() { k.yield(idle) })
	assert.Panics(t, func() { k.block(idle, nil) })
	assert.Equal(t, 0, k.ready.len())
}

func TestThreadPanicHaltsMachine(t *testing.T) {
	k := newTestKernel(t, 4, nil, Config{PreemptPeriod: time.Millisecond})
	got := capturePanics(k)

	var id atomic.Uint64
	code := runKernel(t, k, func(ctx *Context) {
		id.Store(ctx.Current().ID().Uint64())
		panic("boom")
	})

	assert.Equal(t, PanicExitCode, code)
	info := got.Load()
	require.NotNil(t, info)
	assert.Equal(t, "boom", info.Value)
	assert.Equal(t, ThreadID(id.Load()), info.ThreadID)
	assert.Contains(t, info.String(), "kernel panic")
	assert.NotEmpty(t, info.Stack)
}

func TestBlockedThreadTakesLatchedTimerOnResume(t *testing.T) {
	clock := hal.NewManualClock(0)
	k := newTestKernel(t, 1, clock, Config{PreemptPeriod: 10 * time.Millisecond})

	code := runKernel(t, k, func(ctx *Context) {
		self := ctx.Current()
		_, err := ctx.Start(func(ctx *Context) {
			clock.Advance(10 * time.Millisecond)
			ctx.Schedule(self)
		})
		require.NoError(t, err)

		ctx.Block(func(*Thread) {})
		assert.Equal(t, uint64(1), k.Stats().Cores[0].Preemptions)
		assert.Equal(t, 1, clock.Pending(), "timer re-armed")
	})
	require.Equal(t, 0, code)
}
