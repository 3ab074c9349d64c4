package kernel

import (
	"testing"
	"time"

	"spindle/hal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPeriod = 10 * time.Millisecond

func TestPreemptionDeferredWhileGuardHeld(t *testing.T) {
	clock := hal.NewManualClock(0)
	k := newTestKernel(t, 1, clock, Config{PreemptPeriod: testPeriod})

	var log []string
	code := runKernel(t, k, func(ctx *Context) {
		if _, err := ctx.Start(func(*Context) { log = append(log, "other") }); err != nil {
			ctx.Fatal(err)
		}

		g := ctx.DisablePreemption()
		clock.Advance(testPeriod)
		ctx.Safepoint()
		log = append(log, "guarded")
		assert.True(t, ctx.t.pendingPreemption.Load())

		g.Release()
		log = append(log, "released")
		assert.False(t, ctx.t.pendingPreemption.Load())
	})

	require.Equal(t, 0, code)
	assert.Equal(t, []string{"guarded", "other", "released"}, log)
	assert.Equal(t, uint64(0), k.Stats().Cores[0].Preemptions)
}

func TestPreemptibleThreadYieldsAtSafepoint(t *testing.T) {
	clock := hal.NewManualClock(0)
	k := newTestKernel(t, 1, clock, Config{PreemptPeriod: testPeriod})

	var log []string
	code := runKernel(t, k, func(ctx *Context) {
		if _, err := ctx.Start(func(*Context) { log = append(log, "other") }); err != nil {
			ctx.Fatal(err)
		}

		ctx.Safepoint()
		log = append(log, "before tick")
		clock.Advance(testPeriod)
		ctx.Safepoint()
		log = append(log, "after tick")
	})

	require.Equal(t, 0, code)
	assert.Equal(t, []string{"before tick", "other", "after tick"}, log)
	assert.Equal(t, uint64(1), k.Stats().Cores[0].Preemptions)
}

func TestPreemptionTimerRearms(t *testing.T) {
	clock := hal.NewManualClock(0)
	k := newTestKernel(t, 1, clock, Config{PreemptPeriod: testPeriod})
	require.NoError(t, k.Init())
	require.NoError(t, k.PerCoreInit(0))
	assert.Equal(t, 1, clock.Pending())

	c := k.cores[0]
	c.cpu.RestoreInterrupts(false)
	for i := 0; i < 3; i++ {
		clock.Advance(testPeriod)
		assert.Equal(t, 0, clock.Pending())
		k.deliver(c.idle)
		assert.Equal(t, 1, clock.Pending(), "tick %d re-armed", i)
	}

	// The idle thread is never preempted.
	assert.False(t, c.idle.pendingPreemption.Load())
	assert.Equal(t, uint64(0), c.preemptions.Load())
}

func TestMaskedInterruptsStayLatched(t *testing.T) {
	clock := hal.NewManualClock(0)
	k := newTestKernel(t, 1, clock, Config{PreemptPeriod: testPeriod})
	require.NoError(t, k.Init())
	require.NoError(t, k.PerCoreInit(0))

	c := k.cores[0]
	clock.Advance(testPeriod)
	_, ok := c.cpu.TakeIRQ()
	assert.False(t, ok, "interrupts are masked until the core runs")

	c.cpu.RestoreInterrupts(false)
	irq, ok := c.cpu.TakeIRQ()
	assert.True(t, ok)
	assert.Equal(t, hal.IRQTimer, irq)
}

func TestNestedPreemptionGuards(t *testing.T) {
	k := newTestKernel(t, 1, hal.NewManualClock(0), Config{})

	code := runKernel(t, k, func(ctx *Context) {
		outer := ctx.DisablePreemption()
		inner := ctx.DisablePreemption()
		inner.Release()
		assert.False(t, ctx.t.preemptible.Load(), "inner release keeps preemption off")
		outer.Release()
		assert.True(t, ctx.t.preemptible.Load())
		assert.Panics(t, outer.Release)
	})
	require.Equal(t, 0, code)
}

func TestTimerHeapOrder(t *testing.T) {
	var h timerHeap
	for _, at := range []time.Duration{30, 10, 20, 10} {
		h.add(timerEvent{at: at, kind: timerPreempt})
	}
	next, ok := h.next()
	require.True(t, ok)
	assert.Equal(t, time.Duration(10), next)

	_, ok = h.popDue(5)
	assert.False(t, ok)

	var got []time.Duration
	for {
		ev, ok := h.popDue(25)
		if !ok {
			break
		}
		got = append(got, ev.at)
	}
	assert.Equal(t, []time.Duration{10, 10, 20}, got)
	assert.Equal(t, 1, h.Len())
}
