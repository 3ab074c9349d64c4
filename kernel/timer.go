package kernel

import (
	"container/heap"
	"time"
)

type timerKind uint8

const (
	timerPreempt timerKind = iota + 1
)

type timerEvent struct {
	at   time.Duration
	kind timerKind
}

// timerHeap is a per-core min-heap of pending timer events.
type timerHeap []timerEvent

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].at < h[j].at }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)        { *h = append(*h, x.(timerEvent)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}

func (h *timerHeap) add(ev timerEvent) { heap.Push(h, ev) }

// popDue removes the earliest event if it is due at now.
func (h *timerHeap) popDue(now time.Duration) (timerEvent, bool) {
	if h.Len() == 0 || (*h)[0].at > now {
		return timerEvent{}, false
	}
	return heap.Pop(h).(timerEvent), true
}

func (h timerHeap) next() (time.Duration, bool) {
	if len(h) == 0 {
		return 0, false
	}
	return h[0].at, true
}

// armPreemption queues the first preemption tick of c.
func (k *Kernel) armPreemption(c *core) {
	at := k.clock.Now() + k.cfg.PreemptPeriod
	g := c.timers.acquire(c)
	q := g.Value()
	q.add(timerEvent{at: at, kind: timerPreempt})
	next, _ := q.next()
	g.release()
	c.cpu.SetTimerDeadline(next)
}

// tick handles a timer interrupt on c and reports whether the preemption
// tick was due. Periodic events are re-armed one period after now.
func (k *Kernel) tick(c *core) bool {
	now := k.clock.Now()
	preempt := false

	g := c.timers.acquire(c)
	q := g.Value()
	for {
		ev, ok := q.popDue(now)
		if !ok {
			break
		}
		switch ev.kind {
		case timerPreempt:
			preempt = true
			q.add(timerEvent{at: now + k.cfg.PreemptPeriod, kind: timerPreempt})
		}
	}
	next, ok := q.next()
	g.release()

	if ok {
		c.cpu.SetTimerDeadline(next)
	}
	return preempt
}
