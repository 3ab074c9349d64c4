package kernel

import (
	"container/heap"
	"sync/atomic"
	"time"
)

type readyEntry struct {
	t       *Thread
	runtime time.Duration
}

// readyHeap orders threads by the runtime they had when pushed, least
// first. Ties pop in heap order.
type readyHeap []readyEntry

func (h readyHeap) Len() int           { return len(h) }
func (h readyHeap) Less(i, j int) bool { return h[i].runtime < h[j].runtime }
func (h readyHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)        { *h = append(*h, x.(readyEntry)) }
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = readyEntry{}
	*h = old[:n-1]
	return e
}

// readyQueue is the global run queue shared by every core.
type readyQueue struct {
	lock Spinlock[readyHeap]
	n    atomic.Int64
}

func (q *readyQueue) push(c *core, t *Thread) {
	if t.idle {
		panic("kernel: idle thread in the ready queue")
	}
	g := q.lock.acquire(c)
	heap.Push(g.Value(), readyEntry{t: t, runtime: t.Runtime()})
	q.n.Add(1)
	g.release()
}

// pop removes the least-run ready thread, or returns nil.
func (q *readyQueue) pop(c *core) *Thread {
	g := q.lock.acquire(c)
	defer g.release()
	h := g.Value()
	if h.Len() == 0 {
		return nil
	}
	q.n.Add(-1)
	return heap.Pop(h).(readyEntry).t
}

func (q *readyQueue) len() int { return int(q.n.Load()) }
