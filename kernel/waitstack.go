package kernel

import "sync/atomic"

// waitHead is an immutable snapshot of a waitStack's top. A fresh head is
// published on every change, so a CAS on the head pointer cannot succeed
// against a recycled top (no ABA).
type waitHead struct {
	top *Thread
	gen uint64
}

// waitStack is a lock-free LIFO of threads linked through Thread.next.
type waitStack struct {
	head atomic.Pointer[waitHead]
}

func (s *waitStack) push(t *Thread) {
	if t.idle {
		panic("kernel: idle thread pushed onto a wait list")
	}
	for {
		old := s.head.Load()
		h := &waitHead{top: t}
		if old != nil {
			h.gen = old.gen + 1
			t.next.Store(old.top)
		} else {
			t.next.Store(nil)
		}
		if s.head.CompareAndSwap(old, h) {
			return
		}
	}
}

func (s *waitStack) pop() *Thread {
	for {
		old := s.head.Load()
		if old == nil || old.top == nil {
			return nil
		}
		top := old.top
		h := &waitHead{top: top.next.Load(), gen: old.gen + 1}
		if s.head.CompareAndSwap(old, h) {
			top.next.Store(nil)
			return top
		}
	}
}

func (s *waitStack) empty() bool {
	h := s.head.Load()
	return h == nil || h.top == nil
}

// contains reports whether t is on the stack. It is only meaningful while
// the stack is not changing.
func (s *waitStack) contains(t *Thread) bool {
	h := s.head.Load()
	if h == nil {
		return false
	}
	for n := h.top; n != nil; n = n.next.Load() {
		if n == t {
			return true
		}
	}
	return false
}
