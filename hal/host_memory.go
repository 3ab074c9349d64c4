package hal

import (
	"fmt"
	"sync"
)

const (
	hostStackDefaultSize = 8 << 10
	hostStackDefaultMax  = 1 << 13
	hostStackMinSize     = 1 << 10
	hostStackAlign       = 16

	// hostStackArenaBase is where the simulated stack arena starts.
	hostStackArenaBase = 0x4000_0000
)

// hostMemory hands out fixed-size stack slots from a bounded arena.
// Slots carry addresses but no backing storage; a thread's real stack is
// its goroutine's.
type hostMemory struct {
	mu    sync.Mutex
	size  int
	max   int
	next  int
	free  []int
	used  []bool
	inUse int
}

func newHostMemory(size, max int) (*hostMemory, error) {
	if size == 0 {
		size = hostStackDefaultSize
	}
	if max == 0 {
		max = hostStackDefaultMax
	}
	if size < hostStackMinSize || size%hostStackAlign != 0 {
		return nil, fmt.Errorf("hal: invalid stack size %d", size)
	}
	if max < 0 {
		return nil, fmt.Errorf("hal: invalid stack limit %d", max)
	}
	return &hostMemory{size: size, max: max}, nil
}

func (m *hostMemory) StackSize() int { return m.size }

func (m *hostMemory) StacksInUse() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inUse
}

func (m *hostMemory) AllocStack() (Stack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slot int
	switch {
	case len(m.free) > 0:
		slot = m.free[len(m.free)-1]
		m.free = m.free[:len(m.free)-1]
	case m.next < m.max:
		slot = m.next
		m.next++
		m.used = append(m.used, false)
	default:
		return Stack{}, fmt.Errorf("alloc stack (%d in use): %w", m.inUse, ErrOutOfMemory)
	}

	m.used[slot] = true
	m.inUse++
	return Stack{
		Base: uintptr(hostStackArenaBase + slot*m.size),
		Size: m.size,
		slot: slot,
	}, nil
}

func (m *hostMemory) FreeStack(s Stack) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !s.Valid() || s.slot < 0 || s.slot >= m.next || !m.used[s.slot] {
		return fmt.Errorf("free stack %#x: %w", s.Base, ErrDoubleFree)
	}
	m.used[s.slot] = false
	m.free = append(m.free, s.slot)
	m.inUse--
	return nil
}
