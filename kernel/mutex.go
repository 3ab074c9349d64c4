package kernel

// Guard grants access to the value of a held lock.
type Guard[T any] interface {
	Value() *T
	Unlock()
}

// Mutex is implemented by Spinlock and BlockingLock.
type Mutex[T any] interface {
	Lock(ctx *Context) Guard[T]
}

var (
	_ Mutex[int] = (*Spinlock[int])(nil)
	_ Mutex[int] = (*BlockingLock[int])(nil)
)

// WithLock runs f with m held.
func WithLock[T any](ctx *Context, m Mutex[T], f func(v *T)) {
	g := m.Lock(ctx)
	defer g.Unlock()
	f(g.Value())
}
