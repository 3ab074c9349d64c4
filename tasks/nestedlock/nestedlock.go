// Package nestedlock stresses BlockingLock with nested acquisitions and
// a yield while the outer lock is held.
package nestedlock

import (
	"flag"
	"fmt"

	"spindle/kernel"
)

type Config struct {
	Threads int
}

func DefaultConfig() Config { return Config{Threads: 1 << 12} }

func (c *Config) Flags(fs *flag.FlagSet) {
	fs.IntVar(&c.Threads, "threads", c.Threads, "threads contending for the locks")
}

// New returns the workload's main thread. Each worker takes the outer
// lock, adds 2 under the inner lock, yields and adds 1 to the outer value.
func New(cfg Config) func(*kernel.Context) {
	return func(ctx *kernel.Context) {
		if cfg.Threads < 1 {
			ctx.Fatal(fmt.Errorf("nestedlock: threads %d", cfg.Threads))
		}
		outer := kernel.NewBlockingLock(0)
		inner := kernel.NewBlockingLock(0)

		for i := 0; i < cfg.Threads; i++ {
			_, err := ctx.Start(func(ctx *kernel.Context) {
				o := outer.Lock(ctx)
				kernel.WithLock[int](ctx, inner, func(v *int) { *v += 2 })
				ctx.Yield()
				*o.Value() += 1
				o.Unlock()
			})
			if err != nil {
				ctx.Fatal(err)
			}
		}

		read := func(l *kernel.BlockingLock[int]) (v int) {
			kernel.WithLock[int](ctx, l, func(p *int) { v = *p })
			return v
		}
		for read(outer) != cfg.Threads {
			ctx.Yield()
		}
		if got, want := read(inner), 2*cfg.Threads; got != want {
			ctx.Fatal(fmt.Errorf("nestedlock: inner = %d, want %d", got, want))
		}
		if outer.Waiting() || inner.Waiting() {
			ctx.Fatal(fmt.Errorf("nestedlock: waiters left behind"))
		}
		ctx.Logger().WriteLineString(fmt.Sprintf("nestedlock: %d threads, outer=%d inner=%d",
			cfg.Threads, read(outer), read(inner)))
	}
}
