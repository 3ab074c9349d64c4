// Package counter spawns short-lived threads that each bump a shared
// counter once and stop, then checks that every one of them ran.
package counter

import (
	"flag"
	"fmt"
	"sync/atomic"

	"spindle/kernel"
)

// Config sizes the run.
type Config struct {
	Threads int
}

func DefaultConfig() Config { return Config{Threads: 1 << 12} }

// Flags registers the workload's flags on fs.
func (c *Config) Flags(fs *flag.FlagSet) {
	fs.IntVar(&c.Threads, "threads", c.Threads, "threads to spawn")
}

// New returns the workload's main thread.
func New(cfg Config) func(*kernel.Context) {
	return func(ctx *kernel.Context) {
		if cfg.Threads < 1 {
			ctx.Fatal(fmt.Errorf("counter: threads %d", cfg.Threads))
		}
		log := ctx.Logger()
		clock := ctx.Kernel().Machine().Clock()
		start := clock.Now()

		var n atomic.Int64
		for i := 0; i < cfg.Threads; i++ {
			_, err := ctx.Start(func(ctx *kernel.Context) {
				n.Add(1)
				ctx.Stop()
			})
			if err != nil {
				ctx.Fatal(err)
			}
		}

		for n.Load() < int64(cfg.Threads) {
			ctx.Yield()
		}
		for ctx.Kernel().Active() > 1 {
			ctx.Yield()
		}
		log.WriteLineString(fmt.Sprintf("counter: %d threads stopped in %v", n.Load(), clock.Now()-start))
	}
}
