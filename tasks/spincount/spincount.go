// Package spincount hammers a Spinlock-protected counter and tallies, per
// core, how many increments each core performed.
package spincount

import (
	"flag"
	"fmt"
	"strings"
	"sync/atomic"

	"spindle/kernel"
)

type Config struct {
	Threads    int
	Increments int
}

func DefaultConfig() Config { return Config{Threads: 16, Increments: 1000} }

func (c *Config) Flags(fs *flag.FlagSet) {
	fs.IntVar(&c.Threads, "threads", c.Threads, "incrementing threads")
	fs.IntVar(&c.Increments, "n", c.Increments, "increments per thread")
}

func New(cfg Config) func(*kernel.Context) {
	return func(ctx *kernel.Context) {
		if cfg.Threads < 1 || cfg.Increments < 1 {
			ctx.Fatal(fmt.Errorf("spincount: threads %d increments %d", cfg.Threads, cfg.Increments))
		}
		counter := kernel.NewSpinlock(0)
		perCore := kernel.NewPerCore(ctx.Kernel(), func(int) int { return 0 })

		var done atomic.Int64
		for i := 0; i < cfg.Threads; i++ {
			_, err := ctx.Start(func(ctx *kernel.Context) {
				for j := 0; j < cfg.Increments; j++ {
					kernel.WithLock[int](ctx, counter, func(v *int) { *v++ })
					perCore.WithCurrent(ctx, func(v *int) { *v++ })
				}
				done.Add(1)
			})
			if err != nil {
				ctx.Fatal(err)
			}
		}
		for done.Load() < int64(cfg.Threads) {
			ctx.Yield()
		}

		want := cfg.Threads * cfg.Increments
		var total int
		kernel.WithLock[int](ctx, counter, func(v *int) { total = *v })
		if total != want {
			ctx.Fatal(fmt.Errorf("spincount: counter = %d, want %d", total, want))
		}

		var parts []string
		sum := 0
		perCore.Each(func(core int, v *int) {
			sum += *v
			parts = append(parts, fmt.Sprintf("cpu%d=%d", core, *v))
		})
		if sum != want {
			ctx.Fatal(fmt.Errorf("spincount: per-core sum = %d, want %d", sum, want))
		}
		ctx.Logger().WriteLineString(fmt.Sprintf("spincount: %d increments (%s)", total, strings.Join(parts, " ")))
	}
}
