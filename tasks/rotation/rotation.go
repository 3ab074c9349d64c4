// Package rotation runs threads that only yield and reports how evenly
// the least-runtime policy spreads the cores across them.
package rotation

import (
	"flag"
	"fmt"
	"sync/atomic"
	"time"

	"spindle/kernel"
)

type Config struct {
	Threads int
	Rounds  int
}

func DefaultConfig() Config { return Config{Threads: 16, Rounds: 1000} }

func (c *Config) Flags(fs *flag.FlagSet) {
	fs.IntVar(&c.Threads, "threads", c.Threads, "yielding threads")
	fs.IntVar(&c.Rounds, "rounds", c.Rounds, "yields per thread")
}

// Summary is the runtime spread across the workers.
type Summary struct {
	Threads  int
	Min, Max time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("rotation: %d threads, runtime min=%v max=%v", s.Threads, s.Min, s.Max)
}

// New returns the workload's main thread. report, if set, receives the
// summary before the main thread returns.
func New(cfg Config, report func(Summary)) func(*kernel.Context) {
	return func(ctx *kernel.Context) {
		if cfg.Threads < 1 || cfg.Rounds < 1 {
			ctx.Fatal(fmt.Errorf("rotation: threads %d rounds %d", cfg.Threads, cfg.Rounds))
		}

		var done atomic.Int64
		workers := make([]*kernel.Thread, 0, cfg.Threads)
		for i := 0; i < cfg.Threads; i++ {
			t, err := ctx.Start(func(ctx *kernel.Context) {
				for r := 0; r < cfg.Rounds; r++ {
					ctx.Yield()
					ctx.Safepoint()
				}
				done.Add(1)
			})
			if err != nil {
				ctx.Fatal(err)
			}
			workers = append(workers, t)
		}
		for done.Load() < int64(cfg.Threads) {
			ctx.Yield()
		}
		for _, w := range workers {
			for w.State() != kernel.StateDead {
				ctx.Yield()
			}
		}

		s := Summary{Threads: cfg.Threads, Min: workers[0].Runtime()}
		for _, w := range workers {
			rt := w.Runtime()
			s.Min = min(s.Min, rt)
			s.Max = max(s.Max, rt)
		}
		ctx.Logger().WriteLineString(s.String())
		if report != nil {
			report(s)
		}
	}
}
