package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"spindle/app"
	"spindle/hal"
	"spindle/internal/buildinfo"
	"spindle/internal/config"
	"spindle/kernel"
)

func main() {
	path := config.DefaultPath
	if p, ok := configFlag(os.Args[1:]); ok {
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	var headless bool
	var preempt string
	flag.String("config", path, "Machine file (YAML).")
	flag.BoolVar(&headless, "headless", false, "Run without a window.")
	flag.IntVar(&cfg.Headless.Hz, "hz", cfg.Headless.Hz, "Monitor refresh rate in headless mode.")
	flag.Uint64Var(&cfg.Headless.Ticks, "ticks", cfg.Headless.Ticks, "Stop after N refreshes in headless mode (0 = until the workload ends).")
	flag.IntVar(&cfg.Cores, "cores", cfg.Cores, "Simulated cores.")
	flag.Var(&cfg.StackSize, "stack-size", "Thread stack size, e.g. 8KiB.")
	flag.IntVar(&cfg.MaxStacks, "max-stacks", cfg.MaxStacks, "Stack regions available to threads.")
	flag.StringVar(&preempt, "preempt", cfg.PreemptPeriod, "Preemption period, or \"off\".")
	flag.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Log every context switch.")
	flag.StringVar(&cfg.Workload, "workload", cfg.Workload, "Workload command line ("+strings.Join(app.Workloads(), ", ")+").")
	version := flag.Bool("version", false, "Print the build and exit.")
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.Long())
		return
	}
	if err := cfg.SetPreempt(preempt); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	mcfg := hal.MachineConfig{
		Cores:     cfg.Cores,
		StackSize: cfg.StackSize.Bytes(),
		MaxStacks: cfg.MaxStacks,
	}
	acfg := app.Config{
		Kernel:   kernel.Config{PreemptPeriod: cfg.Preempt, Trace: cfg.Trace},
		Workload: cfg.Workload,
	}
	newApp := func(h *hal.Host) (func() error, error) { return app.New(h, acfg) }

	var h *hal.Host
	if headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		h, err = hal.RunHeadless(ctx, mcfg, newApp, hal.HeadlessConfig{
			Enabled: true,
			Hz:      cfg.Headless.Hz,
			Ticks:   cfg.Headless.Ticks,
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	} else {
		h, err = hal.RunWindow(mcfg, newApp)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	os.Exit(h.ExitCode())
}

// configFlag finds -config before the flag set is built, so the file can
// supply the defaults the other flags override.
func configFlag(args []string) (string, bool) {
	for i, a := range args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val, true
		}
		if i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}
