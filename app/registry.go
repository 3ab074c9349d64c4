package app

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"spindle/kernel"
	"spindle/tasks/counter"
	"spindle/tasks/nestedlock"
	"spindle/tasks/rotation"
	"spindle/tasks/spincount"

	"github.com/google/shlex"
)

type parseFunc func(fs *flag.FlagSet, args []string) (func(*kernel.Context), error)

type workload struct {
	Name    string
	Aliases []string
	Usage   string
	Desc    string
	Parse   parseFunc
}

type registry struct {
	primary map[string]workload
	lookup  map[string]string
}

func newRegistry() *registry {
	return &registry{
		primary: make(map[string]workload),
		lookup:  make(map[string]string),
	}
}

func (r *registry) register(w workload) error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return fmt.Errorf("workload registry: empty name")
	}
	if w.Parse == nil {
		return fmt.Errorf("workload registry: %q has no parser", w.Name)
	}
	if _, ok := r.lookup[w.Name]; ok {
		return fmt.Errorf("workload registry: duplicate workload %q", w.Name)
	}

	r.primary[w.Name] = w
	r.lookup[w.Name] = w.Name

	for _, alias := range w.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if _, ok := r.lookup[alias]; ok {
			return fmt.Errorf("workload registry: duplicate alias %q", alias)
		}
		r.lookup[alias] = w.Name
	}
	return nil
}

func (r *registry) resolve(name string) (workload, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return workload{}, false
	}
	if primary, ok := r.lookup[name]; ok {
		w, ok := r.primary[primary]
		return w, ok
	}
	return workload{}, false
}

func (r *registry) names() []string {
	out := make([]string, 0, len(r.primary))
	for name := range r.primary {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// build parses a workload command line such as "nestedlock -threads 64"
// and returns the workload's main thread.
func (r *registry) build(line string) (string, func(*kernel.Context), error) {
	args, err := shlex.Split(line)
	if err != nil {
		return "", nil, fmt.Errorf("workload %q: %w", line, err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("empty workload (have %s)", strings.Join(r.names(), ", "))
	}
	w, ok := r.resolve(args[0])
	if !ok {
		return "", nil, fmt.Errorf("unknown workload %q (have %s)", args[0], strings.Join(r.names(), ", "))
	}

	fs := flag.NewFlagSet(w.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	main, err := w.Parse(fs, args[1:])
	if err != nil {
		return "", nil, fmt.Errorf("workload %s: %w (usage: %s)", w.Name, err, w.Usage)
	}
	if fs.NArg() > 0 {
		return "", nil, fmt.Errorf("workload %s: unexpected arguments %q (usage: %s)", w.Name, fs.Args(), w.Usage)
	}
	return w.Name, main, nil
}

// withFlags adapts a workload package's Config/Flags/New triple.
func withFlags[C any](def C, flags func(*C, *flag.FlagSet), build func(C) func(*kernel.Context)) parseFunc {
	return func(fs *flag.FlagSet, args []string) (func(*kernel.Context), error) {
		cfg := def
		flags(&cfg, fs)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return build(cfg), nil
	}
}

func defaultRegistry() (*registry, error) {
	r := newRegistry()
	for _, w := range []workload{
		{
			Name:    "counter",
			Aliases: []string{"threads"},
			Usage:   "counter [-threads n]",
			Desc:    "Spawn threads that count once and stop.",
			Parse:   withFlags(counter.DefaultConfig(), (*counter.Config).Flags, counter.New),
		},
		{
			Name:    "nestedlock",
			Aliases: []string{"blocking"},
			Usage:   "nestedlock [-threads n]",
			Desc:    "Nested blocking locks with a yield inside.",
			Parse:   withFlags(nestedlock.DefaultConfig(), (*nestedlock.Config).Flags, nestedlock.New),
		},
		{
			Name:  "rotation",
			Usage: "rotation [-threads n] [-rounds n]",
			Desc:  "Threads that only yield; reports the runtime spread.",
			Parse: withFlags(rotation.DefaultConfig(), (*rotation.Config).Flags,
				func(c rotation.Config) func(*kernel.Context) { return rotation.New(c, nil) }),
		},
		{
			Name:  "spincount",
			Usage: "spincount [-threads n] [-n increments]",
			Desc:  "Spinlock counter with per-core tallies.",
			Parse: withFlags(spincount.DefaultConfig(), (*spincount.Config).Flags, spincount.New),
		},
	} {
		if err := r.register(w); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Workloads lists the workload names New accepts.
func Workloads() []string {
	r, err := defaultRegistry()
	if err != nil {
		return nil
	}
	return r.names()
}
