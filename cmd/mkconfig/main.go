package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"spindle/internal/config"
)

func main() {
	var outPath string
	var check string
	var cores int
	var workload string
	var force bool
	flag.StringVar(&outPath, "out", config.DefaultPath, "Output machine file path (- for stdout).")
	flag.StringVar(&check, "check", "", "Validate an existing machine file instead of writing one.")
	flag.IntVar(&cores, "cores", 0, "Override the core count.")
	flag.StringVar(&workload, "workload", "", "Override the workload command line.")
	flag.BoolVar(&force, "force", false, "Overwrite an existing output file.")
	flag.Parse()

	if check != "" {
		if err := runCheck(os.Stdout, check); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	cfg := config.Default()
	if cores != 0 {
		cfg.Cores = cores
	}
	if workload != "" {
		cfg.Workload = workload
	}
	if err := run(outPath, cfg, force); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(outPath string, cfg config.Config, force bool) error {
	if outPath == "" {
		return errors.New("-out is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	b, err := config.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if outPath == "-" {
		_, err := os.Stdout.Write(b)
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(outPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %q: %w", outPath, err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %q: %w", outPath, err)
	}
	return f.Close()
}

func runCheck(w io.Writer, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat %q: %w", path, err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s: ok (%d cores, stack %v x %d, preempt %s, workload %q)\n",
		path, cfg.Cores, cfg.StackSize, cfg.MaxStacks, cfg.PreemptPeriod, cfg.Workload)
	return err
}
