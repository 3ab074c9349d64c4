// Package machinetest boots workloads on a host machine for tests.
package machinetest

import (
	"strings"
	"sync"
	"testing"
	"time"

	"spindle/hal"
	"spindle/kernel"
)

// Log collects machine log lines.
type Log struct {
	mu sync.Mutex
	b  strings.Builder
}

func (l *Log) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *Log) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

// Result is the outcome of a run.
type Result struct {
	Host *hal.Host
	Code int
	Log  string
}

// Run boots a machine with the given core count and runs main on it
// until the machine halts.
func Run(t testing.TB, cores int, cfg kernel.Config, main func(*kernel.Context)) Result {
	t.Helper()
	var log Log
	h, err := hal.NewHost(hal.MachineConfig{Cores: cores, Log: &log})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	k := kernel.New(h, cfg)

	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := k.Run(main)
		done <- result{code, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Run() error = %v", r.err)
		}
		return Result{Host: h, Code: r.code, Log: log.String()}
	case <-time.After(2 * time.Minute):
		h.Shutdown(kernel.PanicExitCode)
		t.Fatalf("Run() did not return\n%s", log.String())
		return Result{}
	}
}
