package nestedlock

import (
	"strings"
	"testing"
	"time"

	"spindle/internal/machinetest"
	"spindle/kernel"
)

func TestNestedLock(t *testing.T) {
	for _, cores := range []int{1, 4} {
		r := machinetest.Run(t, cores, kernel.Config{PreemptPeriod: time.Millisecond}, New(Config{Threads: 512}))
		if r.Code != 0 {
			t.Fatalf("cores=%d: exit code = %d\n%s", cores, r.Code, r.Log)
		}
		if !strings.Contains(r.Log, "nestedlock: 512 threads, outer=512 inner=1024") {
			t.Fatalf("cores=%d: missing summary:\n%s", cores, r.Log)
		}
	}
}
