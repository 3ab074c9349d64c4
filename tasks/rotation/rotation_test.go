package rotation

import (
	"strings"
	"testing"
	"time"

	"spindle/internal/machinetest"
	"spindle/kernel"
)

func TestRotation(t *testing.T) {
	var got Summary
	r := machinetest.Run(t, 4, kernel.Config{PreemptPeriod: time.Millisecond},
		New(Config{Threads: 32, Rounds: 50}, func(s Summary) { got = s }))
	if r.Code != 0 {
		t.Fatalf("exit code = %d\n%s", r.Code, r.Log)
	}
	if got.Threads != 32 || got.Max < got.Min || got.Max == 0 {
		t.Fatalf("summary = %+v", got)
	}
	if !strings.Contains(r.Log, "rotation: 32 threads") {
		t.Fatalf("missing summary:\n%s", r.Log)
	}
}
