//go:build linux

package hal

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// HostCPUs reports how many host CPUs this process may run on.
func HostCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return runtime.NumCPU()
	}
	if n := set.Count(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}
