//go:build !linux

package hal

import "runtime"

// HostCPUs reports how many host CPUs this process may run on.
func HostCPUs() int { return runtime.NumCPU() }
