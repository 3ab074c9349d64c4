// Package buildinfo carries the version stamped in by the linker:
//
//	go build -ldflags "-X spindle/internal/buildinfo.Version=v0.3.0"
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the version, the commit when no version was stamped, or "dev".
func Short() string {
	switch {
	case Version != "" && Version != "dev":
		return Version
	case Commit != "" && Commit != "unknown":
		return Commit
	}
	return "dev"
}

// Long describes the build for -version output and boot logs.
func Long() string {
	return fmt.Sprintf("spindle %s (commit %s, built %s)", Short(), Commit, Date)
}
