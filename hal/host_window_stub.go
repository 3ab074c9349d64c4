//go:build !cgo

package hal

import "errors"

func RunWindow(_ MachineConfig, _ func(*Host) (func() error, error)) (*Host, error) {
	return nil, errors.New("window mode requires cgo (build/run with CGO_ENABLED=1, or pass -headless)")
}
