package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Ticks   uint64
}

// ShutdownInterrupted is the exit code used when the host stops the machine.
const ShutdownInterrupted = 130

// RunHeadless boots the machine without opening a window. step is called at
// Hz until the machine halts, ctx is done or Ticks steps have run.
func RunHeadless(ctx context.Context, cfg MachineConfig, newApp func(*Host) (func() error, error), hcfg HeadlessConfig) (*Host, error) {
	if hcfg.Hz <= 0 {
		hcfg.Hz = 60
	}
	d := time.Second / time.Duration(hcfg.Hz)
	if d <= 0 {
		return nil, fmt.Errorf("invalid headless hz: %d", hcfg.Hz)
	}

	h, err := NewHost(cfg)
	if err != nil {
		return nil, err
	}
	step, err := newApp(h)
	if err != nil {
		return h, err
	}

	t := time.NewTicker(d)
	defer t.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			h.Shutdown(ShutdownInterrupted)
			return h, ctx.Err()
		case <-h.Done():
			if step != nil {
				_ = step()
			}
			return h, nil
		case <-t.C:
			if step != nil {
				if err := step(); err != nil {
					h.Shutdown(ShutdownInterrupted)
					return h, err
				}
			}
			tick++
			if hcfg.Ticks > 0 && tick >= hcfg.Ticks {
				h.Shutdown(ShutdownInterrupted)
				return h, nil
			}
		}
	}
}
