package app

import (
	"fmt"
	"sync"

	"spindle/hal"
	"spindle/internal/buildinfo"
	"spindle/kernel"
)

type Config struct {
	Kernel kernel.Config

	// Workload is a command line such as "nestedlock -threads 4096".
	Workload string
}

type system struct {
	h        *hal.Host
	k        *kernel.Kernel
	workload string

	drawMu   sync.Mutex
	panicked bool

	// pane shows the machine log below the core rows, starting at paneY.
	pane  *logPane
	paneY int16

	done chan struct{}
	err  error
}

// New boots the kernel on h with the configured workload as its first
// thread. The returned step redraws the core monitor and is meant to be
// called by the host runner's frame loop.
func New(h *hal.Host, cfg Config) (func() error, error) {
	s, err := newSystem(h, cfg)
	if err != nil {
		return nil, err
	}
	return s.step, nil
}

func newSystem(h *hal.Host, cfg Config) (*system, error) {
	reg, err := defaultRegistry()
	if err != nil {
		return nil, err
	}
	name, main, err := reg.build(cfg.Workload)
	if err != nil {
		return nil, err
	}

	s := &system{
		h:        h,
		k:        kernel.New(h, cfg.Kernel),
		workload: name,
		done:     make(chan struct{}),
	}
	s.attachLogPane()
	s.installPanicHandler()

	h.Logger().WriteLineString(fmt.Sprintf("app: %s: workload %q on %d cores", buildinfo.Long(), cfg.Workload, h.NumCores()))
	go func() {
		defer close(s.done)
		code, err := s.k.Run(main)
		if err != nil {
			s.err = err
			h.Logger().WriteLineString(fmt.Sprintf("app: %v", err))
			return
		}
		h.Logger().WriteLineString(fmt.Sprintf("app: %s finished (code %d)", name, code))
	}()
	return s, nil
}

// attachLogPane fills the screen below the monitor rows with the log.
func (s *system) attachLogPane() {
	fb := s.h.Display().Framebuffer()
	if fb == nil {
		return
	}
	s.paneY = int16((headerRows + s.h.NumCores() + 1) * fontHeight)
	s.pane = newLogPane(fb.Width(), (fb.Height()-int(s.paneY))/fontHeight)
	if s.pane != nil {
		s.h.TeeLog(s.pane)
	}
}

func (s *system) step() error {
	s.drawMu.Lock()
	defer s.drawMu.Unlock()
	if s.panicked {
		return nil
	}
	return s.drawMonitor()
}

// wait blocks until the kernel has returned from Run.
func (s *system) wait() error {
	<-s.done
	return s.err
}
