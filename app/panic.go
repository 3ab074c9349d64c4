package app

import (
	"fmt"
	"image/color"
	"strings"

	"spindle/kernel"
)

// installPanicHandler logs the panic with its stack and paints the panic
// screen. The kernel halts the machine once the handler returns.
func (s *system) installPanicHandler() {
	s.k.SetPanicHandler(func(info kernel.PanicInfo) {
		log := s.h.Logger()
		log.WriteLineString(fmt.Sprintf("spindle panic: core=%d thread=%d panic=%v", info.Core, info.ThreadID, info.Value))
		stack := stackLines(info.Stack)
		for _, line := range stack {
			log.WriteLineString(line)
		}

		s.drawMu.Lock()
		defer s.drawMu.Unlock()
		s.panicked = true

		fb := s.h.Display().Framebuffer()
		if fb == nil {
			return
		}
		fb.ClearRGB(255, 255, 255)

		d := fbDisplay{fb: fb}
		black := color.RGBA{A: 255}
		y := d.drawLines(0, []string{
			"Spindle Panic:",
			fmt.Sprintf("core: %d  thread: %d", info.Core, info.ThreadID),
			fmt.Sprintf("panic: %v", info.Value),
		}, black)

		// The log tail already ends with the lines logged above.
		if s.pane != nil {
			y = s.pane.draw(d, y)
		}

		lines := []string{"stack: unavailable"}
		if len(stack) > 0 {
			lines = append([]string{"stack:"}, stack...)
		}
		d.drawLines(y, lines, black)
		_ = fb.Present()
	})
}

func stackLines(stack []byte) []string {
	var out []string
	for _, line := range strings.Split(string(stack), "\n") {
		if line == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(line, "\t", "  "))
	}
	return out
}
