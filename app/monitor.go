package app

import (
	"fmt"
	"image/color"
	"time"

	"spindle/internal/buildinfo"
	"spindle/kernel"
)

var (
	monitorBG    = color.RGBA{R: 16, G: 16, B: 24, A: 255}
	monitorFG    = color.RGBA{R: 220, G: 220, B: 220, A: 255}
	monitorIdle  = color.RGBA{R: 110, G: 110, B: 130, A: 255}
	monitorBusy  = color.RGBA{R: 120, G: 220, B: 120, A: 255}
	monitorTitle = color.RGBA{R: 240, G: 200, B: 80, A: 255}
)

// headerRows is the number of header lines monitorLines returns.
const headerRows = 4

// monitorLines renders a scheduler snapshot as text rows.
func monitorLines(workload string, uptime time.Duration, st kernel.Stats) (header []string, cores []string) {
	header = []string{
		fmt.Sprintf("spindle %s  %s", buildinfo.Short(), workload),
		fmt.Sprintf("up %v", uptime.Truncate(time.Millisecond)),
		fmt.Sprintf("active %d  ready %d  spawned %d", st.Active, st.Ready, st.Spawned),
		"",
	}
	for _, c := range st.Cores {
		cur := "offline"
		switch {
		case !c.Online:
		case c.Idle:
			cur = "idle"
		default:
			cur = "thread " + c.Current.String()
		}
		cores = append(cores, fmt.Sprintf("cpu%d %-13s sw %-7d pre %d", c.ID, cur, c.Switches, c.Preemptions))
	}
	return header, cores
}

// drawMonitor paints one monitor frame and presents it.
func (s *system) drawMonitor() error {
	fb := s.h.Display().Framebuffer()
	if fb == nil {
		return nil
	}
	st := s.k.Stats()
	header, cores := monitorLines(s.workload, s.h.Uptime(), st)

	fb.ClearRGB(monitorBG.R, monitorBG.G, monitorBG.B)
	d := fbDisplay{fb: fb}
	y := d.drawLines(0, header[:1], monitorTitle)
	y = d.drawLines(y, header[1:], monitorFG)
	for i, line := range cores {
		fg := monitorBusy
		if st.Cores[i].Idle || !st.Cores[i].Online {
			fg = monitorIdle
		}
		y = d.drawLines(y, []string{line}, fg)
	}
	if s.pane != nil {
		s.pane.draw(d, max(y, s.paneY))
	}
	return fb.Present()
}
