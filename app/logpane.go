package app

import (
	"sync"

	"spindle/fonts/font6x8"
	"spindle/hal"

	"tinygo.org/x/tinyterm"
)

// logPane is a scrolling terminal fed with the machine log. The terminal
// scrolls by moving the top row of an off-screen ring; draw unrolls it.
type logPane struct {
	mu   sync.Mutex
	ring hal.Framebuffer
	top  int16
	term *tinyterm.Terminal
}

// newLogPane returns nil when not even one row fits.
func newLogPane(width, rows int) *logPane {
	if width < fontWidth || rows < 1 {
		return nil
	}
	p := &logPane{ring: hal.NewFramebuffer(width, rows*fontHeight)}
	p.term = tinyterm.NewTerminal(fbDisplay{fb: p.ring, top: &p.top})
	p.term.Configure(&tinyterm.Config{
		Font:       font6x8.Concrete,
		FontHeight: fontHeight,
		FontOffset: fontOffset,
	})
	return p
}

func (p *logPane) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.term.Write(b)
}

// draw copies the pane onto d at y0, oldest row first, and returns the y
// below it. Rows past the bottom of d are dropped.
func (p *logPane) draw(d fbDisplay, y0 int16) int16 {
	if d.fb == nil {
		return y0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	src, dst := p.ring.Buffer(), d.fb.Buffer()
	srcStride, dstStride := p.ring.StrideBytes(), d.fb.StrideBytes()
	rowBytes := min(p.ring.Width(), d.fb.Width()) * 2
	h := p.ring.Height()

	y := int(y0)
	for r := 0; r < h && y < d.fb.Height(); r, y = r+1, y+1 {
		if y < 0 {
			continue
		}
		sr := (int(p.top) + r) % h
		copy(dst[y*dstStride:y*dstStride+rowBytes], src[sr*srcStride:sr*srcStride+rowBytes])
	}
	return int16(y)
}
