package app

import (
	"image/color"
	"unicode/utf8"

	"spindle/fonts/font6x8"
	"spindle/hal"

	"tinygo.org/x/tinyfont"
)

const (
	fontWidth  = font6x8.Width
	fontHeight = font6x8.Height + 2
	fontOffset = 7
)

// fbDisplay adapts an RGB565 framebuffer to drivers.Displayer and
// tinyterm.Displayer.
type fbDisplay struct {
	fb hal.Framebuffer

	// top receives SetScroll; nil ignores it.
	top *int16
}

func (d fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	w, h := d.fb.Width(), d.fb.Height()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= w || iy < 0 || iy >= h {
		return
	}

	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	hal.PutRGB565(buf, off, hal.RGB565(c.R, c.G, c.B))
}

func (d fbDisplay) Display() error { return nil }

func (d fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return nil
	}
	buf := d.fb.Buffer()
	w, h := d.fb.Width(), d.fb.Height()
	x0, x1 := clampInt(int(x), 0, w), clampInt(int(x)+int(width), 0, w)
	y0, y1 := clampInt(int(y), 0, h), clampInt(int(y)+int(height), 0, h)

	pixel := hal.RGB565(c.R, c.G, c.B)
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			if off := py*stride + px*2; off+1 < len(buf) {
				hal.PutRGB565(buf, off, pixel)
			}
		}
	}
	return nil
}

// SetScroll records the first visible row of a hardware-scrolled buffer.
func (d fbDisplay) SetScroll(line int16) {
	if d.top != nil {
		*d.top = line
	}
}

// columns is how many glyphs fit on one row of d.
func (d fbDisplay) columns() int16 {
	w, _ := d.Size()
	if n := w / fontWidth; n > 0 {
		return n
	}
	return 1
}

// drawLines draws lines top to bottom from y, wrapping long ones, and
// returns the y of the next free row. Rows past the bottom are dropped.
func (d fbDisplay) drawLines(y int16, lines []string, fg color.RGBA) int16 {
	_, maxH := d.Size()
	cols := d.columns()
	for _, line := range lines {
		for {
			if y+fontHeight > maxH {
				return y
			}
			chunk, rest := takeRunes(line, cols)
			drawTextLine(d, 0, y, chunk, fg)
			y += fontHeight
			if rest == "" {
				break
			}
			line = rest
		}
	}
	return y
}

func drawTextLine(d fbDisplay, x0, y0 int16, s string, fg color.RGBA) {
	x := x0
	for _, r := range s {
		tinyfont.DrawChar(d, font6x8.Font, x, y0+fontOffset, r, fg)
		x += fontWidth
	}
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
