// Package font6x8 is the monitor's monospace bitmap font.
package font6x8

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

const (
	Width   = 6
	Height  = 8
	first   = 0x20
	last    = 0x7e
	unknown = '?'
)

// Font covers printable ASCII; other runes draw as '?'.
//
// It implements tinyfont.Fonter. Concurrent access is not safe due to
// internal glyph reuse.
var Font tinyfont.Fonter = &font6x8{}

type font6x8 struct {
	g glyph
}

type glyph struct {
	r rune
}

func (g *glyph) Draw(display drivers.Displayer, x, y int16, c color.RGBA) {
	base := glyphIndex(g.r) * Height
	for row := 0; row < Height; row++ {
		b := glyphData[base+row]
		// bit5 is the leftmost pixel.
		for col := 0; col < Width; col++ {
			if b&(0x20>>col) == 0 {
				continue
			}
			display.SetPixel(x+int16(col), y-int16(7-row), c)
		}
	}
}

func (g *glyph) Info() tinyfont.GlyphInfo {
	return tinyfont.GlyphInfo{
		Rune:     g.r,
		Width:    Width,
		Height:   Height,
		XAdvance: Width,
		YOffset:  -7,
	}
}

func (f *font6x8) GetYAdvance() uint8 { return Height }

func (f *font6x8) GetGlyph(r rune) tinyfont.Glypher {
	f.g.r = r
	return &f.g
}

func glyphIndex(r rune) int {
	if r < first || r > last {
		r = unknown
	}
	return int(r - first)
}

// Concrete is Font as a tinyfont.Font, for renderers that need the concrete
// type. Runes outside printable ASCII draw nothing.
var Concrete = newConcrete()

func newConcrete() *tinyfont.Font {
	f := &tinyfont.Font{
		BBox:     [4]int8{Width, Height, 0, -7},
		Glyphs:   make([]tinyfont.Glyph, 0, last-first+1),
		YAdvance: Height,
	}
	for r := rune(first); r <= last; r++ {
		f.Glyphs = append(f.Glyphs, tinyfont.Glyph{
			Rune:     r,
			Width:    Width,
			Height:   Height,
			XAdvance: Width,
			YOffset:  -7,
			Bitmaps:  packGlyph(glyphIndex(r)),
		})
	}
	return f
}

// packGlyph turns one glyph into tinyfont's row-major MSB-first bitmap.
func packGlyph(idx int) []byte {
	bits := make([]byte, (Width*Height+7)/8)
	n := 0
	for row := 0; row < Height; row++ {
		b := glyphData[idx*Height+row]
		for col := 0; col < Width; col++ {
			if b&(0x20>>col) != 0 {
				bits[n/8] |= 0x80 >> (n % 8)
			}
			n++
		}
	}
	return bits
}
