package font6x8

import (
	"image/color"
	"testing"

	"tinygo.org/x/tinyfont"
)

type canvas struct {
	w, h int16
	px   map[[2]int16]bool
}

func newCanvas(w, h int16) *canvas { return &canvas{w: w, h: h, px: map[[2]int16]bool{}} }

func (c *canvas) Size() (int16, int16) { return c.w, c.h }

func (c *canvas) SetPixel(x, y int16, _ color.RGBA) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.px[[2]int16{x, y}] = true
}

func (c *canvas) Display() error { return nil }

func TestGlyphTable(t *testing.T) {
	if got, want := len(glyphData), (last-first+1)*Height; got != want {
		t.Fatalf("len(glyphData) = %d, want %d", got, want)
	}
	for i, b := range glyphData {
		if b&^0x3e != 0 {
			t.Fatalf("row %d of %q spills past column 4", i%Height, rune(first+i/Height))
		}
	}
}

func TestUnknownRuneDrawsQuestionMark(t *testing.T) {
	if glyphIndex('é') != glyphIndex('?') || glyphIndex('\n') != glyphIndex('?') {
		t.Fatal("non-ASCII rune not mapped to '?'")
	}
}

func TestWriteLine(t *testing.T) {
	c := newCanvas(64, 16)
	tinyfont.WriteLine(c, Font, 0, 7, "I", color.RGBA{A: 255})

	// 'I' is a vertical bar in column 2 with serifs on rows 0 and 6.
	for y := int16(0); y < 7; y++ {
		if !c.px[[2]int16{2, y}] {
			t.Fatalf("pixel (2,%d) not set", y)
		}
	}
	if c.px[[2]int16{2, 7}] {
		t.Fatal("descender row set for 'I'")
	}

	_, w := tinyfont.LineWidth(Font, "abc")
	if w != 3*Width {
		t.Fatalf("LineWidth(abc) = %d, want %d", w, 3*Width)
	}
}

func TestConcreteMatchesFont(t *testing.T) {
	fg := color.RGBA{A: 255}
	for r := rune(first); r <= last; r++ {
		want, got := newCanvas(8, 10), newCanvas(8, 10)
		tinyfont.DrawChar(want, Font, 0, 8, r, fg)
		tinyfont.DrawChar(got, Concrete, 0, 8, r, fg)
		if len(got.px) != len(want.px) {
			t.Fatalf("%q: %d pixels, want %d", r, len(got.px), len(want.px))
		}
		for p := range want.px {
			if !got.px[p] {
				t.Fatalf("%q: pixel %v missing", r, p)
			}
		}
	}

	if _, w := tinyfont.LineWidth(Concrete, "0"); w != Width {
		t.Fatalf("LineWidth(0) = %d, want %d", w, Width)
	}
}
