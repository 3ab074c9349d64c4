//go:build cgo

package hal

import (
	"image"

	"spindle/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow boots the machine and shows its framebuffer in a desktop window.
// It blocks until the window closes or the machine halts.
func RunWindow(cfg MachineConfig, newApp func(*Host) (func() error, error)) (*Host, error) {
	h, err := NewHost(cfg)
	if err != nil {
		return nil, err
	}
	step, err := newApp(h)
	if err != nil {
		return h, err
	}

	g := &hostGame{h: h, step: step}
	ebiten.SetWindowTitle("Spindle (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(30)
	err = ebiten.RunGame(g)
	h.Shutdown(ShutdownInterrupted)
	if err == ebiten.Termination {
		err = nil
	}
	return h, err
}

type hostGame struct {
	h       *Host
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	frame   uint64
	step    func() error
}

func (g *hostGame) Update() error {
	if g.step != nil {
		if err := g.step(); err != nil {
			return err
		}
	}
	if g.h.Halted() {
		return ebiten.Termination
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	if frame := fb.snapshotRGB565(g.scratch); frame != g.frame {
		g.frame = frame
		src := g.scratch
		dst := g.img.Pix
		for i := 0; i+1 < len(src) && i/2*4+3 < len(dst); i += 2 {
			r, gg, b := RGB888(uint16(src[i]) | uint16(src[i+1])<<8)
			j := (i / 2) * 4
			dst[j+0] = r
			dst[j+1] = gg
			dst[j+2] = b
			dst[j+3] = 0xFF
		}
		g.fbImg.WritePixels(g.img.Pix)
	}
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
