package app

import (
	"flag"
	"fmt"
	"image/color"
	"io"
	"strings"
	"testing"
	"time"

	"spindle/fonts/font6x8"
	"spindle/hal"
	"spindle/kernel"

	"tinygo.org/x/tinyfont"
)

func newTestHost(t *testing.T, cores int) *hal.Host {
	t.Helper()
	h, err := hal.NewHost(hal.MachineConfig{Cores: cores, Log: io.Discard, FramebufferWidth: 240, FramebufferHeight: 160})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	return h
}

func waitSystem(t *testing.T, s *system) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Minute):
		s.h.Shutdown(kernel.PanicExitCode)
		t.Fatal("workload did not finish")
	}
}

func TestRegistryBuild(t *testing.T) {
	r, err := defaultRegistry()
	if err != nil {
		t.Fatal(err)
	}

	for _, line := range []string{
		"counter",
		"counter -threads 3",
		"  threads   -threads=3 ",
		"nestedlock -threads 16",
		"rotation -threads 2 -rounds 4",
		"spincount -threads 2 -n 10",
	} {
		if _, main, err := r.build(line); err != nil || main == nil {
			t.Fatalf("build(%q) error = %v", line, err)
		}
	}

	name, _, err := r.build("blocking")
	if err != nil || name != "nestedlock" {
		t.Fatalf("build(blocking) = %q, %v", name, err)
	}

	for _, line := range []string{
		"",
		"nope",
		"counter -threads",
		"counter -bogus 1",
		"counter extra",
		`counter "unterminated`,
	} {
		if _, _, err := r.build(line); err == nil {
			t.Fatalf("build(%q) succeeded", line)
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := newRegistry()
	parse := withFlags(struct{}{}, func(*struct{}, *flag.FlagSet) {}, func(struct{}) func(*kernel.Context) { return nil })
	if err := r.register(workload{Name: "a", Aliases: []string{"b"}, Parse: parse}); err != nil {
		t.Fatal(err)
	}
	if err := r.register(workload{Name: "a", Parse: parse}); err == nil {
		t.Fatal("duplicate name accepted")
	}
	if err := r.register(workload{Name: "c", Aliases: []string{"b"}, Parse: parse}); err == nil {
		t.Fatal("duplicate alias accepted")
	}
	if err := r.register(workload{Name: "d"}); err == nil {
		t.Fatal("workload without parser accepted")
	}
	if got := strings.Join(Workloads(), ","); got != "counter,nestedlock,rotation,spincount" {
		t.Fatalf("Workloads() = %s", got)
	}
}

func TestMonitorLines(t *testing.T) {
	st := kernel.Stats{
		Active: 3, Ready: 1, Spawned: 9,
		Cores: []kernel.CoreStats{
			{ID: 0, Online: true, Current: 12, Switches: 40, Preemptions: 2},
			{ID: 1, Online: true, Idle: true, Current: 2},
			{ID: 2},
		},
	}
	header, cores := monitorLines("counter", 1500*time.Millisecond, st)
	if !strings.Contains(header[2], "active 3  ready 1  spawned 9") {
		t.Fatalf("header = %q", header)
	}
	if !strings.HasPrefix(cores[0], "cpu0 thread 12") || !strings.Contains(cores[0], "pre 2") {
		t.Fatalf("cores[0] = %q", cores[0])
	}
	if !strings.Contains(cores[1], "idle") || !strings.Contains(cores[2], "offline") {
		t.Fatalf("cores = %q", cores)
	}
}

func TestSystemRunsWorkloadAndDraws(t *testing.T) {
	h := newTestHost(t, 4)
	s, err := newSystem(h, Config{Kernel: kernel.Config{PreemptPeriod: time.Millisecond}, Workload: "counter -threads 100"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.step(); err != nil {
		t.Fatal(err)
	}
	waitSystem(t, s)
	if err := s.step(); err != nil {
		t.Fatal(err)
	}
	if h.ExitCode() != 0 {
		t.Fatalf("exit code = %d", h.ExitCode())
	}
	fb := h.Display().Framebuffer()
	if !nonBlank(fb.Buffer()) {
		t.Fatal("monitor drew nothing")
	}
	if s.pane == nil {
		t.Fatal("no log pane")
	}
	// Untinted log lines render white; no monitor color is.
	white := hal.RGB565(255, 255, 255)
	if !hasPixel(fb, 0, int(s.paneY), fb.Width(), fb.Height(), white) {
		t.Fatal("log pane shows no log text")
	}
}

func TestPanicScreen(t *testing.T) {
	h := newTestHost(t, 2)
	s, err := newSystem(h, Config{Workload: "counter -threads 0"})
	if err != nil {
		t.Fatal(err)
	}
	waitSystem(t, s)

	if h.ExitCode() != kernel.PanicExitCode {
		t.Fatalf("exit code = %d, want %d", h.ExitCode(), kernel.PanicExitCode)
	}
	s.drawMu.Lock()
	panicked := s.panicked
	s.drawMu.Unlock()
	if !panicked {
		t.Fatal("panic handler did not run")
	}

	// The panic screen stays up.
	before := append([]byte(nil), h.Display().Framebuffer().Buffer()...)
	if err := s.step(); err != nil {
		t.Fatal(err)
	}
	if string(before) != string(h.Display().Framebuffer().Buffer()) {
		t.Fatal("monitor drew over the panic screen")
	}

	// Glyphs leave their last column blank, so black there is the log pane.
	fb := h.Display().Framebuffer()
	if !hasPixel(fb, fontWidth-1, 0, fontWidth, fb.Height(), 0) {
		t.Fatal("panic screen has no log pane")
	}
}

func TestLogPaneKeepsNewestRows(t *testing.T) {
	p := newLogPane(60, 3)
	fmt.Fprint(p, "A\nB\nC\nD\n")

	got := hal.NewFramebuffer(60, 40)
	if y := p.draw(fbDisplay{fb: got}, 5); y != 5+3*fontHeight {
		t.Fatalf("draw() = %d, want %d", y, 5+3*fontHeight)
	}

	// The cursor sits on a cleared bottom row below the last two lines.
	want := hal.NewFramebuffer(60, 40)
	wd := fbDisplay{fb: want}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	tinyfont.DrawChar(wd, font6x8.Concrete, 0, 5+fontOffset, 'C', white)
	tinyfont.DrawChar(wd, font6x8.Concrete, 0, 5+fontHeight+fontOffset, 'D', white)
	if string(got.Buffer()) != string(want.Buffer()) {
		t.Fatal("pane rows differ from C, D, blank")
	}
}

func TestLogPaneRendersCoreTint(t *testing.T) {
	h := newTestHost(t, 2)
	p := newLogPane(120, 2)
	h.TeeLog(p)
	h.CPU(1).Logger().WriteLineString("up")

	fb := hal.NewFramebuffer(120, 2*fontHeight)
	p.draw(fbDisplay{fb: fb}, 0)
	// Core 1 logs in ANSI green.
	if !hasPixel(fb, 0, 0, fb.Width(), fb.Height(), hal.RGB565(0, 0x80, 0)) {
		t.Fatal("core tint not rendered")
	}
}

func TestNewLogPaneTooSmall(t *testing.T) {
	if newLogPane(240, 0) != nil || newLogPane(fontWidth-1, 4) != nil {
		t.Fatal("newLogPane accepted an empty pane")
	}
}

func TestFillRectangleClips(t *testing.T) {
	fb := hal.NewFramebuffer(4, 4)
	d := fbDisplay{fb: fb}
	if err := d.FillRectangle(-2, 2, 4, 10, color.RGBA{R: 255, A: 255}); err != nil {
		t.Fatal(err)
	}
	red := hal.RGB565(255, 0, 0)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := y >= 2 && x < 2
			if got := hasPixel(fb, x, y, x+1, y+1, red); got != want {
				t.Fatalf("pixel (%d,%d) filled = %v, want %v", x, y, got, want)
			}
		}
	}

	var top int16
	fbDisplay{fb: fb, top: &top}.SetScroll(7)
	if top != 7 {
		t.Fatalf("SetScroll(7) top = %d", top)
	}
}

func TestNewRejectsUnknownWorkload(t *testing.T) {
	if _, err := New(newTestHost(t, 1), Config{Workload: "nope"}); err == nil {
		t.Fatal("New accepted an unknown workload")
	}
}

func TestTakeRunes(t *testing.T) {
	p, rest := takeRunes("héllo", 2)
	if p != "hé" || rest != "llo" {
		t.Fatalf("takeRunes = %q, %q", p, rest)
	}
	if p, rest := takeRunes("ab", 5); p != "ab" || rest != "" {
		t.Fatalf("takeRunes short = %q, %q", p, rest)
	}
}

func nonBlank(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return true
		}
	}
	return false
}

// hasPixel reports whether fb holds p anywhere in [x0,x1) x [y0,y1).
func hasPixel(fb hal.Framebuffer, x0, y0, x1, y1 int, p uint16) bool {
	buf := fb.Buffer()
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			off := y*fb.StrideBytes() + x*2
			if uint16(buf[off])|uint16(buf[off+1])<<8 == p {
				return true
			}
		}
	}
	return false
}
