package hal

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestRGB565RoundTrip(t *testing.T) {
	for _, c := range [][3]uint8{{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0}, {0, 0, 255}} {
		r, g, b := RGB888(RGB565(c[0], c[1], c[2]))
		if r != c[0] || g != c[1] || b != c[2] {
			t.Fatalf("round trip %v = %d,%d,%d", c, r, g, b)
		}
	}
}

func TestFramebufferPresent(t *testing.T) {
	fb := newHostFramebuffer(4, 2)
	if fb.StrideBytes() != 8 || len(fb.Buffer()) != 16 {
		t.Fatalf("stride %d len %d", fb.StrideBytes(), len(fb.Buffer()))
	}

	fb.ClearRGB(255, 0, 0)
	dst := make([]byte, 16)
	if seq := fb.snapshotRGB565(dst); seq != 0 || dst[1] != 0 {
		t.Fatalf("unpresented frame visible: seq %d", seq)
	}

	if err := fb.Present(); err != nil {
		t.Fatal(err)
	}
	seq := fb.snapshotRGB565(dst)
	if seq != 1 {
		t.Fatalf("seq = %d, want 1", seq)
	}
	if p := uint16(dst[0]) | uint16(dst[1])<<8; p != RGB565(255, 0, 0) {
		t.Fatalf("pixel = %#04x", p)
	}
}

func TestRunHeadlessStopsAfterTicks(t *testing.T) {
	steps := 0
	h, err := RunHeadless(context.Background(), MachineConfig{Cores: 1, Log: io.Discard},
		func(*Host) (func() error, error) {
			return func() error { steps++; return nil }, nil
		},
		HeadlessConfig{Enabled: true, Hz: 1000, Ticks: 3})
	if err != nil {
		t.Fatal(err)
	}
	if steps != 3 {
		t.Fatalf("steps = %d, want 3", steps)
	}
	if h.ExitCode() != ShutdownInterrupted {
		t.Fatalf("exit code = %d", h.ExitCode())
	}
}

func TestRunHeadlessReturnsOnHalt(t *testing.T) {
	h, err := RunHeadless(context.Background(), MachineConfig{Cores: 1, Log: io.Discard},
		func(h *Host) (func() error, error) {
			go func() {
				time.Sleep(5 * time.Millisecond)
				h.Shutdown(7)
			}()
			return nil, nil
		},
		HeadlessConfig{Enabled: true, Hz: 100})
	if err != nil {
		t.Fatal(err)
	}
	if h.ExitCode() != 7 {
		t.Fatalf("exit code = %d, want 7", h.ExitCode())
	}
}

func TestRunHeadlessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h, err := RunHeadless(ctx, MachineConfig{Cores: 1, Log: io.Discard},
		func(*Host) (func() error, error) { return nil, nil },
		HeadlessConfig{Enabled: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !h.Halted() {
		t.Fatal("machine still running")
	}
}
