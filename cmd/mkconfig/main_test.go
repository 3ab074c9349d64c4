package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spindle/internal/config"
)

func TestWriteThenCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.yaml")
	cfg := config.Default()
	cfg.Cores = 2

	if err := run(path, cfg, false); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := run(path, cfg, false); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("second run without -force: err = %v", err)
	}
	if err := run(path, cfg, true); err != nil {
		t.Fatalf("run -force: %v", err)
	}

	var out strings.Builder
	if err := runCheck(&out, path); err != nil {
		t.Fatalf("runCheck: %v", err)
	}
	if !strings.Contains(out.String(), "ok (2 cores") {
		t.Fatalf("check output = %q", out.String())
	}
}

func TestCheckRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("cores: 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runCheck(&strings.Builder{}, path); err == nil {
		t.Fatal("runCheck accepted 99 cores")
	}
	if err := runCheck(&strings.Builder{}, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("runCheck accepted a missing file")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Workload = ""
	if err := run(filepath.Join(t.TempDir(), "x.yaml"), cfg, false); err == nil {
		t.Fatal("run accepted an empty workload")
	}
}
