package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestPNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	path := filepath.Join(dir, "photo.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "docscan-mcp "+Version) {
		t.Errorf("version output: %q", out.String())
	}
}

func TestScanCommand(t *testing.T) {
	t.Setenv("DOCSCAN_LOG_LEVEL", "error")
	dir := t.TempDir()
	photo := writeTestPNG(t, dir, 40, 30)
	outDir := filepath.Join(dir, "scans")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"scan", photo, "--out", outDir, "--style", "grayscale", "--width", "20", "--height", "10", "--backend", "accelerated"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := filepath.Join(outDir, "photo_scan.jpg")
	if strings.TrimSpace(out.String()) != want {
		t.Errorf("output: got %q, want %q", out.String(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("scan not written: %v", err)
	}
}

func TestScanCommand_Errors(t *testing.T) {
	t.Setenv("DOCSCAN_LOG_LEVEL", "error")
	dir := t.TempDir()

	tests := [][]string{
		{"scan", filepath.Join(dir, "missing.png"), "--out", dir},
		{"scan", writeTestPNG(t, dir, 8, 8), "--style", "sepia", "--out", dir},
		{"scan", writeTestPNG(t, dir, 8, 8), "--backend", "gpu", "--out", dir},
		{"scan"},
	}
	for _, args := range tests {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		if err := cmd.Execute(); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}
