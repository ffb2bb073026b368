package imaging

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 4)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestCacheLoadReusesDecodedImage(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), "sheet.png")
	c := NewCache()

	first, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := c.Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first != second {
		t.Error("second Load returned a new decode, want the cached image")
	}

	c.Evict(path)
	third, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load after Evict: %v", err)
	}
	if third == first {
		t.Error("Load after Evict returned the evicted instance")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Fatal("Load of a missing file succeeded, want error")
	}
}

func TestLoadGrayConverts(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), "gray.png")
	g, err := LoadGray(path)
	if err != nil {
		t.Fatalf("LoadGray: %v", err)
	}
	if got := g.Bounds(); got.Dx() != 8 || got.Dy() != 8 {
		t.Errorf("bounds = %v, want 8x8", got)
	}
}
