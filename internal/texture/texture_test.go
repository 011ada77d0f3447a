package texture

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ftrvxmtrx/tga"
)

func checker(c0, c1 color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if (x+y)%2 == 0 {
				img.SetNRGBA(x, y, c0)
			} else {
				img.SetNRGBA(x, y, c1)
			}
		}
	}
	return img
}

func writeFile(t *testing.T, path string, enc func(f *os.File) error) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := enc(f); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

var (
	red   = color.NRGBA{200, 20, 20, 255}
	white = color.NRGBA{255, 255, 255, 255}
	blue  = color.NRGBA{20, 20, 200, 255}
)

func TestLoadDecodesFormats(t *testing.T) {
	dir := t.TempDir()
	src := checker(red, white)
	pngPath := filepath.Join(dir, "tiles.png")
	tgaPath := filepath.Join(dir, "tiles.tga")
	writeFile(t, pngPath, func(f *os.File) error { return png.Encode(f, src) })
	writeFile(t, tgaPath, func(f *os.File) error { return tga.Encode(f, src) })

	for _, path := range []string{pngPath, tgaPath} {
		img, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s: %v", path, err)
		}
		if img.Bounds() != src.Bounds() {
			t.Fatalf("%s: expected %v, got %v", path, src.Bounds(), img.Bounds())
		}
		if c := img.NRGBAAt(0, 0); c != red {
			t.Errorf("%s (0,0): expected %v, got %v", path, red, c)
		}
		if c := img.NRGBAAt(1, 0); c != white {
			t.Errorf("%s (1,0): expected %v, got %v", path, white, c)
		}
	}

	if _, err := Load(filepath.Join(dir, "notes.txt")); err == nil {
		t.Error("expected an error for a missing file")
	}
	bad := filepath.Join(dir, "bad.bmp")
	os.WriteFile(bad, []byte("BM"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}

func TestIndexPrefersTGA(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Floor.png"), func(f *os.File) error { return png.Encode(f, checker(red, red)) })
	writeFile(t, filepath.Join(dir, "sub", "floor.tga"), func(f *os.File) error { return tga.Encode(f, checker(blue, blue)) })
	writeFile(t, filepath.Join(dir, "wall.png"), func(f *os.File) error { return png.Encode(f, checker(white, white)) })

	idx := BuildIndex(dir)
	if idx.Len() != 2 {
		t.Fatalf("expected 2 stems, got %d", idx.Len())
	}
	path, ok := idx.ResolvePath(`textures\FLOOR.jpg`)
	if !ok || filepath.Ext(path) != ".tga" {
		t.Errorf("expected the TGA to win, got %q %v", path, ok)
	}
	if BuildIndex("").Len() != 0 {
		t.Error("expected an empty index for no directory")
	}
}

func TestCacheResolvesOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "wall.png"), func(f *os.File) error { return png.Encode(f, checker(white, red)) })
	c := NewCache(BuildIndex(dir))

	a, err := c.Resolve("wall")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, _ := c.Resolve("WALL.png")
	if a != b {
		t.Error("expected the cached image on the second lookup")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cached path, got %d", c.Len())
	}
	if _, err := c.Resolve("ceiling"); err == nil {
		t.Error("expected an error for an unindexed name")
	}
}
