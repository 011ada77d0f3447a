package raster

import (
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/target"
)

func newDepth(t *testing.T, w, h int) *target.Target {
	t.Helper()
	m, err := target.NewManager(target.DefaultCaps(), w, h)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	hd, err := m.CreateTarget(target.Desc{Name: "depth", Format: target.R32F, ScreenSized: true})
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	d, _ := m.Target(hd)
	d.Clear(mgl32.Vec4{1})
	return d
}

func TestFullscreenQuadCoversEveryTexel(t *testing.T) {
	depth := newDepth(t, 8, 6)
	r := Rasterizer{Viewport: image.Rect(0, 0, 8, 6), Depth: depth}

	hits := make(map[[2]int]int)
	shade := func(f *Fragment) { hits[[2]int{f.X, f.Y}]++ }
	a := mgl32.Vec4{-1, -1, 0, 1}
	b := mgl32.Vec4{1, -1, 0, 1}
	c := mgl32.Vec4{1, 1, 0, 1}
	d := mgl32.Vec4{-1, 1, 0, 1}
	r.Triangle(a, b, c, shade)
	r.Triangle(a, c, d, shade)

	if len(hits) != 48 {
		t.Fatalf("expected 48 covered texels, got %d", len(hits))
	}
	for p, n := range hits {
		if n != 1 {
			t.Errorf("texel %v shaded %d times", p, n)
		}
	}
}

func TestDepthTestKeepsNearest(t *testing.T) {
	depth := newDepth(t, 4, 4)
	r := Rasterizer{Viewport: image.Rect(0, 0, 4, 4), Depth: depth}

	owner := make(map[[2]int]int)
	draw := func(id int, z float32) {
		r.Triangle(mgl32.Vec4{-3, -1, z, 1}, mgl32.Vec4{1, -1, z, 1}, mgl32.Vec4{1, 3, z, 1}, func(f *Fragment) {
			owner[[2]int{f.X, f.Y}] = id
		})
	}
	draw(1, 0.5)
	draw(2, -0.5)
	draw(3, 0.9)

	for p, id := range owner {
		if id != 2 {
			t.Errorf("texel %v owned by %d, expected nearest triangle 2", p, id)
		}
	}
	if got := depth.At(3, 3)[0]; got < 0.2499 || got > 0.2501 {
		t.Errorf("expected stored depth 0.25, got %v", got)
	}
}

func TestViewportOffsetsIntoSlot(t *testing.T) {
	depth := newDepth(t, 8, 8)
	r := Rasterizer{Viewport: image.Rect(4, 0, 8, 4), Depth: depth}
	r.Triangle(mgl32.Vec4{-1, -1, 0, 1}, mgl32.Vec4{3, -1, 0, 1}, mgl32.Vec4{-1, 3, 0, 1}, func(f *Fragment) {
		if f.X < 4 || f.Y >= 4 {
			t.Fatalf("fragment %d,%d outside viewport", f.X, f.Y)
		}
	})
}

func TestPerspectiveCorrectBarycentrics(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
	// A floor-like quad receding from the camera; the left edge is near,
	// the right edge far.
	p0 := proj.Mul4x1(mgl32.Vec4{-1, -1, -1, 1})
	p1 := proj.Mul4x1(mgl32.Vec4{1, -1, -10, 1})
	p2 := proj.Mul4x1(mgl32.Vec4{1, 1, -10, 1})

	r := Rasterizer{Viewport: image.Rect(0, 0, 32, 32)}
	count := 0
	r.Triangle(p0, p1, p2, func(f *Fragment) {
		count++
		sum := f.Bary[0] + f.Bary[1] + f.Bary[2]
		if sum < 0.999 || sum > 1.001 {
			t.Fatalf("weights at %d,%d sum to %v", f.X, f.Y, sum)
		}
	})
	if count == 0 {
		t.Fatal("expected coverage")
	}
}

func TestNearPlaneClipping(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.5, 50)
	// One vertex behind the camera.
	p0 := proj.Mul4x1(mgl32.Vec4{0, -1, 2, 1})
	p1 := proj.Mul4x1(mgl32.Vec4{-2, -1, -4, 1})
	p2 := proj.Mul4x1(mgl32.Vec4{2, -1, -4, 1})

	depth := newDepth(t, 16, 16)
	r := Rasterizer{Viewport: image.Rect(0, 0, 16, 16), Depth: depth}
	count := 0
	r.Triangle(p0, p1, p2, func(f *Fragment) {
		count++
		if f.Depth < 0 || f.Depth > 1 {
			t.Fatalf("depth %v out of range", f.Depth)
		}
		// Only the lower half of the screen can see a floor below the eye.
		if f.Y < 8 {
			t.Fatalf("floor fragment above horizon at %d,%d", f.X, f.Y)
		}
	})
	if count == 0 {
		t.Fatal("expected the visible part of the clipped triangle to be drawn")
	}
}

func TestScissorBandsPartitionTheViewport(t *testing.T) {
	depth := newDepth(t, 8, 6)
	hits := make(map[[2]int]int)
	shade := func(f *Fragment) { hits[[2]int{f.X, f.Y}]++ }
	for y := 0; y < 6; y += 2 {
		r := Rasterizer{Viewport: image.Rect(0, 0, 8, 6), Scissor: image.Rect(0, y, 8, y+2), Depth: depth}
		r.Triangle(mgl32.Vec4{-1, -1, 0, 1}, mgl32.Vec4{1, -1, 0, 1}, mgl32.Vec4{1, 1, 0, 1}, shade)
		r.Triangle(mgl32.Vec4{-1, -1, 0, 1}, mgl32.Vec4{1, 1, 0, 1}, mgl32.Vec4{-1, 1, 0, 1}, shade)
	}
	if len(hits) != 48 {
		t.Fatalf("expected 48 covered texels, got %d", len(hits))
	}
	for p, n := range hits {
		if n != 1 {
			t.Errorf("texel %v shaded %d times", p, n)
		}
	}
}

func TestSampleNRGBAWrapsAndFilters(t *testing.T) {
	tex := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	copy(tex.Pix, []uint8{0, 0, 0, 255, 255, 255, 255, 255})

	if got := SampleNRGBA(tex, mgl32.Vec2{0, 0}); got[0] != 0 || got[3] != 1 {
		t.Errorf("expected black at u=0, got %v", got)
	}
	mid := SampleNRGBA(tex, mgl32.Vec2{0.5, 0})
	if mid[0] < 0.49 || mid[0] > 0.51 {
		t.Errorf("expected 0.5 halfway, got %v", mid[0])
	}
	wrapped := SampleNRGBA(tex, mgl32.Vec2{1.5, 0})
	if wrapped != mid {
		t.Errorf("expected u=1.5 to wrap to u=0.5: %v vs %v", wrapped, mid)
	}
}
