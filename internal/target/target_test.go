package target

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestCreateTargetSizes(t *testing.T) {
	m, err := NewManager(DefaultCaps(), 64, 32)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	screen, err := m.CreateTarget(Desc{Name: "albedo", Format: RGBA8, ScreenSized: true})
	if err != nil {
		t.Fatalf("create screen target: %v", err)
	}
	fixed, err := m.CreateTarget(Desc{Name: "atlas", Format: R32F, Width: 128, Height: 128})
	if err != nil {
		t.Fatalf("create fixed target: %v", err)
	}

	st, _ := m.Target(screen)
	if st.Width != 64 || st.Height != 32 {
		t.Errorf("screen target: expected 64x32, got %dx%d", st.Width, st.Height)
	}
	ft, _ := m.Target(fixed)
	if ft.Width != 128 || len(ft.Pix) != 128*128 {
		t.Errorf("fixed target: expected 128x128 single channel, got %dx%d len %d", ft.Width, ft.Height, len(ft.Pix))
	}
}

func TestCreateTargetFailuresNameResource(t *testing.T) {
	caps := Caps{Formats: []Format{RGBA8}, MaxSize: 256}
	m, err := NewManager(caps, 16, 16)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	_, err = m.CreateTarget(Desc{Name: "moments", Format: RGBA32F, Width: 8, Height: 8})
	var re *ResourceError
	if !errors.As(err, &re) || re.Resource != "moments" {
		t.Fatalf("expected ResourceError naming moments, got %v", err)
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	_, err = m.CreateTarget(Desc{Name: "huge", Format: RGBA8, Width: 512, Height: 512})
	if !errors.As(err, &re) || re.Resource != "huge" || !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected invalid size naming huge, got %v", err)
	}

	if err := m.Require(RGBA8, RGBA32UI); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Require: expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestResizeInvalidatesHandles(t *testing.T) {
	m, _ := NewManager(DefaultCaps(), 8, 8)
	color, _ := m.CreateTarget(Desc{Name: "color", Format: RGBA32F, ScreenSized: true})
	depth, _ := m.CreateTarget(Desc{Name: "depth", Format: R32F, ScreenSized: true})
	fbh, err := m.BindFramebuffer("gbuffer", []Handle{color}, &depth)
	if err != nil {
		t.Fatalf("BindFramebuffer: %v", err)
	}

	if err := m.Resize(20, 10); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if _, err := m.Target(color); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("expected stale target handle, got %v", err)
	}
	if _, err := m.Framebuffer(fbh); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("expected stale framebuffer handle, got %v", err)
	}

	fresh, err := m.LookupFramebuffer("gbuffer")
	if err != nil {
		t.Fatalf("LookupFramebuffer: %v", err)
	}
	fb, err := m.Framebuffer(fresh)
	if err != nil {
		t.Fatalf("Framebuffer: %v", err)
	}
	if fb.Width != 20 || fb.Height != 10 || fb.Depth.Width != 20 {
		t.Errorf("expected 20x10 framebuffer, got %dx%d", fb.Width, fb.Height)
	}
}

func TestFailedResizeKeepsPreviousState(t *testing.T) {
	m, _ := NewManager(DefaultCaps(), 8, 8)
	screen, _ := m.CreateTarget(Desc{Name: "screen", Format: RGBA8, ScreenSized: true})
	fixed, _ := m.CreateTarget(Desc{Name: "fixed", Format: RGBA8, Width: 8, Height: 8})
	fbh, err := m.BindFramebuffer("mixed", []Handle{screen, fixed}, nil)
	if err != nil {
		t.Fatalf("BindFramebuffer: %v", err)
	}

	// The fixed attachment no longer matches a 16x16 screen.
	err = m.Resize(16, 16)
	var re *ResourceError
	if !errors.As(err, &re) || re.Resource != "mixed" {
		t.Fatalf("expected ResourceError naming mixed, got %v", err)
	}
	if w, h := m.Size(); w != 8 || h != 8 {
		t.Errorf("expected the viewport to stay 8x8, got %dx%d", w, h)
	}
	st, err := m.Target(screen)
	if err != nil {
		t.Fatalf("expected the old handle to stay valid, got %v", err)
	}
	if st.Width != 8 {
		t.Errorf("expected the screen target to stay 8 wide, got %d", st.Width)
	}
	fb, err := m.Framebuffer(fbh)
	if err != nil {
		t.Fatalf("expected the old framebuffer handle to stay valid, got %v", err)
	}
	if fb.Color[0] != st {
		t.Error("framebuffer no longer points at the live target")
	}
}

func TestBindFramebufferSizeMismatch(t *testing.T) {
	m, _ := NewManager(DefaultCaps(), 8, 8)
	a, _ := m.CreateTarget(Desc{Name: "a", Format: RGBA8, ScreenSized: true})
	b, _ := m.CreateTarget(Desc{Name: "b", Format: RGBA8, Width: 4, Height: 4})
	if _, err := m.BindFramebuffer("bad", []Handle{a, b}, nil); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestRGBA8Quantizes(t *testing.T) {
	m, _ := NewManager(DefaultCaps(), 2, 2)
	h, _ := m.CreateTarget(Desc{Name: "c", Format: RGBA8, ScreenSized: true})
	tg, _ := m.Target(h)
	tg.Set(0, 0, mgl32.Vec4{0.5, 2, -1, 1})
	got := tg.At(0, 0)
	if got[0] != 128.0/255 || got[1] != 1 || got[2] != 0 {
		t.Errorf("expected quantized (128/255, 1, 0), got %v", got)
	}
}

func TestSampleBilinearAndClamp(t *testing.T) {
	m, _ := NewManager(DefaultCaps(), 2, 1)
	h, _ := m.CreateTarget(Desc{Name: "ramp", Format: R32F, Filter: Linear, ScreenSized: true})
	tg, _ := m.Target(h)
	tg.Set(0, 0, mgl32.Vec4{0})
	tg.Set(1, 0, mgl32.Vec4{1})

	tests := []struct {
		u    float32
		want float32
	}{
		{0.25, 0},
		{0.5, 0.5},
		{0.75, 1},
		{2, 1},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := tg.Sample(tt.u, 0.5)[0]; got != tt.want {
			t.Errorf("Sample(%v): expected %v, got %v", tt.u, tt.want, got)
		}
	}
}

func TestAddBlendsOneOne(t *testing.T) {
	m, _ := NewManager(DefaultCaps(), 1, 1)
	h, _ := m.CreateTarget(Desc{Name: "light", Format: RGBA32F, ScreenSized: true})
	tg, _ := m.Target(h)
	tg.Add(0, 0, mgl32.Vec4{1, 2, 3, 0})
	tg.Add(0, 0, mgl32.Vec4{1, 2, 3, 0})
	if got := tg.At(0, 0); got != (mgl32.Vec4{2, 4, 6, 0}) {
		t.Errorf("expected (2,4,6,0), got %v", got)
	}
}
