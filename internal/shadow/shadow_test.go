package shadow

import (
	"bytes"
	"errors"
	"image"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/dispatch"
	"spotlight-renderer/internal/scene"
	"spotlight-renderer/internal/target"
)

func newBuilder(t *testing.T, maxLights, slot int, warp Warp, enc Encoding) *Builder {
	t.Helper()
	layout, err := NewLayout(maxLights, slot)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	mgr, err := target.NewManager(target.DefaultCaps(), 16, 16)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	b, err := NewBuilder(mgr, Config{
		Layout:   layout,
		Moments:  Moments{Warp: warp, PosExp: 5, NegExp: 5},
		Encoding: enc,
	}, dispatch.New(3), nil)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

// fillSlots writes moments directly and marks the slots captured.
func fillSlots(t *testing.T, b *Builder, depth func(slot, x, y int) float32, slots ...int) {
	t.Helper()
	if err := b.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	n := b.cfg.Layout.SlotSize
	for _, i := range slots {
		s, _ := b.cfg.Layout.Slot(i)
		r := b.cfg.Layout.Rect(s)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				b.moments.Set(r.Min.X+x, r.Min.Y+y, b.cfg.Moments.Encode(depth(i, x, y)))
			}
		}
	}
	b.captured = append(b.captured, slots...)
	b.stage = StagePrefilterX
	if err := b.PrefilterX(); err != nil {
		t.Fatalf("PrefilterX: %v", err)
	}
	if err := b.PrefilterY(); err != nil {
		t.Fatalf("PrefilterY: %v", err)
	}
}

func TestSlotTilingIsCollisionFree(t *testing.T) {
	for _, maxLights := range []int{1, 2, 3, 4, 5, 9, 10, 16} {
		l, err := NewLayout(maxLights, 32)
		if err != nil {
			t.Fatalf("NewLayout(%d): %v", maxLights, err)
		}
		for n := 0; n <= l.Capacity(); n++ {
			seen := make(map[Slot]int)
			var rects []image.Rectangle
			for i := 0; i < n; i++ {
				s, err := l.Slot(i)
				if err != nil {
					t.Fatalf("max %d: slot %d: %v", maxLights, i, err)
				}
				if j, dup := seen[s]; dup {
					t.Fatalf("max %d: lights %d and %d share slot %v", maxLights, i, j, s)
				}
				seen[s] = i
				again, _ := l.Slot(i)
				if again != s {
					t.Fatalf("max %d: slot %d not deterministic", maxLights, i)
				}
				r := l.Rect(s)
				if !r.In(image.Rect(0, 0, l.AtlasSize(), l.AtlasSize())) {
					t.Fatalf("max %d: slot %d rect %v outside atlas", maxLights, i, r)
				}
				for _, o := range rects {
					if r.Overlaps(o) {
						t.Fatalf("max %d: slot %d rect %v overlaps %v", maxLights, i, r, o)
					}
				}
				rects = append(rects, r)
			}
		}
		if _, err := l.Slot(l.Capacity()); !errors.Is(err, ErrCapacity) {
			t.Errorf("max %d: expected ErrCapacity past capacity, got %v", maxLights, err)
		}
	}
}

func TestSlotMatchesTileFormula(t *testing.T) {
	l, _ := NewLayout(9, 64)
	s, _ := l.Slot(5)
	if s.X != 2 || s.Y != 1 || s.Tiles != 3 {
		t.Errorf("expected (2,1,3), got %+v", s)
	}
	if r := l.Rect(s); r != image.Rect(128, 64, 192, 128) {
		t.Errorf("expected rect (128,64)-(192,128), got %v", r)
	}
}

func TestSummedAreaRecoversConstant(t *testing.T) {
	tests := []struct {
		enc  Encoding
		warp Warp
		v    float32
		tol  float64
	}{
		{FixedPoint, VSM, 0.37, 1e-6},
		{FixedPoint, VSM, 1, 1e-6},
		{Float, VSM, 0.37, 1e-4},
		{Float, EVSM, 0.61, 1e-3},
	}
	for _, tt := range tests {
		const slot = 16
		b := newBuilder(t, 4, slot, tt.warp, tt.enc)
		fillSlots(t, b, func(int, int, int) float32 { return tt.v }, 0, 1, 2, 3)
		atlas, err := b.Atlas()
		if err != nil {
			t.Fatalf("Atlas: %v", err)
		}
		want := b.cfg.Moments.Encode(tt.v)

		for i := 0; i < 4; i++ {
			s, _ := atlas.Layout.Slot(i)
			for w := 1; w <= slot; w++ {
				for _, x0 := range []int{0, (slot - w) / 2, slot - w} {
					sum := atlas.Summed.Sum(s, image.Rect(x0, x0, x0+w, x0+w))
					area := float64(w * w)
					for c := 0; c < 4; c++ {
						got := sum[c] / area
						rel := math.Abs(got-float64(want[c])) / math.Max(1, math.Abs(float64(want[c])))
						if rel > tt.tol {
							t.Fatalf("%s/%s slot %d window %d at %d channel %d: expected %v, got %v",
								tt.warp, tt.enc, i, w, x0, c, want[c], got)
						}
					}
				}
			}
		}
	}
}

func TestSummedAreaStaysInsideSlot(t *testing.T) {
	b := newBuilder(t, 4, 8, VSM, FixedPoint)
	values := []float32{0.2, 0.9, 0.5, 0.7}
	fillSlots(t, b, func(i, _, _ int) float32 { return values[i] }, 0, 1, 2, 3)
	atlas, _ := b.Atlas()

	for i, v := range values {
		s, _ := atlas.Layout.Slot(i)
		// Windows hugging every slot edge and corner.
		for _, c := range [][2]int{{0, 0}, {7, 0}, {0, 7}, {7, 7}, {3, 0}, {0, 3}} {
			for half := 0; half <= 8; half++ {
				m := atlas.Summed.Mean(s, c[0], c[1], half)
				if math.Abs(m[0]-float64(v)) > 1e-6 {
					t.Fatalf("slot %d at %v half %d: expected %v, got %v", i, c, half, v, m[0])
				}
			}
		}
	}
}

func TestSummedAreaMatchesBruteForce(t *testing.T) {
	const slot = 8
	rng := rand.New(rand.NewSource(1))
	var depth [4][slot][slot]float32
	for i := range depth {
		for y := 0; y < slot; y++ {
			for x := 0; x < slot; x++ {
				depth[i][y][x] = rng.Float32()
			}
		}
	}

	for _, enc := range []Encoding{FixedPoint, Float} {
		b := newBuilder(t, 4, slot, VSM, enc)
		fillSlots(t, b, func(i, x, y int) float32 { return depth[i][y][x] }, 0, 1, 2, 3)
		atlas, _ := b.Atlas()

		for trial := 0; trial < 200; trial++ {
			i := rng.Intn(4)
			x0, y0 := rng.Intn(slot), rng.Intn(slot)
			x1, y1 := x0+1+rng.Intn(slot-x0), y0+1+rng.Intn(slot-y0)
			var want float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					want += float64(depth[i][y][x])
				}
			}
			s, _ := atlas.Layout.Slot(i)
			got := atlas.Summed.Sum(s, image.Rect(x0, y0, x1, y1))[0]
			if math.Abs(got-want) > 1e-4 {
				t.Fatalf("%s slot %d rect (%d,%d)-(%d,%d): expected %v, got %v", enc, i, x0, y0, x1, y1, want, got)
			}
		}
	}
}

func TestFloatSumsHoldAtFullSlotSize(t *testing.T) {
	const slot = 256
	tests := []struct {
		name  string
		depth func(slot, x, y int) float32
	}{
		{"far plane", func(int, int, int) float32 { return 1 }},
		// A small near occluder in an otherwise empty slot.
		{"near patch", func(_, x, y int) float32 {
			if x >= 60 && x < 64 && y >= 60 && y < 64 {
				return 0.3
			}
			return 1
		}},
	}
	for _, tt := range tests {
		b := newBuilder(t, 1, slot, EVSM, Float)
		fillSlots(t, b, tt.depth, 0)
		atlas, err := b.Atlas()
		if err != nil {
			t.Fatalf("Atlas: %v", err)
		}
		s, _ := atlas.Layout.Slot(0)
		for _, c := range [][2]int{{slot - 1, slot - 1}, {0, slot - 1}, {slot - 1, 0}, {128, 128}} {
			m := atlas.Summed.Mean(s, c[0], c[1], 0)
			want := b.cfg.Moments.Encode(tt.depth(0, c[0], c[1]))
			for ch := 0; ch < 4; ch++ {
				rel := math.Abs(m[ch]-float64(want[ch])) / math.Max(1, math.Abs(float64(want[ch])))
				if rel > 1e-4 {
					t.Errorf("%s at %v channel %d: expected %v, got %v", tt.name, c, ch, want[ch], m[ch])
				}
			}
			if v := m[1] - m[0]*m[0]; v < -2 {
				t.Errorf("%s at %v: variance %v of a single texel", tt.name, c, v)
			}
		}
	}
}

func TestActiveBufferFollowsParity(t *testing.T) {
	b := newBuilder(t, 1, 16, VSM, FixedPoint)
	if got := b.totalIterations(); got != 8 {
		t.Fatalf("expected 8 iterations, got %d", got)
	}
	if b.Active() != TargetSATB {
		t.Errorf("expected %s after an even iteration count, got %s", TargetSATB, b.Active())
	}

	fillSlots(t, b, func(int, int, int) float32 { return 0.5 }, 0)
	if b.iteration != 8 {
		t.Errorf("expected 8 executed iterations, got %d", b.iteration)
	}
	// The finished table holds the full slot sum at its last texel.
	last := b.satB.AtUint(15, 15)[0]
	if want := uint32(math.Floor(0.5*b.scale+0.5)) * 256; last != want {
		t.Errorf("expected total %d in active buffer, got %d", want, last)
	}
}

func TestStageOrder(t *testing.T) {
	b := newBuilder(t, 1, 4, VSM, FixedPoint)
	if err := b.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := b.PrefilterX(); !errors.Is(err, ErrStage) {
		t.Errorf("PrefilterX before capture: expected ErrStage, got %v", err)
	}
	if _, err := b.Atlas(); !errors.Is(err, ErrStage) {
		t.Errorf("Atlas before ready: expected ErrStage, got %v", err)
	}
	if err := b.Capture(nil, nil); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if err := b.PrefilterY(); !errors.Is(err, ErrStage) {
		t.Errorf("PrefilterY before X: expected ErrStage, got %v", err)
	}
	if err := b.PrefilterX(); err != nil {
		t.Fatalf("PrefilterX: %v", err)
	}
	if err := b.PrefilterY(); err != nil {
		t.Fatalf("PrefilterY: %v", err)
	}
	if b.Stage() != StageReady {
		t.Errorf("expected ready, got %s", b.Stage())
	}
}

func TestFixedPointRejectsEVSM(t *testing.T) {
	layout, _ := NewLayout(1, 8)
	mgr, _ := target.NewManager(target.DefaultCaps(), 4, 4)
	_, err := NewBuilder(mgr, Config{Layout: layout, Moments: Moments{Warp: EVSM}, Encoding: FixedPoint}, dispatch.New(1), nil)
	if err == nil {
		t.Fatal("expected error for EVSM with fixed-point storage")
	}
}

func TestBuilderNeedsFixedPointFormat(t *testing.T) {
	layout, _ := NewLayout(1, 8)
	caps := target.Caps{Formats: []target.Format{target.R32F, target.RGBA32F}, MaxSize: 1024}
	mgr, _ := target.NewManager(caps, 4, 4)
	_, err := NewBuilder(mgr, Config{Layout: layout, Encoding: FixedPoint}, dispatch.New(1), nil)
	if !errors.Is(err, target.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestCaptureWritesLinearDepth(t *testing.T) {
	b := newBuilder(t, 2, 32, VSM, FixedPoint)

	var lights []*scene.Spotlight
	for _, x := range []float32{-20, 20} {
		l, err := scene.NewSpotlight(scene.SpotlightConfig{
			Position: mgl32.Vec3{x, 5, 0}, Pitch: -math.Pi / 2,
			Color: mgl32.Vec3{1, 1, 1}, Intensity: 1, InnerAngle: 30, OuterAngle: 60,
			Near: 1, Far: 11,
		})
		if err != nil {
			t.Fatalf("NewSpotlight: %v", err)
		}
		lights = append(lights, l)
	}
	// An extra light beyond capacity is skipped, not fatal.
	lights = append(lights, lights[0], lights[1], lights[0])

	floor := scene.Plane("floor", mgl32.Vec3{0, 1, 0}, 100, scene.Material{Albedo: mgl32.Vec3{1, 1, 1}})
	if err := b.Build(lights, []*scene.Mesh{floor}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(b.captured) != 4 {
		t.Errorf("expected 4 captured slots, got %d", len(b.captured))
	}

	atlas, err := b.Atlas()
	if err != nil {
		t.Fatalf("Atlas: %v", err)
	}
	const want = 0.3 // (4 - near) / (far - near)
	for i := 0; i < 2; i++ {
		s, _ := atlas.Layout.Slot(i)
		for _, p := range [][2]int{{0, 0}, {16, 16}, {31, 5}} {
			if got := atlas.LinearDepth(s, p[0], p[1]); math.Abs(float64(got-want)) > 1e-4 {
				t.Errorf("slot %d texel %v: expected depth %v, got %v", i, p, want, got)
			}
		}
		m := atlas.Summed.Mean(s, 16, 16, 8)
		if math.Abs(m[0]-want) > 1e-4 || math.Abs(m[1]-want*want) > 1e-4 {
			t.Errorf("slot %d: expected moments (%v, %v), got (%v, %v)", i, want, want*want, m[0], m[1])
		}
	}
}

func TestOverflowWarnsOncePerChange(t *testing.T) {
	b := newBuilder(t, 1, 8, VSM, FixedPoint)
	var buf bytes.Buffer
	b.log = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	l, err := scene.NewSpotlight(scene.SpotlightConfig{
		Position: mgl32.Vec3{0, 5, 0}, Pitch: -math.Pi / 2,
		Color: mgl32.Vec3{1, 1, 1}, Intensity: 1, InnerAngle: 30, OuterAngle: 60,
		Near: 1, Far: 11,
	})
	if err != nil {
		t.Fatalf("NewSpotlight: %v", err)
	}
	frames := []struct {
		lights int
		warns  int
	}{
		{2, 1},
		{2, 1},
		{2, 1},
		{3, 2},
		{1, 2},
		{2, 3},
	}
	for i, f := range frames {
		lights := make([]*scene.Spotlight, f.lights)
		for j := range lights {
			lights[j] = l
		}
		if err := b.Build(lights, nil); err != nil {
			t.Fatalf("frame %d: Build: %v", i, err)
		}
		if got := strings.Count(buf.String(), "lights skipped"); got != f.warns {
			t.Errorf("frame %d with %d lights: expected %d warnings so far, got %d", i, f.lights, f.warns, got)
		}
	}
}
