package shadow

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/dispatch"
	"spotlight-renderer/internal/mathutil"
	"spotlight-renderer/internal/raster"
	"spotlight-renderer/internal/scene"
	"spotlight-renderer/internal/target"
)

// ErrStage is returned when a stage runs out of order.
var ErrStage = errors.New("shadow: stage out of order")

// Stage is the per-frame state of the builder.
type Stage int

const (
	StageCapture Stage = iota
	StagePrefilterX
	StagePrefilterY
	StageReady
)

func (s Stage) String() string {
	switch s {
	case StageCapture:
		return "capture"
	case StagePrefilterX:
		return "prefilter-x"
	case StagePrefilterY:
		return "prefilter-y"
	case StageReady:
		return "ready"
	}
	return "unknown"
}

// Target names owned by the builder.
const (
	TargetLinear  = "shadow.linear"
	TargetDepth   = "shadow.depth"
	TargetMoments = "shadow.moments"
	TargetSATA    = "shadow.sat-a"
	TargetSATB    = "shadow.sat-b"
)

// Config describes the atlas.
type Config struct {
	Layout   Layout
	Moments  Moments
	Encoding Encoding
}

// Builder renders and prefilters the shadow atlas.
type Builder struct {
	cfg   Config
	scale float64 // fixed-point units per 1.0
	mgr   *target.Manager
	pool  *dispatch.Pool
	log   *slog.Logger

	stage     Stage
	iteration int
	captured  []int        // slot indices written this frame
	offsets   []mgl32.Vec4 // per-slot mean subtracted before float prefix sums
	overflow  int          // lights past capacity at the last warning

	linear, depth, moments, satA, satB *target.Target
}

// NewBuilder creates the atlas targets. The fixed-point encoding only holds
// non-negative moments, so it cannot be combined with EVSM.
func NewBuilder(mgr *target.Manager, cfg Config, pool *dispatch.Pool, log *slog.Logger) (*Builder, error) {
	if cfg.Encoding == FixedPoint && cfg.Moments.Warp == EVSM {
		return nil, fmt.Errorf("shadow: %s moments need float storage, got %s", cfg.Moments.Warp, cfg.Encoding)
	}
	satFormat := target.RGBA32F
	if cfg.Encoding == FixedPoint {
		satFormat = target.RGBA32UI
	}
	if err := mgr.Require(target.R32F, target.RGBA32F, satFormat); err != nil {
		return nil, fmt.Errorf("shadow: atlas: %w", err)
	}

	size := cfg.Layout.AtlasSize()
	descs := []target.Desc{
		{Name: TargetLinear, Format: target.R32F, Width: size, Height: size, Filter: target.Nearest},
		{Name: TargetDepth, Format: target.R32F, Width: size, Height: size, Filter: target.Nearest},
		{Name: TargetMoments, Format: target.RGBA32F, Width: size, Height: size, Filter: target.Nearest},
		{Name: TargetSATA, Format: satFormat, Width: size, Height: size, Filter: target.Nearest},
		{Name: TargetSATB, Format: satFormat, Width: size, Height: size, Filter: target.Nearest},
	}
	for _, d := range descs {
		if _, err := mgr.CreateTarget(d); err != nil {
			return nil, err
		}
	}

	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	area := float64(cfg.Layout.SlotSize * cfg.Layout.SlotSize)
	b := &Builder{
		cfg:     cfg,
		scale:   math.Floor(float64(math.MaxUint32) / area),
		mgr:     mgr,
		pool:    pool,
		log:     log,
		stage:   StageCapture,
		offsets: make([]mgl32.Vec4, cfg.Layout.Capacity()),
	}
	if err := b.bind(); err != nil {
		return nil, err
	}
	return b, nil
}

// Layout returns the atlas tiling.
func (b *Builder) Layout() Layout { return b.cfg.Layout }

// Stage returns the current state.
func (b *Builder) Stage() Stage { return b.stage }

// Active returns the ping-pong buffer holding the finished table. It
// depends only on the parity of the total iteration count.
func (b *Builder) Active() string {
	if b.totalIterations()%2 == 1 {
		return TargetSATA
	}
	return TargetSATB
}

func (b *Builder) totalIterations() int {
	return 2 * passCount(b.cfg.Layout.SlotSize)
}

func (b *Builder) bind() error {
	for _, r := range []struct {
		name string
		dst  **target.Target
	}{
		{TargetLinear, &b.linear},
		{TargetDepth, &b.depth},
		{TargetMoments, &b.moments},
		{TargetSATA, &b.satA},
		{TargetSATB, &b.satB},
	} {
		h, err := b.mgr.Lookup(r.name)
		if err != nil {
			return err
		}
		t, err := b.mgr.Target(h)
		if err != nil {
			return fmt.Errorf("shadow: bind %s: %w", r.name, err)
		}
		*r.dst = t
	}
	return nil
}

// Begin resets the state machine for a new frame.
func (b *Builder) Begin() error {
	if err := b.bind(); err != nil {
		return err
	}
	b.stage = StageCapture
	b.iteration = 0
	b.captured = b.captured[:0]
	clear(b.offsets)
	return nil
}

// Build runs every stage for one frame.
func (b *Builder) Build(lights []*scene.Spotlight, meshes []*scene.Mesh) error {
	if err := b.Begin(); err != nil {
		return err
	}
	if err := b.Capture(lights, meshes); err != nil {
		return err
	}
	if err := b.PrefilterX(); err != nil {
		return err
	}
	return b.PrefilterY()
}

// Capture renders linear depth and moments of every light into its slot.
// Lights beyond capacity or disabled lights are skipped.
func (b *Builder) Capture(lights []*scene.Spotlight, meshes []*scene.Mesh) error {
	if b.stage != StageCapture {
		return fmt.Errorf("%w: capture during %s", ErrStage, b.stage)
	}
	skipped := 0
	for i, l := range lights {
		if !l.Visible() {
			continue
		}
		slot, err := b.cfg.Layout.Slot(i)
		if err != nil {
			b.log.Debug("shadow: light skipped", "light", i, "err", err)
			skipped++
			continue
		}
		b.captureLight(l, b.cfg.Layout.Rect(slot), meshes)
		b.captured = append(b.captured, i)
	}
	if skipped != b.overflow {
		if skipped > 0 {
			b.log.Warn("shadow: lights skipped", "count", skipped, "capacity", b.cfg.Layout.Capacity())
		}
		b.overflow = skipped
	}
	b.log.Debug("shadow: captured", "lights", len(b.captured))
	b.stage = StagePrefilterX
	return nil
}

func (b *Builder) captureLight(l *scene.Spotlight, rect image.Rectangle, meshes []*scene.Mesh) {
	b.depth.ClearRect(rect, mgl32.Vec4{1})
	b.linear.ClearRect(rect, mgl32.Vec4{1})
	b.moments.ClearRect(rect, b.cfg.Moments.Encode(1))

	r := raster.Rasterizer{Viewport: rect, Depth: b.depth}
	invRange := 1 / (l.Far - l.Near)
	var clip []mgl32.Vec4
	var dist []float32

	for _, m := range meshes {
		if !m.Visible() {
			continue
		}
		mv := l.View().Mul4(m.Model)
		mvp := l.Projection().Mul4(mv)
		clip = clip[:0]
		dist = dist[:0]
		for _, v := range m.Vertices {
			p := v.Position.Vec4(1)
			clip = append(clip, mvp.Mul4x1(p))
			dist = append(dist, -mv.Mul4x1(p)[2])
		}

		for t := 0; t < m.TriangleCount(); t++ {
			i0, i1, i2 := m.Triangle(t)
			d0, d1, d2 := dist[i0], dist[i1], dist[i2]
			r.Triangle(clip[i0], clip[i1], clip[i2], func(f *raster.Fragment) {
				d := f.Bary[0]*d0 + f.Bary[1]*d1 + f.Bary[2]*d2
				z := mathutil.Saturate((d - l.Near) * invRange)
				b.linear.Set(f.X, f.Y, mgl32.Vec4{z})
				b.moments.Set(f.X, f.Y, b.cfg.Moments.Encode(z))
			})
		}
	}
}

// PrefilterX runs the horizontal prefix-sum passes.
func (b *Builder) PrefilterX() error {
	if b.stage != StagePrefilterX {
		return fmt.Errorf("%w: prefilter-x during %s", ErrStage, b.stage)
	}
	if b.cfg.Encoding == Float {
		b.centre()
	}
	b.prefilter(0)
	b.stage = StagePrefilterY
	return nil
}

// PrefilterY runs the vertical prefix-sum passes.
func (b *Builder) PrefilterY() error {
	if b.stage != StagePrefilterY {
		return fmt.Errorf("%w: prefilter-y during %s", ErrStage, b.stage)
	}
	b.prefilter(1)
	b.stage = StageReady
	return nil
}

// centre records the mean moments of every captured slot. Float sums are
// taken over the deviations from that mean; Sum adds it back.
func (b *Builder) centre() {
	for _, i := range b.captured {
		slot, _ := b.cfg.Layout.Slot(i)
		rect := b.cfg.Layout.Rect(slot)
		var sum [4]float64
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				v := b.moments.At(x, y)
				for c := range sum {
					sum[c] += float64(v[c])
				}
			}
		}
		area := float64(rect.Dx() * rect.Dy())
		var mean mgl32.Vec4
		for c := range mean {
			mean[c] = float32(sum[c] / area)
		}
		b.offsets[slotIndex(slot)] = mean
	}
}

func slotIndex(s Slot) int {
	return s.Y*s.Tiles + s.X
}

func (b *Builder) prefilter(axis int) {
	for i := 0; i < passCount(b.cfg.Layout.SlotSize); i++ {
		src, dst := b.pingPong()
		b.sweep(axis, 1<<i, src, dst)
		b.iteration++
	}
}

// pingPong returns the buffers of the current iteration. The first pass
// reads the moments; afterwards A and B alternate.
func (b *Builder) pingPong() (src, dst *target.Target) {
	switch {
	case b.iteration == 0:
		return b.moments, b.satA
	case b.iteration%2 == 1:
		return b.satA, b.satB
	default:
		return b.satB, b.satA
	}
}

// sweep adds to every texel the texel step away along axis, only when that
// texel lies in the same slot.
func (b *Builder) sweep(axis, step int, src, dst *target.Target) {
	for _, i := range b.captured {
		slot, _ := b.cfg.Layout.Slot(i)
		rect := b.cfg.Layout.Rect(slot)
		var off mgl32.Vec4
		if src == b.moments && b.cfg.Encoding == Float {
			off = b.offsets[slotIndex(slot)]
		}
		b.pool.Rows(rect.Min.Y, rect.Max.Y, func(y int) {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				px, py := x, y
				if axis == 0 {
					px -= step
				} else {
					py -= step
				}
				inSlot := image.Pt(px, py).In(rect)

				if b.cfg.Encoding == FixedPoint {
					v := b.loadFixed(src, x, y)
					if inSlot {
						w := b.loadFixed(src, px, py)
						for c := range v {
							v[c] += w[c]
						}
					}
					dst.SetUint(x, y, v)
					continue
				}

				v := src.At(x, y).Sub(off)
				if inSlot {
					v = v.Add(src.At(px, py).Sub(off))
				}
				dst.Set(x, y, v)
			}
		})
	}
}

// loadFixed reads a texel as fixed point, quantizing float moments.
func (b *Builder) loadFixed(t *target.Target, x, y int) [4]uint32 {
	if t.Format == target.RGBA32UI {
		return t.AtUint(x, y)
	}
	v := t.At(x, y)
	var q [4]uint32
	for c := range q {
		q[c] = uint32(float64(mathutil.Saturate(v[c]))*b.scale + 0.5)
	}
	return q
}

// Atlas returns the read-only view of the finished atlas.
func (b *Builder) Atlas() (*Atlas, error) {
	if b.stage != StageReady {
		return nil, fmt.Errorf("%w: atlas read during %s", ErrStage, b.stage)
	}
	active := b.satB
	if b.Active() == TargetSATA {
		active = b.satA
	}
	return &Atlas{
		Layout:  b.cfg.Layout,
		Moments: b.cfg.Moments,
		Linear:  b.linear,
		Summed: SummedArea{
			table:    active,
			layout:   b.cfg.Layout,
			encoding: b.cfg.Encoding,
			scale:    b.scale,
			offsets:  slices.Clone(b.offsets),
		},
	}, nil
}
