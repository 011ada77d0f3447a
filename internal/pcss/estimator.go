package pcss

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/mathutil"
	"spotlight-renderer/internal/sampling"
	"spotlight-renderer/internal/shadow"
)

// coneEpsilon widens the outer cone slightly so its rim is not clipped.
const coneEpsilon = 1e-4

// Mode selects how the penumbra window is filtered.
type Mode int

const (
	Variance Mode = iota // summed-area moments with Chebyshev's bound
	PCF                  // rotated Poisson percentage-closer filtering
)

func (m Mode) String() string {
	if m == PCF {
		return "pcf"
	}
	return "variance"
}

// ParseMode maps a configuration name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "variance", "":
		return Variance, nil
	case "pcf":
		return PCF, nil
	}
	return 0, fmt.Errorf("pcss: unknown filter mode %q", s)
}

// Config tunes the estimator. Radii are in slot texels.
type Config struct {
	MinSearch       float32
	MaxSearch       float32
	MinVariance     float32
	BleedReduction  float32
	MaxFilterRadius float32
	Mode            Mode
}

// DefaultConfig returns the settings used by the renderer.
func DefaultConfig() Config {
	return Config{
		MinSearch:       1,
		MaxSearch:       24,
		MinVariance:     1e-5,
		BleedReduction:  0.2,
		MaxFilterRadius: 32,
		Mode:            Variance,
	}
}

// Receiver is a shaded point in camera view space. Rotation is the unit
// (cos, sin) pair used to decorrelate PCF samples between pixels.
type Receiver struct {
	P, N     mgl32.Vec3
	Rotation mgl32.Vec2
}

// Estimator evaluates shadow visibility against one finished atlas.
type Estimator struct {
	cfg     Config
	atlas   *shadow.Atlas
	blocker []mgl32.Vec2
	filter  []mgl32.Vec2
}

// NewEstimator binds the estimator to an atlas and the session sample sets.
func NewEstimator(cfg Config, atlas *shadow.Atlas, samples *sampling.Sets) *Estimator {
	return &Estimator{
		cfg:     cfg,
		atlas:   atlas,
		blocker: samples.Blocker,
		filter:  samples.Filter,
	}
}

// Visibility returns how much of the light reaches r, in [0, 1]. Points
// outside the cone or facing away from the light get 0.
func (e *Estimator) Visibility(lv LightView, r Receiver) float32 {
	l := lv.Light
	toP := r.P.Sub(lv.Position)
	if toP.Len() == 0 {
		return 0
	}
	toP = toP.Normalize()
	nDotL := r.N.Dot(toP.Mul(-1))
	if toP.Dot(lv.Direction) < l.OuterCos-coneEpsilon || nDotL < 0 {
		return 0
	}

	u, v, dist, ok := lv.project(r.P)
	if !ok {
		return 0
	}
	if u < 0 || u > 1 || v < 0 || v > 1 || dist >= l.Far {
		return 1
	}
	zr := mathutil.Saturate((dist - l.Near) / (l.Far - l.Near))
	bias := max(l.MaxBias*(1-nDotL), l.MinBias)

	n := float32(e.atlas.Layout.SlotSize)
	tx, ty := u*n, v*n

	// Blocker search.
	search := mathutil.Clamp(l.Size*(dist-l.Near)/dist, e.cfg.MinSearch, e.cfg.MaxSearch)
	var sum float32
	count := 0
	for _, o := range e.blocker {
		d := e.depthAt(lv, tx+o[0]*2*search, ty+o[1]*2*search)
		if d < zr-bias {
			sum += d
			count++
		}
	}
	if count == 0 {
		return 1
	}

	blockerDist := l.Near + sum/float32(count)*(l.Far-l.Near)
	if blockerDist <= 0 {
		return 0
	}
	radius := mathutil.Clamp(l.Size*(dist-blockerDist)/blockerDist, 0, e.cfg.MaxFilterRadius)

	if e.cfg.Mode == PCF {
		return e.pcf(lv, tx, ty, radius, zr-bias, r.Rotation)
	}
	return e.variance(lv, tx, ty, radius, zr-bias)
}

func (e *Estimator) depthAt(lv LightView, x, y float32) float32 {
	return e.atlas.LinearDepth(lv.Slot, int(mathutil.Floor(x)), int(mathutil.Floor(y)))
}

func (e *Estimator) variance(lv LightView, tx, ty, radius, z float32) float32 {
	half := int(mathutil.Floor(radius))
	m := e.atlas.Summed.Mean(lv.Slot, int(mathutil.Floor(tx)), int(mathutil.Floor(ty)), half)

	mom := e.atlas.Moments
	if mom.Warp == shadow.VSM {
		return e.chebyshev(m[0], m[1], z, e.cfg.MinVariance)
	}
	pos, neg := mom.Tails(z)
	// Scale the variance floor by the warp's derivative at z.
	dp := mom.PosExp * pos
	dn := mom.NegExp * neg
	vp := e.chebyshev(m[0], m[1], pos, e.cfg.MinVariance*dp*dp)
	vn := e.chebyshev(m[2], m[3], neg, e.cfg.MinVariance*dn*dn)
	return min(vp, vn)
}

// chebyshev applies the one-tailed bound and remaps it to cut light bleeding.
func (e *Estimator) chebyshev(m1, m2 float64, z, minVariance float32) float32 {
	mean := float32(m1)
	if z <= mean {
		return 1
	}
	variance := max(float32(m2-m1*m1), minVariance)
	d := z - mean
	p := variance / (variance + d*d)
	return mathutil.Linstep(e.cfg.BleedReduction, 1, p)
}

func (e *Estimator) pcf(lv LightView, tx, ty, radius, z float32, rot mgl32.Vec2) float32 {
	if len(e.filter) == 0 {
		return 1
	}
	if rot == (mgl32.Vec2{}) {
		rot = mgl32.Vec2{1, 0}
	}
	scale := 2 * max(radius, 0.5)
	lit := 0
	for _, o := range e.filter {
		ox := o[0]*rot[0] - o[1]*rot[1]
		oy := o[0]*rot[1] + o[1]*rot[0]
		if e.depthAt(lv, tx+ox*scale, ty+oy*scale) >= z {
			lit++
		}
	}
	return float32(lit) / float32(len(e.filter))
}

// RotationFromNoise turns a tiled noise vector into a unit rotation.
func RotationFromNoise(n mgl32.Vec3) mgl32.Vec2 {
	l := float32(math.Hypot(float64(n[0]), float64(n[1])))
	if l == 0 {
		return mgl32.Vec2{1, 0}
	}
	return mgl32.Vec2{n[0] / l, n[1] / l}
}
