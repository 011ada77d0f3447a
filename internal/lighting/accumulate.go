// Package lighting accumulates the radiance of every spotlight into a
// floating-point buffer using the G-buffer materials.
package lighting

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/dispatch"
	"spotlight-renderer/internal/gbuffer"
	"spotlight-renderer/internal/mathutil"
	"spotlight-renderer/internal/pcss"
	"spotlight-renderer/internal/sampling"
	"spotlight-renderer/internal/target"
)

// TargetAccum is the radiance accumulation buffer.
const TargetAccum = "lighting.accum"

// coneEpsilon matches the cone test of the shadow estimator.
const coneEpsilon = 1e-4

// Shadower returns the visibility of a light at a receiver.
type Shadower interface {
	Visibility(lv pcss.LightView, r pcss.Receiver) float32
}

// Unshadowed lights every receiver fully.
type Unshadowed struct{}

func (Unshadowed) Visibility(pcss.LightView, pcss.Receiver) float32 { return 1 }

// Pass owns the accumulation buffer.
type Pass struct {
	mgr   *target.Manager
	pool  *dispatch.Pool
	log   *slog.Logger
	accum *target.Target
}

// NewPass creates the screen-sized RGBA32F accumulation target.
func NewPass(mgr *target.Manager, pool *dispatch.Pool, log *slog.Logger) (*Pass, error) {
	if err := mgr.Require(target.RGBA32F); err != nil {
		return nil, fmt.Errorf("lighting: %w", err)
	}
	d := target.Desc{Name: TargetAccum, Format: target.RGBA32F, Filter: target.Nearest, ScreenSized: true}
	if _, err := mgr.CreateTarget(d); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Pass{mgr: mgr, pool: pool, log: log}
	if err := p.bind(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pass) bind() error {
	h, err := p.mgr.Lookup(TargetAccum)
	if err != nil {
		return err
	}
	t, err := p.mgr.Target(h)
	if err != nil {
		return fmt.Errorf("lighting: bind %s: %w", TargetAccum, err)
	}
	p.accum = t
	return nil
}

// Run clears the buffer and adds one full-screen pass per light.
func (p *Pass) Run(g *gbuffer.Buffers, lights []pcss.LightView, shadows Shadower, samples *sampling.Sets) (*target.Target, error) {
	if err := p.bind(); err != nil {
		return nil, err
	}
	p.accum.Clear(mgl32.Vec4{})
	w, h := g.Size()

	for _, lv := range lights {
		if !lv.Light.Visible() {
			continue
		}
		p.pool.Rows(0, h, func(y int) {
			for x := 0; x < w; x++ {
				if !g.Covered(x, y) {
					continue
				}
				rot := pcss.RotationFromNoise(samples.NoiseAt(x, y))
				if c, ok := shade(g, lv, shadows, rot, x, y); ok {
					p.accum.Add(x, y, c.Vec4(0))
				}
			}
		})
	}
	p.log.Debug("lighting: accumulated", "lights", len(lights))
	return p.accum, nil
}

// shade evaluates one light at one texel. ok is false when the texel is
// outside the cone, faces away, or is fully shadowed.
func shade(g *gbuffer.Buffers, lv pcss.LightView, shadows Shadower, rot mgl32.Vec2, x, y int) (mgl32.Vec3, bool) {
	l := lv.Light
	pos := g.Position.At(x, y).Vec3()
	n := g.Normal.At(x, y).Vec3()

	lToP := mathutil.Normalize(pos.Sub(lv.Position))
	cos := lToP.Dot(lv.Direction)
	if n.Dot(lToP.Mul(-1)) < 0 || cos < l.OuterCos-coneEpsilon {
		return mgl32.Vec3{}, false
	}
	intensity := l.Intensity * ConeIntensity(cos, l.InnerCos, l.OuterCos, l.Falloff)
	if intensity <= 0 {
		return mgl32.Vec3{}, false
	}

	vis := shadows.Visibility(lv, pcss.Receiver{P: pos, N: n, Rotation: rot})
	if vis <= 0 {
		return mgl32.Vec3{}, false
	}

	albedo := g.Albedo.At(x, y).Vec3()
	rm := g.RoughMetal.At(x, y)
	view := mathutil.Normalize(pos.Mul(-1))
	brdf := CookTorrance(n, view, lToP.Mul(-1), albedo, rm[0], rm[1])
	return mathutil.MulVec3(brdf, l.Color).Mul(intensity * vis), true
}
