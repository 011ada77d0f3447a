// Package ssao computes screen-space ambient occlusion from the G-buffer.
package ssao

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/dispatch"
	"spotlight-renderer/internal/gbuffer"
	"spotlight-renderer/internal/mathutil"
	"spotlight-renderer/internal/sampling"
	"spotlight-renderer/internal/target"
)

// Target names owned by the pass.
const (
	TargetRaw     = "ssao.raw"
	TargetBlurred = "ssao.blurred"
)

// Config holds the kernel constants, in view-space units.
type Config struct {
	Radius float32
	Bias   float32
}

func DefaultConfig() Config {
	return Config{Radius: 0.25, Bias: 0.01}
}

// Pass owns the occlusion targets.
type Pass struct {
	cfg  Config
	mgr  *target.Manager
	pool *dispatch.Pool
	log  *slog.Logger

	raw, blurred *target.Target
}

// NewPass creates the screen-sized occlusion targets.
func NewPass(mgr *target.Manager, pool *dispatch.Pool, cfg Config, log *slog.Logger) (*Pass, error) {
	if err := mgr.Require(target.R32F); err != nil {
		return nil, fmt.Errorf("ssao: %w", err)
	}
	for _, name := range []string{TargetRaw, TargetBlurred} {
		d := target.Desc{Name: name, Format: target.R32F, Filter: target.Nearest, ScreenSized: true}
		if _, err := mgr.CreateTarget(d); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Pass{cfg: cfg, mgr: mgr, pool: pool, log: log}
	if err := p.bind(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pass) bind() error {
	for _, r := range []struct {
		name string
		dst  **target.Target
	}{
		{TargetRaw, &p.raw},
		{TargetBlurred, &p.blurred},
	} {
		h, err := p.mgr.Lookup(r.name)
		if err != nil {
			return err
		}
		t, err := p.mgr.Target(h)
		if err != nil {
			return fmt.Errorf("ssao: bind %s: %w", r.name, err)
		}
		*r.dst = t
	}
	return nil
}

// Skip fills the output with 1 for frames rendered without occlusion.
func (p *Pass) Skip() (*target.Target, error) {
	if err := p.bind(); err != nil {
		return nil, err
	}
	p.blurred.Clear(mgl32.Vec4{1})
	return p.blurred, nil
}

// Run computes occlusion in [0, 1] (1 is unoccluded) and blurs it over the
// noise tile. proj must be the projection the G-buffer was rendered with.
func (p *Pass) Run(g *gbuffer.Buffers, proj mgl32.Mat4, samples *sampling.Sets) (*target.Target, error) {
	if err := p.bind(); err != nil {
		return nil, err
	}
	w, h := g.Size()
	kernel := samples.Kernel

	p.pool.Rows(0, h, func(y int) {
		for x := 0; x < w; x++ {
			p.raw.Set(x, y, mgl32.Vec4{p.occlusion(g, proj, kernel, samples.NoiseAt(x, y), x, y)})
		}
	})

	// Box blur over offsets -2..1, the size of the noise tile.
	p.pool.Rows(0, h, func(y int) {
		for x := 0; x < w; x++ {
			if !g.Covered(x, y) {
				p.blurred.Set(x, y, mgl32.Vec4{1})
				continue
			}
			var sum float32
			for dy := -2; dy < 2; dy++ {
				for dx := -2; dx < 2; dx++ {
					sum += p.raw.At(x+dx, y+dy)[0]
				}
			}
			p.blurred.Set(x, y, mgl32.Vec4{sum / 16})
		}
	})
	return p.blurred, nil
}

func (p *Pass) occlusion(g *gbuffer.Buffers, proj mgl32.Mat4, kernel []mgl32.Vec3, noise mgl32.Vec3, x, y int) float32 {
	if !g.Covered(x, y) || len(kernel) == 0 {
		return 1
	}
	pos := g.Position.At(x, y).Vec3()
	n := g.Normal.At(x, y).Vec3()

	// Tangent frame randomized by the tiled noise.
	tangent := mathutil.Normalize(noise.Sub(n.Mul(noise.Dot(n))))
	bitangent := n.Cross(tangent)
	tbn := mgl32.Mat3FromCols(tangent, bitangent, n)

	var occ float32
	for _, k := range kernel {
		s := pos.Add(tbn.Mul3x1(k).Mul(p.cfg.Radius))
		c := proj.Mul4x1(s.Vec4(1))
		if c[3] <= 0 {
			continue
		}
		u := c[0]/c[3]*0.5 + 0.5
		v := 0.5 - c[1]/c[3]*0.5
		sp := g.Position.Sample(u, v)
		if sp[3] == 0 {
			continue // background never occludes
		}
		sampleDepth := sp[2]
		if sampleDepth >= s[2]+p.cfg.Bias {
			occ += mathutil.Smoothstep(0, 1, p.cfg.Radius/mathutil.Abs(pos[2]-sampleDepth))
		}
	}
	return mathutil.Saturate(1 - occ/float32(len(kernel)))
}
