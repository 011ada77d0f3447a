// Package postprocess combines the lighting buffers into the displayed
// image: tone mapping, gamma, debug views and edge anti-aliasing.
package postprocess

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/dispatch"
	"spotlight-renderer/internal/gbuffer"
	"spotlight-renderer/internal/mathutil"
	"spotlight-renderer/internal/target"
)

// Target names owned by the pass.
const (
	TargetComposite = "post.composite"
	TargetAA        = "post.fxaa"
)

// DisplayGamma is the gamma the composite is encoded for.
const DisplayGamma = 2.2

// DebugView replaces the composite with an intermediate buffer.
type DebugView int

const (
	ViewFinal DebugView = iota
	ViewDepth
	ViewNormals
	ViewAlbedo
	ViewAO
	ViewLight
	ViewAtlas
)

var debugNames = []string{"final", "depth", "normals", "albedo", "ao", "light", "atlas"}

func (v DebugView) String() string {
	if v < 0 || int(v) >= len(debugNames) {
		return "unknown"
	}
	return debugNames[v]
}

// ParseDebugView maps a configuration name to a view.
func ParseDebugView(s string) (DebugView, error) {
	if s == "" {
		return ViewFinal, nil
	}
	for i, n := range debugNames {
		if n == s {
			return DebugView(i), nil
		}
	}
	return 0, fmt.Errorf("postprocess: unknown debug view %q", s)
}

// Inputs are the buffers read by the composite. Atlas is only needed for
// the atlas view.
type Inputs struct {
	G     *gbuffer.Buffers
	AO    *target.Target
	Light *target.Target
	Atlas *target.Target
	View  DebugView
}

// Pass owns the display-space targets.
type Pass struct {
	mgr  *target.Manager
	pool *dispatch.Pool
	log  *slog.Logger

	composite, aa *target.Target
}

// NewPass creates the RGBA8 composite and anti-aliasing targets.
func NewPass(mgr *target.Manager, pool *dispatch.Pool, log *slog.Logger) (*Pass, error) {
	if err := mgr.Require(target.RGBA8); err != nil {
		return nil, fmt.Errorf("postprocess: %w", err)
	}
	for _, name := range []string{TargetComposite, TargetAA} {
		// FXAA reads its input between texel centers.
		d := target.Desc{Name: name, Format: target.RGBA8, Filter: target.Linear, ScreenSized: true}
		if _, err := mgr.CreateTarget(d); err != nil {
			return nil, err
		}
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
	for _, r := range []struct {
		name string
		dst  **target.Target
	}{
		{TargetComposite, &p.composite},
		{TargetAA, &p.aa},
	} {
		h, err := p.mgr.Lookup(r.name)
		if err != nil {
			return err
		}
		t, err := p.mgr.Target(h)
		if err != nil {
			return fmt.Errorf("postprocess: bind %s: %w", r.name, err)
		}
		*r.dst = t
	}
	return nil
}

// Composite writes the tone-mapped, gamma-encoded frame. Background texels
// are black.
func (p *Pass) Composite(in Inputs) (*target.Target, error) {
	if err := p.bind(); err != nil {
		return nil, err
	}
	if in.View == ViewAtlas && in.Atlas == nil {
		return nil, fmt.Errorf("postprocess: atlas view without an atlas")
	}
	out := p.composite
	w, h := out.Width, out.Height
	p.pool.Rows(0, h, func(y int) {
		for x := 0; x < w; x++ {
			out.Set(x, y, p.texel(in, x, y, w, h).Vec4(1))
		}
	})
	return out, nil
}

func (p *Pass) texel(in Inputs, x, y, w, h int) mgl32.Vec3 {
	g := in.G
	if in.View == ViewAtlas {
		u := (float32(x) + 0.5) / float32(w)
		v := (float32(y) + 0.5) / float32(h)
		d := in.Atlas.Sample(u, v)[0]
		return mgl32.Vec3{d, d, d}
	}
	if !g.Covered(x, y) {
		return mgl32.Vec3{}
	}

	switch in.View {
	case ViewDepth:
		d := g.Linear.At(x, y)[0]
		return mgl32.Vec3{d, d, d}
	case ViewNormals:
		n := g.Normal.At(x, y).Vec3()
		return n.Mul(0.5).Add(mgl32.Vec3{0.5, 0.5, 0.5})
	case ViewAlbedo:
		return g.Albedo.At(x, y).Vec3()
	case ViewAO:
		ao := in.AO.At(x, y)[0]
		return mgl32.Vec3{ao, ao, ao}
	case ViewLight:
		return mathutil.GammaEncode(mathutil.ACESFitted(in.Light.At(x, y).Vec3()), DisplayGamma)
	}

	albedo := g.Albedo.At(x, y).Vec3()
	ambient := g.Ambient.At(x, y).Vec3().Mul(in.AO.At(x, y)[0])
	hdr := mathutil.MulVec3(ambient, albedo).Add(in.Light.At(x, y).Vec3())
	return mathutil.GammaEncode(mathutil.ACESFitted(hdr), DisplayGamma)
}

// Image converts an RGBA8 target into an opaque NRGBA image.
func Image(t *target.Target) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			c := t.At(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(mathutil.Saturate(c[0])*255 + 0.5)
			img.Pix[i+1] = uint8(mathutil.Saturate(c[1])*255 + 0.5)
			img.Pix[i+2] = uint8(mathutil.Saturate(c[2])*255 + 0.5)
			img.Pix[i+3] = 255
		}
	}
	return img
}
