// Package gbuffer rasterizes opaque geometry into the deferred geometry
// buffer. No lighting happens here.
package gbuffer

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/dispatch"
	"spotlight-renderer/internal/mathutil"
	"spotlight-renderer/internal/raster"
	"spotlight-renderer/internal/scene"
	"spotlight-renderer/internal/target"
)

// Target names owned by the pass.
const (
	TargetDepth      = "gbuffer.depth"
	TargetLinear     = "gbuffer.linear"
	TargetPosition   = "gbuffer.position"
	TargetNormal     = "gbuffer.normal"
	TargetAlbedo     = "gbuffer.albedo"
	TargetRoughMetal = "gbuffer.rough-metal"
	TargetAmbient    = "gbuffer.ambient"

	Framebuffer = "gbuffer"
)

// albedoGamma decodes albedo maps, which are stored gamma encoded.
const albedoGamma = 2.2

// Buffers are the resolved G-buffer targets for the current size. The w of
// Position is 1 for covered texels and 0 for background.
type Buffers struct {
	Depth      *target.Target
	Linear     *target.Target
	Position   *target.Target
	Normal     *target.Target
	Albedo     *target.Target
	RoughMetal *target.Target
	Ambient    *target.Target
}

// Size returns the shared resolution.
func (b *Buffers) Size() (int, int) { return b.Position.Width, b.Position.Height }

// Covered reports whether geometry was written at (x, y).
func (b *Buffers) Covered(x, y int) bool { return b.Position.At(x, y)[3] > 0 }

// Input is the per-frame geometry and camera.
type Input struct {
	Meshes     []*scene.Mesh
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Near, Far  float32
	Ambient    mgl32.Vec3 // ambient color times intensity
}

// Pass owns the G-buffer targets.
type Pass struct {
	mgr  *target.Manager
	pool *dispatch.Pool
	log  *slog.Logger
	buf  Buffers
}

// NewPass creates the screen-sized targets and binds them as one
// framebuffer.
func NewPass(mgr *target.Manager, pool *dispatch.Pool, log *slog.Logger) (*Pass, error) {
	if err := mgr.Require(target.R32F, target.RGBA32F, target.RGBA8); err != nil {
		return nil, fmt.Errorf("gbuffer: %w", err)
	}
	descs := []target.Desc{
		{Name: TargetDepth, Format: target.R32F},
		{Name: TargetLinear, Format: target.R32F},
		{Name: TargetPosition, Format: target.RGBA32F},
		{Name: TargetNormal, Format: target.RGBA32F},
		{Name: TargetAlbedo, Format: target.RGBA8},
		{Name: TargetRoughMetal, Format: target.RGBA8},
		{Name: TargetAmbient, Format: target.RGBA32F},
	}
	var colors []target.Handle
	var depth target.Handle
	for _, d := range descs {
		d.ScreenSized = true
		d.Filter = target.Nearest
		h, err := mgr.CreateTarget(d)
		if err != nil {
			return nil, err
		}
		if d.Name == TargetDepth {
			depth = h
			continue
		}
		colors = append(colors, h)
	}
	if _, err := mgr.BindFramebuffer(Framebuffer, colors, &depth); err != nil {
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

// bind resolves the framebuffer for the current generation of the manager.
func (p *Pass) bind() error {
	h, err := p.mgr.LookupFramebuffer(Framebuffer)
	if err != nil {
		return err
	}
	fb, err := p.mgr.Framebuffer(h)
	if err != nil {
		return fmt.Errorf("gbuffer: bind: %w", err)
	}
	p.buf = Buffers{
		Depth:      fb.Depth,
		Linear:     fb.Color[0],
		Position:   fb.Color[1],
		Normal:     fb.Color[2],
		Albedo:     fb.Color[3],
		RoughMetal: fb.Color[4],
		Ambient:    fb.Color[5],
	}
	return nil
}

// Buffers returns the targets written by the last Run.
func (p *Pass) Buffers() *Buffers { return &p.buf }

// transformed holds the per-vertex values every band reuses.
type transformed struct {
	mesh   *scene.Mesh
	clip   []mgl32.Vec4
	pos    []mgl32.Vec3 // view space
	normal []mgl32.Vec3 // view space
}

// Run clears the buffers and rasterizes every visible mesh. Zero meshes
// leaves the cleared buffers.
func (p *Pass) Run(in Input) (*Buffers, error) {
	if err := p.bind(); err != nil {
		return nil, err
	}
	b := &p.buf
	p.clear()

	var work []transformed
	for _, m := range in.Meshes {
		if !m.Visible() {
			continue
		}
		work = append(work, transform(m, in.View, in.Projection))
	}
	if len(work) == 0 {
		p.log.Debug("gbuffer: no visible meshes")
		return b, nil
	}

	w, h := b.Size()
	viewport := image.Rect(0, 0, w, h)
	invRange := 1 / (in.Far - in.Near)

	// Each band of rows is rasterized by one worker, so every texel has a
	// single writer.
	const bandRows = 16
	bands := (h + bandRows - 1) / bandRows
	p.pool.Rows(0, bands, func(band int) {
		r := raster.Rasterizer{
			Viewport: viewport,
			Scissor:  image.Rect(0, band*bandRows, w, min((band+1)*bandRows, h)),
			Depth:    b.Depth,
		}
		for i := range work {
			t := &work[i]
			for k := 0; k < t.mesh.TriangleCount(); k++ {
				i0, i1, i2 := t.mesh.Triangle(k)
				r.Triangle(t.clip[i0], t.clip[i1], t.clip[i2], func(f *raster.Fragment) {
					p.shade(t, [3]uint32{i0, i1, i2}, f, in.Near, invRange, in.Ambient)
				})
			}
		}
	})
	p.log.Debug("gbuffer: rasterized", "meshes", len(work))
	return b, nil
}

func (p *Pass) clear() {
	b := &p.buf
	b.Depth.Clear(mgl32.Vec4{1})
	b.Linear.Clear(mgl32.Vec4{1})
	for _, t := range []*target.Target{b.Position, b.Normal, b.Albedo, b.RoughMetal, b.Ambient} {
		t.Clear(mgl32.Vec4{})
	}
}

func transform(m *scene.Mesh, view, proj mgl32.Mat4) transformed {
	mv := view.Mul4(m.Model)
	mvp := proj.Mul4(mv)
	nm := mathutil.NormalMatrix(mv)
	t := transformed{
		mesh:   m,
		clip:   make([]mgl32.Vec4, len(m.Vertices)),
		pos:    make([]mgl32.Vec3, len(m.Vertices)),
		normal: make([]mgl32.Vec3, len(m.Vertices)),
	}
	for i, v := range m.Vertices {
		p4 := v.Position.Vec4(1)
		t.clip[i] = mvp.Mul4x1(p4)
		t.pos[i] = mv.Mul4x1(p4).Vec3()
		t.normal[i] = nm.Mul3x1(v.Normal)
	}
	return t
}

func (p *Pass) shade(t *transformed, idx [3]uint32, f *raster.Fragment, near, invRange float32, ambient mgl32.Vec3) {
	b := &p.buf
	w := f.Bary
	vs := t.mesh.Vertices
	v0, v1, v2 := &vs[idx[0]], &vs[idx[1]], &vs[idx[2]]

	pos := t.pos[idx[0]].Mul(w[0]).Add(t.pos[idx[1]].Mul(w[1])).Add(t.pos[idx[2]].Mul(w[2]))
	n := t.normal[idx[0]].Mul(w[0]).Add(t.normal[idx[1]].Mul(w[1])).Add(t.normal[idx[2]].Mul(w[2]))
	n = mathutil.Normalize(n)
	albedo := v0.Albedo.Mul(w[0]).Add(v1.Albedo.Mul(w[1])).Add(v2.Albedo.Mul(w[2]))
	rough := v0.Roughness*w[0] + v1.Roughness*w[1] + v2.Roughness*w[2]
	metal := v0.Metallic*w[0] + v1.Metallic*w[1] + v2.Metallic*w[2]

	if t.mesh.AlbedoMap != nil {
		uv := v0.UV.Mul(w[0]).Add(v1.UV.Mul(w[1])).Add(v2.UV.Mul(w[2]))
		texel := raster.SampleNRGBA(t.mesh.AlbedoMap, uv)
		albedo = mathutil.MulVec3(albedo, mathutil.GammaDecode(texel.Vec3(), albedoGamma))
	}

	x, y := f.X, f.Y
	b.Linear.Set(x, y, mgl32.Vec4{mathutil.Saturate((-pos[2] - near) * invRange)})
	b.Position.Set(x, y, pos.Vec4(1))
	b.Normal.Set(x, y, n.Vec4(0))
	b.Albedo.Set(x, y, albedo.Vec4(1))
	b.RoughMetal.Set(x, y, mgl32.Vec4{rough, metal, 0, 1})
	b.Ambient.Set(x, y, ambient.Vec4(1))
}
