// Package raster scan-converts clip-space triangles into render targets.
package raster

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/target"
)

// Fragment is one covered texel. Bary holds perspective-correct weights of
// the three input vertices, so callers interpolate their own attributes.
type Fragment struct {
	X, Y  int
	Depth float32 // window depth in [0, 1]
	Bary  [3]float32
}

// Rasterizer draws into a viewport rectangle of its targets. Depth, when
// set, is an R32F target used for a less-than test and cleared by the
// caller to 1. A non-empty Scissor further limits the written texels, which
// lets several rasterizers share one viewport in disjoint bands.
type Rasterizer struct {
	Viewport image.Rectangle
	Scissor  image.Rectangle
	Depth    *target.Target
}

// Triangle rasterizes one triangle given in clip space. Both windings are
// drawn. Geometry in front of the near plane is clipped away.
func (r *Rasterizer) Triangle(c0, c1, c2 mgl32.Vec4, shade func(f *Fragment)) {
	poly, n := clipNear([3]mgl32.Vec4{c0, c1, c2})
	if n < 3 {
		return
	}
	for i := 1; i+1 < n; i++ {
		r.draw(poly[0], poly[i], poly[i+1], shade)
	}
}

// screenVertex is a clipped vertex after the perspective divide.
type screenVertex struct {
	x, y, z float32
	invW    float32
	bary    [3]float32
}

func (r *Rasterizer) project(v clipVertex) screenVertex {
	invW := 1 / v.pos[3]
	vw := float32(r.Viewport.Dx())
	vh := float32(r.Viewport.Dy())
	nx := v.pos[0] * invW
	ny := v.pos[1] * invW
	nz := v.pos[2] * invW
	return screenVertex{
		x:    float32(r.Viewport.Min.X) + (nx*0.5+0.5)*vw,
		y:    float32(r.Viewport.Min.Y) + (0.5-ny*0.5)*vh,
		z:    nz*0.5 + 0.5,
		invW: invW,
		bary: v.bary,
	}
}

func (r *Rasterizer) draw(a, b, c clipVertex, shade func(f *Fragment)) {
	v0, v1, v2 := r.project(a), r.project(b), r.project(c)

	area := edge(v0.x, v0.y, v1.x, v1.y, v2.x, v2.y)
	if area > -1e-8 && area < 1e-8 {
		return
	}
	invArea := 1 / area

	// Bounding box clamped to the viewport and scissor
	clip := r.Viewport
	if !r.Scissor.Empty() {
		clip = clip.Intersect(r.Scissor)
	}
	minX := int(math.Floor(float64(min(v0.x, v1.x, v2.x))))
	maxX := int(math.Ceil(float64(max(v0.x, v1.x, v2.x))))
	minY := int(math.Floor(float64(min(v0.y, v1.y, v2.y))))
	maxY := int(math.Ceil(float64(max(v0.y, v1.y, v2.y))))
	minX = max(minX, clip.Min.X)
	minY = max(minY, clip.Min.Y)
	maxX = min(maxX, clip.Max.X-1)
	maxY = min(maxY, clip.Max.Y-1)
	if minX > maxX || minY > maxY {
		return
	}

	var frag Fragment
	for sy := minY; sy <= maxY; sy++ {
		py := float32(sy) + 0.5
		for sx := minX; sx <= maxX; sx++ {
			px := float32(sx) + 0.5
			l0 := edge(v1.x, v1.y, v2.x, v2.y, px, py) * invArea
			l1 := edge(v2.x, v2.y, v0.x, v0.y, px, py) * invArea
			l2 := 1 - l0 - l1
			if l0 < 0 || l1 < 0 || l2 < 0 {
				continue
			}

			z := l0*v0.z + l1*v1.z + l2*v2.z
			if z < 0 || z > 1 {
				continue
			}
			if r.Depth != nil {
				if z >= r.Depth.At(sx, sy)[0] {
					continue
				}
				r.Depth.Set(sx, sy, mgl32.Vec4{z})
			}

			// Perspective-correct weights back to the source triangle
			p0 := l0 * v0.invW
			p1 := l1 * v1.invW
			p2 := l2 * v2.invW
			inv := 1 / (p0 + p1 + p2)
			for k := 0; k < 3; k++ {
				frag.Bary[k] = (p0*v0.bary[k] + p1*v1.bary[k] + p2*v2.bary[k]) * inv
			}
			frag.X, frag.Y, frag.Depth = sx, sy, z
			shade(&frag)
		}
	}
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}
