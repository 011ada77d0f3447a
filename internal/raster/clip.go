package raster

import "github.com/go-gl/mathgl/mgl32"

type clipVertex struct {
	pos  mgl32.Vec4
	bary [3]float32
}

// clipNear clips a triangle against the near plane z = -w. The result is a
// convex polygon of up to four vertices.
func clipNear(tri [3]mgl32.Vec4) ([4]clipVertex, int) {
	in := [3]clipVertex{
		{pos: tri[0], bary: [3]float32{1, 0, 0}},
		{pos: tri[1], bary: [3]float32{0, 1, 0}},
		{pos: tri[2], bary: [3]float32{0, 0, 1}},
	}

	var out [4]clipVertex
	n := 0
	for i := 0; i < 3; i++ {
		cur := in[i]
		next := in[(i+1)%3]
		dc := cur.pos[2] + cur.pos[3]
		dn := next.pos[2] + next.pos[3]

		if dc >= 0 {
			out[n] = cur
			n++
		}
		if (dc >= 0) != (dn >= 0) {
			t := dc / (dc - dn)
			out[n] = lerpVertex(cur, next, t)
			n++
		}
	}
	return out, n
}

func lerpVertex(a, b clipVertex, t float32) clipVertex {
	var v clipVertex
	v.pos = a.pos.Add(b.pos.Sub(a.pos).Mul(t))
	for k := 0; k < 3; k++ {
		v.bary[k] = a.bary[k] + (b.bary[k]-a.bary[k])*t
	}
	return v
}
