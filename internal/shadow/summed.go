package shadow

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/target"
)

// Atlas is the read-only result of a finished build.
type Atlas struct {
	Layout  Layout
	Moments Moments
	Linear  *target.Target
	Summed  SummedArea
}

// LinearDepth reads the linear depth of a slot-local texel, clamped to the
// slot.
func (a *Atlas) LinearDepth(s Slot, x, y int) float32 {
	n := a.Layout.SlotSize
	x = min(max(x, 0), n-1)
	y = min(max(y, 0), n-1)
	return a.Linear.At(s.X*n+x, s.Y*n+y)[0]
}

// SummedArea answers rectangle sums over one slot in constant time.
type SummedArea struct {
	table    *target.Target
	layout   Layout
	encoding Encoding
	scale    float64
	offsets  []mgl32.Vec4 // float encoding: per-slot mean removed before summing
}

// Sum returns the moment sums over r, given in slot-local texels. The
// rectangle is clamped to the slot first.
func (s SummedArea) Sum(slot Slot, r image.Rectangle) [4]float64 {
	n := s.layout.SlotSize
	r = r.Intersect(image.Rect(0, 0, n, n))
	if r.Empty() {
		return [4]float64{}
	}
	ox, oy := slot.X*n, slot.Y*n
	x0, y0 := ox+r.Min.X-1, oy+r.Min.Y-1
	x1, y1 := ox+r.Max.X-1, oy+r.Max.Y-1
	left := r.Min.X > 0
	top := r.Min.Y > 0

	var out [4]float64
	if s.encoding == FixedPoint {
		// Modular arithmetic is exact here: the true result fits in 32 bits.
		sum := s.table.AtUint(x1, y1)
		if left {
			v := s.table.AtUint(x0, y1)
			for c := range sum {
				sum[c] -= v[c]
			}
		}
		if top {
			v := s.table.AtUint(x1, y0)
			for c := range sum {
				sum[c] -= v[c]
			}
		}
		if left && top {
			v := s.table.AtUint(x0, y0)
			for c := range sum {
				sum[c] += v[c]
			}
		}
		for c := range out {
			out[c] = float64(sum[c]) / s.scale
		}
		return out
	}

	v := s.table.At(x1, y1)
	for c := range out {
		out[c] = float64(v[c])
	}
	if left {
		v := s.table.At(x0, y1)
		for c := range out {
			out[c] -= float64(v[c])
		}
	}
	if top {
		v := s.table.At(x1, y0)
		for c := range out {
			out[c] -= float64(v[c])
		}
	}
	if left && top {
		v := s.table.At(x0, y0)
		for c := range out {
			out[c] += float64(v[c])
		}
	}
	if i := slotIndex(slot); i < len(s.offsets) {
		area := float64(r.Dx() * r.Dy())
		for c := range out {
			out[c] += float64(s.offsets[i][c]) * area
		}
	}
	return out
}

// Mean averages the moments over the square of half-size half centred on
// (cx, cy), normalized by the area left after clamping to the slot.
func (s SummedArea) Mean(slot Slot, cx, cy, half int) [4]float64 {
	r := image.Rect(cx-half, cy-half, cx+half+1, cy+half+1)
	r = r.Intersect(image.Rect(0, 0, s.layout.SlotSize, s.layout.SlotSize))
	if r.Empty() {
		return [4]float64{}
	}
	sum := s.Sum(slot, r)
	area := float64(r.Dx() * r.Dy())
	for c := range sum {
		sum[c] /= area
	}
	return sum
}
