// Package target owns the off-screen images every pass reads and writes.
// Pixel data lives in flat slices for cache locality; floating-point and
// normalized formats share a float32 store, the fixed-point format a uint32
// store.
package target

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Format is the storage format of a target.
type Format int

const (
	RGBA8    Format = iota // unsigned normalized, quantized to 1/255
	R32F                   // single float channel
	RGBA32F                // four float channels
	RGBA32UI               // four unsigned 32-bit channels, fixed-point data
)

func (f Format) String() string {
	switch f {
	case RGBA8:
		return "RGBA8"
	case R32F:
		return "R32F"
	case RGBA32F:
		return "RGBA32F"
	case RGBA32UI:
		return "RGBA32UI"
	}
	return "unknown"
}

// Channels returns the number of stored channels.
func (f Format) Channels() int {
	if f == R32F {
		return 1
	}
	return 4
}

// Filter selects the sampling mode used by Sample.
type Filter int

const (
	Nearest Filter = iota
	Linear
)

// Target is a single render target.
type Target struct {
	Name   string
	Format Format
	Filter Filter
	Width  int
	Height int

	Pix  []float32 // float and normalized formats, len = W*H*channels
	UPix []uint32  // RGBA32UI, len = W*H*4

	channels int
}

func newTarget(d Desc, w, h int) *Target {
	t := &Target{
		Name:     d.Name,
		Format:   d.Format,
		Filter:   d.Filter,
		Width:    w,
		Height:   h,
		channels: d.Format.Channels(),
	}
	if d.Format == RGBA32UI {
		t.UPix = make([]uint32, w*h*4)
	} else {
		t.Pix = make([]float32, w*h*t.channels)
	}
	return t
}

// Bounds returns the full texel rectangle.
func (t *Target) Bounds() image.Rectangle {
	return image.Rect(0, 0, t.Width, t.Height)
}

func (t *Target) offset(x, y int) int {
	if x < 0 {
		x = 0
	} else if x >= t.Width {
		x = t.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= t.Height {
		y = t.Height - 1
	}
	return (y*t.Width + x) * t.channels
}

// At reads a texel with clamp-to-edge addressing. Single-channel formats
// return (v, 0, 0, 1).
func (t *Target) At(x, y int) mgl32.Vec4 {
	i := t.offset(x, y)
	switch t.Format {
	case R32F:
		return mgl32.Vec4{t.Pix[i], 0, 0, 1}
	case RGBA32UI:
		return mgl32.Vec4{float32(t.UPix[i]), float32(t.UPix[i+1]), float32(t.UPix[i+2]), float32(t.UPix[i+3])}
	}
	return mgl32.Vec4{t.Pix[i], t.Pix[i+1], t.Pix[i+2], t.Pix[i+3]}
}

// Set writes a texel. Out-of-range coordinates are ignored.
func (t *Target) Set(x, y int, v mgl32.Vec4) {
	if x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return
	}
	i := (y*t.Width + x) * t.channels
	switch t.Format {
	case R32F:
		t.Pix[i] = v[0]
	case RGBA8:
		for c := 0; c < 4; c++ {
			t.Pix[i+c] = unorm8(v[c])
		}
	case RGBA32UI:
		for c := 0; c < 4; c++ {
			t.UPix[i+c] = uint32(v[c])
		}
	default:
		copy(t.Pix[i:i+4], v[:])
	}
}

// Add blends v into the texel with one+one factors.
func (t *Target) Add(x, y int, v mgl32.Vec4) {
	t.Set(x, y, t.At(x, y).Add(v))
}

// AtUint reads a fixed-point texel with clamp-to-edge addressing.
func (t *Target) AtUint(x, y int) [4]uint32 {
	i := t.offset(x, y)
	return [4]uint32{t.UPix[i], t.UPix[i+1], t.UPix[i+2], t.UPix[i+3]}
}

// SetUint writes a fixed-point texel.
func (t *Target) SetUint(x, y int, v [4]uint32) {
	if x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return
	}
	i := (y*t.Width + x) * 4
	copy(t.UPix[i:i+4], v[:])
}

// Sample reads the target at normalized coordinates using its filter.
// Coordinates address texel centers at (i+0.5)/size and clamp to the edge.
func (t *Target) Sample(u, v float32) mgl32.Vec4 {
	fx := u*float32(t.Width) - 0.5
	fy := v*float32(t.Height) - 0.5
	if t.Filter == Nearest {
		return t.At(int(math.Floor(float64(fx+0.5))), int(math.Floor(float64(fy+0.5))))
	}

	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	dx := fx - float32(x0)
	dy := fy - float32(y0)

	c00 := t.At(x0, y0)
	c10 := t.At(x0+1, y0)
	c01 := t.At(x0, y0+1)
	c11 := t.At(x0+1, y0+1)

	top := c00.Mul(1 - dx).Add(c10.Mul(dx))
	bottom := c01.Mul(1 - dx).Add(c11.Mul(dx))
	return top.Mul(1 - dy).Add(bottom.Mul(dy))
}

// Clear fills the whole target with v.
func (t *Target) Clear(v mgl32.Vec4) {
	t.ClearRect(t.Bounds(), v)
}

// ClearRect fills the texels of r that lie inside the target.
func (t *Target) ClearRect(r image.Rectangle, v mgl32.Vec4) {
	r = r.Intersect(t.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			t.Set(x, y, v)
		}
	}
}

func unorm8(v float32) float32 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return float32(int(v*255+0.5)) / 255
}
