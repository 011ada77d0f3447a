package mathutil

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ACES fitted input/output transforms (sRGB -> RRT_SAT, ODT_SAT -> sRGB),
// stored column-major as mgl32 expects.
var (
	acesIn = mgl32.Mat3{
		0.59719, 0.07600, 0.02840,
		0.35458, 0.90834, 0.13383,
		0.04823, 0.01566, 0.83777,
	}
	acesOut = mgl32.Mat3{
		1.60475, -0.10208, -0.00327,
		-0.53108, 1.10813, -0.07276,
		-0.07367, -0.00605, 1.07602,
	}
)

// ACESFitted applies the fitted ACES RRT+ODT curve to linear HDR color.
func ACESFitted(c mgl32.Vec3) mgl32.Vec3 {
	v := acesIn.Mul3x1(c)
	for i := range v {
		x := v[i]
		a := x*(x+0.0245786) - 0.000090537
		b := x*(x*0.983729+0.4329510) + 0.238081
		v[i] = a / b
	}
	return acesOut.Mul3x1(v)
}

// GammaEncode raises each clamped channel to 1/gamma.
func GammaEncode(c mgl32.Vec3, gamma float32) mgl32.Vec3 {
	inv := 1 / float64(gamma)
	for i := range c {
		c[i] = float32(math.Pow(float64(Saturate(c[i])), inv))
	}
	return c
}

// GammaDecode converts a gamma-space color to linear.
func GammaDecode(c mgl32.Vec3, gamma float32) mgl32.Vec3 {
	for i := range c {
		c[i] = float32(math.Pow(float64(c[i]), float64(gamma)))
	}
	return c
}

// Luminance returns Rec. 709 relative luminance.
func Luminance(c mgl32.Vec3) float32 {
	return c.Dot(mgl32.Vec3{0.2126, 0.7152, 0.0722})
}
