package mathutil

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Clamp restricts x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Saturate clamps x to [0, 1].
func Saturate(x float32) float32 {
	return Clamp(x, 0, 1)
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Smoothstep is the Hermite step used by shading languages.
func Smoothstep(e0, e1, x float32) float32 {
	if e1 == e0 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := Saturate((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

// Linstep maps [lo, hi] linearly onto [0, 1] with clamping.
func Linstep(lo, hi, x float32) float32 {
	if hi <= lo {
		if x < lo {
			return 0
		}
		return 1
	}
	return Saturate((x - lo) / (hi - lo))
}

// Pow is a float32 wrapper around math.Pow.
func Pow(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}

// Exp is a float32 wrapper around math.Exp.
func Exp(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

// Sqrt is a float32 wrapper around math.Sqrt.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// Cos is a float32 wrapper around math.Cos.
func Cos(x float32) float32 {
	return float32(math.Cos(float64(x)))
}

func Sin(x float32) float32 {
	return float32(math.Sin(float64(x)))
}

func Floor(x float32) float32 {
	return float32(math.Floor(float64(x)))
}

// Abs returns |x|.
func Abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// Normalize returns v scaled to unit length, or the zero vector when v is
// degenerate. mgl32's Normalize produces NaNs for zero-length input.
func Normalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}

// TransformPoint applies an affine transform to a point (w = 1).
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

// TransformDir applies the upper 3x3 of m to a direction.
func TransformDir(m mgl32.Mat4, d mgl32.Vec3) mgl32.Vec3 {
	return m.Mat3().Mul3x1(d)
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of m.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	return m.Mat3().Inv().Transpose()
}

// MulVec3 multiplies two vectors component-wise.
func MulVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
