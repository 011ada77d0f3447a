package shadow

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/mathutil"
)

// Warp selects the depth warp applied before taking moments.
type Warp int

const (
	VSM  Warp = iota // identity
	EVSM             // exponential, positive and negative tails
)

func (w Warp) String() string {
	if w == EVSM {
		return "evsm"
	}
	return "vsm"
}

// ParseWarp maps a configuration name to a warp.
func ParseWarp(s string) (Warp, error) {
	switch s {
	case "vsm", "":
		return VSM, nil
	case "evsm":
		return EVSM, nil
	}
	return 0, fmt.Errorf("shadow: unknown warp %q", s)
}

// Encoding selects the summed-area storage.
type Encoding int

const (
	FixedPoint Encoding = iota // RGBA32UI, values in [0, 1] scaled per slot area
	Float                      // RGBA32F
)

func (e Encoding) String() string {
	if e == Float {
		return "float"
	}
	return "fixed"
}

// ParseEncoding maps a configuration name to an encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "fixed", "":
		return FixedPoint, nil
	case "float":
		return Float, nil
	}
	return 0, fmt.Errorf("shadow: unknown encoding %q", s)
}

// DefaultExponent keeps e^{c} well inside float32 range for both tails.
const DefaultExponent = 5

// Moments maps linear depth to the stored moment channels.
type Moments struct {
	Warp   Warp
	PosExp float32
	NegExp float32
}

// Encode returns the moments of linear depth z in [0, 1]. VSM fills
// (z, z², 0, 0); EVSM fills (p, p², n, n²) with p = e^{c+ z'} and
// n = -e^{-c- z'} for z' = 2z - 1.
func (m Moments) Encode(z float32) mgl32.Vec4 {
	if m.Warp == VSM {
		return mgl32.Vec4{z, z * z, 0, 0}
	}
	p, n := m.Tails(z)
	return mgl32.Vec4{p, p * p, n, n * n}
}

// Tails returns the positive and negative exponential warps of z. Both are
// increasing in z.
func (m Moments) Tails(z float32) (pos, neg float32) {
	zz := z*2 - 1
	return mathutil.Exp(m.PosExp * zz), -mathutil.Exp(-m.NegExp * zz)
}
