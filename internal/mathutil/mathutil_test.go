package mathutil

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func TestClampAndSteps(t *testing.T) {
	tests := []struct {
		name string
		got  float32
		want float32
	}{
		{"clamp low", Clamp(-1, 0, 2), 0},
		{"clamp high", Clamp(3, 0, 2), 2},
		{"clamp inside", Clamp(1.5, 0, 2), 1.5},
		{"saturate", Saturate(1.2), 1},
		{"lerp", Lerp(2, 4, 0.25), 2.5},
		{"smoothstep mid", Smoothstep(0, 1, 0.5), 0.5},
		{"smoothstep below", Smoothstep(0, 1, -1), 0},
		{"smoothstep degenerate", Smoothstep(1, 1, 2), 1},
		{"linstep", Linstep(0.2, 1, 0.6), 0.5},
		{"linstep degenerate", Linstep(1, 1, 0.5), 0},
		{"abs", Abs(-3), 3},
		{"floor", Floor(-0.5), -1},
	}
	for _, tt := range tests {
		if !near(tt.got, tt.want, 1e-6) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, tt.got)
		}
	}
}

func TestNormalizeZero(t *testing.T) {
	if v := Normalize(mgl32.Vec3{}); v != (mgl32.Vec3{}) {
		t.Errorf("expected zero vector, got %v", v)
	}
	if v := Normalize(mgl32.Vec3{0, 3, 4}); !near(v.Len(), 1, 1e-6) {
		t.Errorf("expected unit length, got %v", v.Len())
	}
}

func TestTransforms(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	if p := TransformPoint(m, mgl32.Vec3{1, 0, 0}); !p.ApproxEqual(mgl32.Vec3{3, 2, 3}) {
		t.Errorf("point: got %v", p)
	}
	if d := TransformDir(m, mgl32.Vec3{1, 0, 0}); !d.ApproxEqual(mgl32.Vec3{2, 0, 0}) {
		t.Errorf("direction ignores translation: got %v", d)
	}
	// Non-uniform scale: the normal of the plane x = y must stay perpendicular.
	s := mgl32.Scale3D(2, 1, 1)
	n := NormalMatrix(s).Mul3x1(mgl32.Vec3{1, -1, 0})
	tangent := TransformDir(s, mgl32.Vec3{1, 1, 0})
	if !near(n.Dot(tangent), 0, 1e-5) {
		t.Errorf("normal not perpendicular after transform: %v . %v", n, tangent)
	}
}

func TestYawPitchLooksDown(t *testing.T) {
	q := YawPitch(0, -math.Pi/2)
	if d := q.Rotate(Forward); !d.ApproxEqualThreshold(mgl32.Vec3{0, -1, 0}, 1e-5) {
		t.Errorf("expected straight down, got %v", d)
	}
	q = YawPitch(math.Pi/2, 0)
	if d := q.Rotate(Forward); !d.ApproxEqualThreshold(mgl32.Vec3{-1, 0, 0}, 1e-5) {
		t.Errorf("expected -x after a quarter yaw, got %v", d)
	}
}

func TestViewFromPose(t *testing.T) {
	pos := mgl32.Vec3{0, 5, 0}
	view := ViewFromPose(pos, YawPitch(0, 0))
	if p := TransformPoint(view, mgl32.Vec3{0, 5, -2}); !p.ApproxEqualThreshold(mgl32.Vec3{0, 0, -2}, 1e-5) {
		t.Errorf("expected a point ahead of the eye on -z, got %v", p)
	}
}

func TestToneMapping(t *testing.T) {
	if c := ACESFitted(mgl32.Vec3{}); c.Len() > 1e-3 {
		t.Errorf("black should stay near black, got %v", c)
	}
	lo := ACESFitted(mgl32.Vec3{0.2, 0.2, 0.2})
	hi := ACESFitted(mgl32.Vec3{2, 2, 2})
	if hi[0] <= lo[0] {
		t.Errorf("expected monotonic response, got %v then %v", lo, hi)
	}
	if huge := ACESFitted(mgl32.Vec3{100, 100, 100}); huge[0] > 1.05 {
		t.Errorf("expected highlights to roll off near 1, got %v", huge)
	}

	c := mgl32.Vec3{0.25, 0.5, 1}
	back := GammaDecode(GammaEncode(c, 2.2), 2.2)
	if !back.ApproxEqualThreshold(c, 1e-5) {
		t.Errorf("gamma round trip: expected %v, got %v", c, back)
	}
	if e := GammaEncode(mgl32.Vec3{2, -1, 0}, 2.2); e != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("expected encode to clamp, got %v", e)
	}
	if l := Luminance(mgl32.Vec3{1, 1, 1}); !near(l, 1, 1e-6) {
		t.Errorf("white luminance: got %v", l)
	}
}
