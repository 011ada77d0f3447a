package scene

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/mathutil"
)

// projectionMargin widens the light frustum past the outer cone (radians).
const projectionMargin = 0.1

// SpotlightConfig is the static description of a spotlight. Angles are full
// cone angles in degrees; Color is gamma encoded.
type SpotlightConfig struct {
	Position   mgl32.Vec3
	Pitch      float32
	Yaw        float32
	Color      mgl32.Vec3
	Intensity  float32
	InnerAngle float32
	OuterAngle float32
	Falloff    float32
	Size       float32
	MinBias    float32
	MaxBias    float32
	Near       float32
	Far        float32
}

// DefaultSpotlightConfig returns a warm white spot with the recommended
// bias range.
func DefaultSpotlightConfig() SpotlightConfig {
	return SpotlightConfig{
		Position:   mgl32.Vec3{3, 0.25, -0.05},
		Pitch:      mgl32.DegToRad(22.5),
		Yaw:        mgl32.DegToRad(90),
		Color:      mgl32.Vec3{1, 0.95, 0.9},
		Intensity:  5,
		InnerAngle: 35,
		OuterAngle: 65,
		Falloff:    1,
		Size:       12,
		MinBias:    0.0005,
		MaxBias:    0.005,
		Near:       1,
		Far:        100,
	}
}

// Spotlight is a cone light with a perspective shadow frustum.
type Spotlight struct {
	Color     mgl32.Vec3 // linear
	Intensity float32
	InnerCos  float32
	OuterCos  float32
	Falloff   float32
	Size      float32
	MinBias   float32
	MaxBias   float32
	Near      float32
	Far       float32
	Disabled  bool

	position mgl32.Vec3
	pitch    float32
	yaw      float32
	outer    float32 // full outer angle, radians
	view     mgl32.Mat4
	proj     mgl32.Mat4
	forward  mgl32.Vec3
}

// NewSpotlight validates cfg and derives the light's transforms.
func NewSpotlight(cfg SpotlightConfig) (*Spotlight, error) {
	switch {
	case cfg.OuterAngle <= 0 || mgl32.DegToRad(cfg.OuterAngle)+projectionMargin >= math.Pi:
		return nil, fmt.Errorf("scene: spotlight outer angle %.1f: must be in (0, %.1f)", cfg.OuterAngle, mgl32.RadToDeg(math.Pi-projectionMargin))
	case cfg.InnerAngle < 0 || cfg.InnerAngle > cfg.OuterAngle:
		return nil, fmt.Errorf("scene: spotlight inner angle %.1f: must be in [0, %.1f]", cfg.InnerAngle, cfg.OuterAngle)
	case cfg.Near <= 0 || cfg.Far <= cfg.Near:
		return nil, fmt.Errorf("scene: spotlight z planes [%g, %g]: need 0 < near < far", cfg.Near, cfg.Far)
	case cfg.Size < 0:
		return nil, fmt.Errorf("scene: spotlight size %g: must not be negative", cfg.Size)
	}

	outer := mgl32.DegToRad(cfg.OuterAngle)
	s := &Spotlight{
		Color:     mathutil.GammaDecode(cfg.Color, 2.2),
		Intensity: cfg.Intensity,
		InnerCos:  mathutil.Cos(mgl32.DegToRad(cfg.InnerAngle) / 2),
		OuterCos:  mathutil.Cos(outer / 2),
		Falloff:   cfg.Falloff,
		Size:      cfg.Size,
		MinBias:   cfg.MinBias,
		MaxBias:   cfg.MaxBias,
		Near:      cfg.Near,
		Far:       cfg.Far,
		outer:     outer,
		proj:      mgl32.Perspective(outer+projectionMargin, 1, cfg.Near, cfg.Far),
	}
	s.SetPose(cfg.Position, cfg.Pitch, cfg.Yaw)
	return s, nil
}

// SetPose moves the light and recomputes its view transform.
func (s *Spotlight) SetPose(pos mgl32.Vec3, pitch, yaw float32) {
	s.position, s.pitch, s.yaw = pos, pitch, yaw
	q := mathutil.YawPitch(yaw, pitch)
	s.view = mathutil.ViewFromPose(pos, q)
	s.forward = q.Rotate(mathutil.Forward)
}

// Position returns the world-space position.
func (s *Spotlight) Position() mgl32.Vec3 { return s.position }

// Forward returns the world-space cone axis.
func (s *Spotlight) Forward() mgl32.Vec3 { return s.forward }

// View returns the world-to-light transform.
func (s *Spotlight) View() mgl32.Mat4 { return s.view }

// Projection returns the shadow frustum projection.
func (s *Spotlight) Projection() mgl32.Mat4 { return s.proj }

func (s *Spotlight) Awake()         {}
func (s *Spotlight) Update(float64) {}
func (s *Spotlight) Release()       {}

// Visible reports whether the light contributes anything.
func (s *Spotlight) Visible() bool { return !s.Disabled && s.Intensity > 0 }
