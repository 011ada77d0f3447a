package scene

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Material is a uniform surface description for fixture meshes.
type Material struct {
	Albedo    mgl32.Vec3
	Roughness float32
	Metallic  float32
}

var (
	wallMaterial  = Material{Albedo: mgl32.Vec3{0.8, 0.8, 0.8}, Roughness: 1}
	floorMaterial = Material{Albedo: mgl32.Vec3{0.8, 0.8, 0.8}, Roughness: 0.3, Metallic: 0.1}
)

// Dimensions of the pillar fixture.
const (
	PillarHalfWidth   = 0.5
	PillarHeight      = 3.0
	PillarLightHeight = 6.0
	PillarFloorExtent = 10.0
)

func (m *Mesh) quad(p0, p1, p2, p3, n mgl32.Vec3, mat Material, uvScale float32) {
	base := uint32(len(m.Vertices))
	uvs := [4]mgl32.Vec2{{0, 0}, {uvScale, 0}, {uvScale, uvScale}, {0, uvScale}}
	for i, p := range [4]mgl32.Vec3{p0, p1, p2, p3} {
		m.Vertices = append(m.Vertices, Vertex{
			Position:  p,
			Normal:    n,
			Albedo:    mat.Albedo,
			Roughness: mat.Roughness,
			Metallic:  mat.Metallic,
			UV:        uvs[i],
		})
	}
	m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
}

// Plane returns an upward-facing square centred on center.
func Plane(name string, center mgl32.Vec3, halfExtent float32, mat Material) *Mesh {
	m := &Mesh{Name: name, Model: mgl32.Ident4()}
	cx, cy, cz := center[0], center[1], center[2]
	m.quad(
		mgl32.Vec3{cx - halfExtent, cy, cz + halfExtent},
		mgl32.Vec3{cx + halfExtent, cy, cz + halfExtent},
		mgl32.Vec3{cx + halfExtent, cy, cz - halfExtent},
		mgl32.Vec3{cx - halfExtent, cy, cz - halfExtent},
		mgl32.Vec3{0, 1, 0}, mat, halfExtent,
	)
	return m
}

// Box returns an axis-aligned box with outward normals.
func Box(name string, lo, hi mgl32.Vec3, mat Material) *Mesh {
	m := &Mesh{Name: name, Model: mgl32.Ident4()}
	x0, y0, z0 := lo[0], lo[1], lo[2]
	x1, y1, z1 := hi[0], hi[1], hi[2]
	v := func(x, y, z float32) mgl32.Vec3 { return mgl32.Vec3{x, y, z} }

	// top, bottom, +x, -x, +z, -z
	m.quad(v(x0, y1, z1), v(x1, y1, z1), v(x1, y1, z0), v(x0, y1, z0), v(0, 1, 0), mat, 1)
	m.quad(v(x0, y0, z0), v(x1, y0, z0), v(x1, y0, z1), v(x0, y0, z1), v(0, -1, 0), mat, 1)
	m.quad(v(x1, y0, z1), v(x1, y0, z0), v(x1, y1, z0), v(x1, y1, z1), v(1, 0, 0), mat, 1)
	m.quad(v(x0, y0, z0), v(x0, y0, z1), v(x0, y1, z1), v(x0, y1, z0), v(-1, 0, 0), mat, 1)
	m.quad(v(x0, y0, z1), v(x1, y0, z1), v(x1, y1, z1), v(x0, y1, z1), v(0, 0, 1), mat, 1)
	m.quad(v(x1, y0, z0), v(x0, y0, z0), v(x0, y1, z0), v(x1, y1, z0), v(0, 0, -1), mat, 1)
	return m
}

// PillarRoom is a single spotlight straight above a floor with one square
// pillar under it.
func PillarRoom(lightSize float32) (*Room, Camera, error) {
	light, err := NewSpotlight(SpotlightConfig{
		Position:   mgl32.Vec3{0, PillarLightHeight, 0},
		Pitch:      -math.Pi / 2,
		Color:      mgl32.Vec3{1, 1, 1},
		Intensity:  5,
		InnerAngle: 60,
		OuterAngle: 90,
		Falloff:    1,
		Size:       lightSize,
		MinBias:    0.0005,
		MaxBias:    0.005,
		Near:       1,
		Far:        20,
	})
	if err != nil {
		return nil, Camera{}, err
	}

	room := &Room{
		Name: "pillar",
		Meshes: []*Mesh{
			Plane("floor", mgl32.Vec3{}, PillarFloorExtent, floorMaterial),
			Box("pillar",
				mgl32.Vec3{-PillarHalfWidth, 0, -PillarHalfWidth},
				mgl32.Vec3{PillarHalfWidth, PillarHeight, PillarHalfWidth},
				wallMaterial),
		},
		Lights:           []*Spotlight{light},
		Ambient:          mgl32.Vec3{1, 1, 1},
		AmbientIntensity: 0.3,
	}
	room.Awake()

	cam := DefaultCamera()
	cam.Position = mgl32.Vec3{0, 7, 9}
	cam.Pitch = -0.66
	cam.FovY = 60
	return room, cam, nil
}

// GalleryRoom is a walled room with two pillars and three spotlights.
func GalleryRoom() (*Room, Camera, error) {
	cfgs := []SpotlightConfig{
		{
			Position: mgl32.Vec3{0, 5.5, 0}, Pitch: -math.Pi / 2,
			Color: mgl32.Vec3{1, 0.95, 0.9}, Intensity: 10, InnerAngle: 30, OuterAngle: 65,
			Falloff: 1, Size: 12, MinBias: 0.0005, MaxBias: 0.005, Near: 1, Far: 10,
		},
		DefaultSpotlightConfig(),
		{
			Position: mgl32.Vec3{-3.5, 4, 3.5}, Pitch: -math.Pi / 4, Yaw: -math.Pi / 4,
			Color: mgl32.Vec3{0.7, 0.8, 1}, Intensity: 6, InnerAngle: 25, OuterAngle: 45,
			Falloff: 1, Size: 8, MinBias: 0.0005, MaxBias: 0.005, Near: 1, Far: 40,
		},
	}
	var lights []*Spotlight
	for _, c := range cfgs {
		l, err := NewSpotlight(c)
		if err != nil {
			return nil, Camera{}, err
		}
		lights = append(lights, l)
	}

	const half, height, thick = 6, 6, 0.2
	room := &Room{
		Name: "gallery",
		Meshes: []*Mesh{
			Plane("floor", mgl32.Vec3{}, half, floorMaterial),
			Box("wall-n", mgl32.Vec3{-half, 0, -half - thick}, mgl32.Vec3{half, height, -half}, wallMaterial),
			Box("wall-s", mgl32.Vec3{-half, 0, half}, mgl32.Vec3{half, height, half + thick}, wallMaterial),
			Box("wall-e", mgl32.Vec3{half, 0, -half}, mgl32.Vec3{half + thick, height, half}, wallMaterial),
			Box("wall-w", mgl32.Vec3{-half - thick, 0, -half}, mgl32.Vec3{-half, height, half}, wallMaterial),
			Box("pillar-r", mgl32.Vec3{1.2, 0, -0.05}, mgl32.Vec3{1.3, height, 0.05}, wallMaterial),
			Box("pillar-l", mgl32.Vec3{-1.5, 0, -0.25}, mgl32.Vec3{-1, height, 0.25}, wallMaterial),
			Box("block", mgl32.Vec3{-0.5, 0, -1}, mgl32.Vec3{0.5, 1.5, 0}, Material{
				Albedo: mgl32.Vec3{0.9, 0.6, 0.3}, Roughness: 0.4, Metallic: 0.8,
			}),
		},
		Lights:           lights,
		Ambient:          mgl32.Vec3{1, 1, 1},
		AmbientIntensity: 0.3,
	}
	room.Awake()

	cam := DefaultCamera()
	cam.Position = mgl32.Vec3{0, 3, 5.5}
	cam.Pitch = -0.3
	return room, cam, nil
}

// ByName returns the fixture room called name. lightSize only applies to
// the pillar room.
func ByName(name string, lightSize float32) (*Room, Camera, error) {
	switch name {
	case "pillar":
		return PillarRoom(lightSize)
	case "gallery":
		return GalleryRoom()
	}
	return nil, Camera{}, fmt.Errorf("scene: unknown room %q", name)
}
