// Package scene holds the inputs the pipeline reads at its boundary:
// meshes, spotlights, the camera and the room that groups them.
package scene

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// Object is the lifecycle shared by every scene entity.
type Object interface {
	Awake()
	Update(t float64)
	Release()
	Visible() bool
}

// Vertex carries the attributes the geometry pass interpolates.
type Vertex struct {
	Position  mgl32.Vec3
	Normal    mgl32.Vec3
	Albedo    mgl32.Vec3
	Roughness float32
	Metallic  float32
	UV        mgl32.Vec2
}

// Mesh is an indexed triangle list with a model transform.
type Mesh struct {
	Name      string
	Vertices  []Vertex
	Indices   []uint32
	Model     mgl32.Mat4
	AlbedoMap *image.NRGBA // optional, multiplied into vertex albedo
	Hidden    bool
}

// Awake defaults a zero model matrix to identity.
func (m *Mesh) Awake() {
	if m.Model == (mgl32.Mat4{}) {
		m.Model = mgl32.Ident4()
	}
}

// Update is a no-op; meshes are static.
func (m *Mesh) Update(float64) {}

// Release drops the geometry.
func (m *Mesh) Release() {
	m.Vertices = nil
	m.Indices = nil
	m.AlbedoMap = nil
}

// Visible reports whether the mesh has anything to draw.
func (m *Mesh) Visible() bool {
	return !m.Hidden && len(m.Indices) >= 3
}

// Triangle returns the vertex indices of triangle i.
func (m *Mesh) Triangle(i int) (uint32, uint32, uint32) {
	return m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]
}

// TriangleCount returns the number of complete triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}
