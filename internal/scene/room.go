package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/mathutil"
)

// Camera is a yaw/pitch fly camera. FovY is in degrees.
type Camera struct {
	Position mgl32.Vec3
	Pitch    float32
	Yaw      float32
	FovY     float32
	Near     float32
	Far      float32
}

// DefaultCamera returns the standard 90 degree view with z planes [0.1, 100].
func DefaultCamera() Camera {
	return Camera{FovY: 90, Near: 0.1, Far: 100}
}

// View returns the world-to-camera transform.
func (c Camera) View() mgl32.Mat4 {
	return mathutil.ViewFromPose(c.Position, mathutil.YawPitch(c.Yaw, c.Pitch))
}

// Projection returns the perspective projection for the given aspect.
func (c Camera) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

// Room groups the meshes and lights rendered together.
type Room struct {
	Name             string
	Meshes           []*Mesh
	Lights           []*Spotlight
	Ambient          mgl32.Vec3
	AmbientIntensity float32
}

// Objects lists every entity of the room.
func (r *Room) Objects() []Object {
	objs := make([]Object, 0, len(r.Meshes)+len(r.Lights))
	for _, m := range r.Meshes {
		objs = append(objs, m)
	}
	for _, l := range r.Lights {
		objs = append(objs, l)
	}
	return objs
}

// Awake prepares every entity.
func (r *Room) Awake() {
	for _, o := range r.Objects() {
		o.Awake()
	}
}

// Update advances every entity to time t (seconds).
func (r *Room) Update(t float64) {
	for _, o := range r.Objects() {
		o.Update(t)
	}
}

// Release frees every entity.
func (r *Room) Release() {
	for _, o := range r.Objects() {
		o.Release()
	}
}

// Mesh returns the first mesh called name, or nil.
func (r *Room) Mesh(name string) *Mesh {
	for _, m := range r.Meshes {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// AmbientTerm is the ambient radiance written into the geometry buffer.
func (r *Room) AmbientTerm() mgl32.Vec3 {
	return r.Ambient.Mul(r.AmbientIntensity)
}
