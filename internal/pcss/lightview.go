// Package pcss estimates soft shadow visibility from a prefiltered shadow
// atlas: a blocker search sizes the penumbra, and the filter window is read
// either from the summed-area moments or by rotated PCF.
package pcss

import (
	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/mathutil"
	"spotlight-renderer/internal/scene"
	"spotlight-renderer/internal/shadow"
)

// LightView is a light prepared for one camera. Everything is expressed in
// camera view space so G-buffer positions can be used directly.
type LightView struct {
	Light     *scene.Spotlight
	Slot      shadow.Slot
	Position  mgl32.Vec3
	Direction mgl32.Vec3

	toLightView mgl32.Mat4
	toLightClip mgl32.Mat4
}

// NewLightView precomputes the camera-view to light transforms of l, whose
// shadow lives in slot.
func NewLightView(l *scene.Spotlight, slot shadow.Slot, cameraView mgl32.Mat4) LightView {
	toLightView := l.View().Mul4(cameraView.Inv())
	return LightView{
		Light:       l,
		Slot:        slot,
		Position:    mathutil.TransformPoint(cameraView, l.Position()),
		Direction:   mathutil.Normalize(mathutil.TransformDir(cameraView, l.Forward())),
		toLightView: toLightView,
		toLightClip: l.Projection().Mul4(toLightView),
	}
}

// project returns the slot UV of p and its metric distance along the light
// axis. ok is false behind the light.
func (lv LightView) project(p mgl32.Vec3) (u, v, dist float32, ok bool) {
	c := lv.toLightClip.Mul4x1(p.Vec4(1))
	if c[3] <= 0 {
		return 0, 0, 0, false
	}
	u = c[0]/c[3]*0.5 + 0.5
	v = 0.5 - c[1]/c[3]*0.5
	dist = -lv.toLightView.Mul4x1(p.Vec4(1))[2]
	return u, v, dist, true
}
