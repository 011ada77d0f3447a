package mathutil

import "github.com/go-gl/mathgl/mgl32"

// Forward is the local look direction of cameras and lights.
var Forward = mgl32.Vec3{0, 0, -1}

// YawPitch returns rotY(yaw) * rotX(pitch). Angles in radians.
func YawPitch(yaw, pitch float32) mgl32.Quat {
	return mgl32.QuatRotate(yaw, mgl32.Vec3{0, 1, 0}).Mul(mgl32.QuatRotate(pitch, mgl32.Vec3{1, 0, 0}))
}

// ViewFromPose builds a view matrix as inverse(T(pos) * R(q)).
func ViewFromPose(pos mgl32.Vec3, q mgl32.Quat) mgl32.Mat4 {
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).Mul4(q.Mat4()).Inv()
}
