// Package geometry holds the rigid-body types shared by the navigation
// pipeline and the frame composition used to place the robot on the map.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Vector3 is a position or translation in meters.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a rotation in (x, y, z, w) order, as carried by ROS messages.
// Values are expected to be unit length; nothing here renormalizes them.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Transform maps coordinates from a child frame into its parent frame.
type Transform struct {
	Translation Vector3    `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// Pose is a position and orientation expressed in a single frame.
type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// IdentityQuaternion is the zero rotation.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// IdentityTransform leaves every pose unchanged when composed.
func IdentityTransform() Transform {
	return Transform{Rotation: IdentityQuaternion()}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// Mul returns the Hamilton product a*b.
func Mul(a, b Quaternion) Quaternion {
	return fromNumber(quat.Mul(a.number(), b.number()))
}

// Conj returns the conjugate of q, which is its inverse for unit quaternions.
func Conj(q Quaternion) Quaternion {
	return fromNumber(quat.Conj(q.number()))
}

// RotateVector rotates v by q as the vector part of q * (0, v) * conj(q).
func RotateVector(v Vector3, q Quaternion) Vector3 {
	raised := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	qn := q.number()
	r := quat.Mul(quat.Mul(qn, raised), quat.Conj(qn))
	return Vector3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Compose expresses a pose given in a child frame in the parent frame of tf.
// The position is rotated then translated; the orientation is tf.Rotation
// multiplied by the pose orientation, in that order, without renormalizing.
func Compose(pose Pose, tf Transform) Pose {
	rotated := RotateVector(pose.Position, tf.Rotation)
	return Pose{
		Position: Vector3{
			X: rotated.X + tf.Translation.X,
			Y: rotated.Y + tf.Translation.Y,
			Z: rotated.Z + tf.Translation.Z,
		},
		Orientation: Mul(tf.Rotation, pose.Orientation),
	}
}

// Yaw returns the heading about the vertical axis, in radians.
func Yaw(q Quaternion) float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}

// QuaternionFromYaw builds the unit quaternion for a pure rotation about Z.
func QuaternionFromYaw(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}
