package geometry

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-9

var approx = cmpopts.EquateApprox(0, tolerance)

func TestComposeIdentity(t *testing.T) {
	poses := []Pose{
		{Position: Vector3{X: 1, Y: 2, Z: 3}, Orientation: IdentityQuaternion()},
		{Position: Vector3{X: -4.5, Y: 0.25, Z: 0}, Orientation: QuaternionFromYaw(1.2)},
		{Position: Vector3{}, Orientation: Quaternion{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5}},
	}
	for _, pose := range poses {
		got := Compose(pose, IdentityTransform())
		if diff := cmp.Diff(pose, got, approx); diff != "" {
			t.Errorf("identity compose changed pose (-want +got):\n%s", diff)
		}
	}
}

func TestRotateRoundTrip(t *testing.T) {
	qs := []Quaternion{
		QuaternionFromYaw(math.Pi / 3),
		{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5},
		{X: math.Sqrt2 / 2, W: math.Sqrt2 / 2},
	}
	v := Vector3{X: 1.5, Y: -2, Z: 0.75}
	for _, q := range qs {
		back := RotateVector(RotateVector(v, q), Conj(q))
		if diff := cmp.Diff(v, back, approx); diff != "" {
			t.Errorf("round trip through %v drifted (-want +got):\n%s", q, diff)
		}
	}
}

func TestRotateMatchesExpandedProduct(t *testing.T) {
	// q*v*q^-1 written out term by term.
	expanded := func(v Vector3, q Quaternion) Vector3 {
		qvx := q.W*v.X + q.Y*v.Z - q.Z*v.Y
		qvy := q.W*v.Y + q.Z*v.X - q.X*v.Z
		qvz := q.W*v.Z + q.X*v.Y - q.Y*v.X
		qvw := -q.X*v.X - q.Y*v.Y - q.Z*v.Z
		return Vector3{
			X: qvw*(-q.X) + qvx*q.W - qvy*q.Z + qvz*q.Y,
			Y: qvw*(-q.Y) + qvy*q.W - qvz*q.X + qvx*q.Z,
			Z: qvw*(-q.Z) + qvz*q.W - qvx*q.Y + qvy*q.X,
		}
	}
	q := Quaternion{X: 0.1825742, Y: 0.3651484, Z: 0.5477226, W: 0.7302967}
	v := Vector3{X: 3, Y: -1, Z: 2}
	if diff := cmp.Diff(expanded(v, q), RotateVector(v, q), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("rotation disagrees with expanded form (-want +got):\n%s", diff)
	}
}

func TestComposeYawAndTranslation(t *testing.T) {
	tf := Transform{
		Translation: Vector3{X: 2, Y: 1},
		Rotation:    QuaternionFromYaw(math.Pi / 2),
	}
	pose := Pose{Position: Vector3{X: 1}, Orientation: QuaternionFromYaw(math.Pi / 4)}

	got := Compose(pose, tf)

	assert.InDelta(t, 2.0, got.Position.X, tolerance)
	assert.InDelta(t, 2.0, got.Position.Y, tolerance)
	assert.InDelta(t, 0.0, got.Position.Z, tolerance)
	assert.InDelta(t, 3*math.Pi/4, Yaw(got.Orientation), tolerance)
}

func TestMulOrder(t *testing.T) {
	a := Quaternion{X: math.Sqrt2 / 2, W: math.Sqrt2 / 2}
	b := Quaternion{Y: math.Sqrt2 / 2, W: math.Sqrt2 / 2}

	ab := Mul(a, b)
	ba := Mul(b, a)

	assert.InDelta(t, 0.5, ab.Z, tolerance)
	assert.InDelta(t, -0.5, ba.Z, tolerance)
}

func TestComposeDoesNotRenormalize(t *testing.T) {
	tf := Transform{Rotation: Quaternion{W: 2}}
	pose := Pose{Orientation: Quaternion{W: 3}}

	got := Compose(pose, tf)

	assert.InDelta(t, 6.0, got.Orientation.W, tolerance)
}

func TestYaw(t *testing.T) {
	cases := []struct {
		name string
		yaw  float64
	}{
		{"zero", 0},
		{"quarter", math.Pi / 2},
		{"negative", -2.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.yaw, Yaw(QuaternionFromYaw(tc.yaw)), tolerance)
		})
	}
}
