package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestWorldSpacePosition(t *testing.T) {
	// camera at world (1, 2, -5) looking down +z with no rotation
	vecAlmostEqual(t, WorldSpacePosition(r3.Vector{X: -1, Y: -2, Z: 5}, IdentityRotation()),
		r3.Vector{X: 1, Y: 2, Z: -5}, 1e-12)

	rm := R3ToRotationMatrix(r3.Vector{X: 0.1, Y: -0.7, Z: 0.3})
	tvec := r3.Vector{X: 0.5, Y: -0.25, Z: 3}
	pos := WorldSpacePosition(tvec, rm)
	// the camera center maps to the camera origin
	vecAlmostEqual(t, rm.Mul(pos).Add(tvec), r3.Vector{}, 1e-12)
}

func TestMarkerAxisAnchor(t *testing.T) {
	rm := R3ToRotationMatrix(r3.Vector{Z: math.Pi / 2})
	tvec := r3.Vector{X: 1, Y: 1, Z: 10}
	vecAlmostEqual(t, MarkerAxisAnchor(r3.Vector{}, tvec, rm), tvec, 0)
	vecAlmostEqual(t, MarkerAxisAnchor(r3.Vector{X: 2}, tvec, rm), r3.Vector{X: 1, Y: 3, Z: 10}, 1e-12)
}

func TestPose(t *testing.T) {
	pose := Pose{RVec: r3.Vector{X: 0.2, Y: 0.1, Z: -0.4}, TVec: r3.Vector{X: 3, Y: -1, Z: 20}}
	pt := r3.Vector{X: 4, Y: 5, Z: 0}

	cam := pose.Transform(pt)
	vecAlmostEqual(t, pose.Inverse().Transform(cam), pt, 1e-9)
	vecAlmostEqual(t, pose.Inverse().TVec, pose.CameraPosition(), 1e-12)

	ident := pose.Compose(pose.Inverse())
	vecAlmostEqual(t, ident.RVec, r3.Vector{}, 1e-9)
	vecAlmostEqual(t, ident.TVec, r3.Vector{}, 1e-9)

	rebuilt := NewPoseFromRotationMatrix(pose.RotationMatrix(), pose.TVec)
	vecAlmostEqual(t, rebuilt.RVec, pose.RVec, 1e-12)
	test.That(t, pose.String(), test.ShouldContainSubstring, "tvec: (3.0000, -1.0000, 20.0000)")
}

func TestRotationAngleBetween(t *testing.T) {
	a := R3ToRotationMatrix(r3.Vector{X: 0.3})
	b := R3ToRotationMatrix(r3.Vector{X: 0.5})
	test.That(t, RotationAngleBetween(a, b), test.ShouldAlmostEqual, 0.2, 1e-12)
	test.That(t, RotationAngleBetween(a, a), test.ShouldAlmostEqual, 0, 1e-12)
}
