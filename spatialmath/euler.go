package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/fiducial-nav/markerpose/utils"
)

// gimbalLockTolerance is how close |cos(pitch)| may get to zero before yaw and roll are
// considered coupled.
const gimbalLockTolerance = 1e-6

// EulerAngles are rotations in radians about the fixed X (Roll), Y (Pitch) and Z (Yaw) axes.
// The rotation is applied Z first, then Y, then X, all about the original axes:
// R = Rx(Roll) * Ry(Pitch) * Rz(Yaw).
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Degrees returns the same angles converted to degrees.
func (ea *EulerAngles) Degrees() EulerAngles {
	return EulerAngles{
		Roll:  utils.RadToDeg(ea.Roll),
		Pitch: utils.RadToDeg(ea.Pitch),
		Yaw:   utils.RadToDeg(ea.Yaw),
	}
}

// ZYX returns the angles ordered (Yaw, Pitch, Roll) as a vector.
func (ea *EulerAngles) ZYX() r3.Vector {
	return r3.Vector{X: ea.Yaw, Y: ea.Pitch, Z: ea.Roll}
}

// RotationMatrix returns the rotation these angles describe.
func (ea *EulerAngles) RotationMatrix() *RotationMatrix {
	return NewRotationMatrixFromEulerAngles(ea)
}

// NewRotationMatrixFromEulerAngles composes Rx(Roll) * Ry(Pitch) * Rz(Yaw).
func NewRotationMatrixFromEulerAngles(ea *EulerAngles) *RotationMatrix {
	sa, ca := math.Sincos(ea.Roll)
	sb, cb := math.Sincos(ea.Pitch)
	sc, cc := math.Sincos(ea.Yaw)
	return &RotationMatrix{[9]float64{
		cb * cc, -cb * sc, sb,
		ca*sc + sa*sb*cc, ca*cc - sa*sb*sc, -sa * cb,
		sa*sc - ca*sb*cc, sa*cc + ca*sb*sc, ca * cb,
	}}
}

// At gimbal lock only Yaw - Roll (or Yaw + Roll) is observable, so Roll is fixed to 0.
func rotationMatrixToEulerAngles(rm *RotationMatrix) *EulerAngles {
	pitch := math.Asin(utils.Clamp(rm.At(0, 2), -1, 1))
	if math.Abs(math.Cos(pitch)) < gimbalLockTolerance {
		return &EulerAngles{
			Roll:  0,
			Pitch: pitch,
			Yaw:   math.Atan2(rm.At(1, 0), rm.At(1, 1)),
		}
	}
	return &EulerAngles{
		Roll:  math.Atan2(-rm.At(1, 2), rm.At(2, 2)),
		Pitch: pitch,
		Yaw:   math.Atan2(-rm.At(0, 1), rm.At(0, 0)),
	}
}
