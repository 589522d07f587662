package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Pose is a rigid transform from world coordinates to camera coordinates: p_cam = R(RVec)*p_world + TVec.
type Pose struct {
	RVec r3.Vector `json:"rvec"`
	TVec r3.Vector `json:"tvec"`
}

// NewPoseFromRotationMatrix builds a pose from a rotation matrix and translation.
func NewPoseFromRotationMatrix(rm *RotationMatrix, tvec r3.Vector) Pose {
	return Pose{RVec: RotationMatrixToR3(rm), TVec: tvec}
}

// RotationMatrix returns R.
func (p Pose) RotationMatrix() *RotationMatrix {
	return R3ToRotationMatrix(p.RVec)
}

// Transform maps a world point into the camera frame.
func (p Pose) Transform(pt r3.Vector) r3.Vector {
	return p.RotationMatrix().Mul(pt).Add(p.TVec)
}

// CameraPosition is the camera's optical center in world coordinates.
func (p Pose) CameraPosition() r3.Vector {
	return WorldSpacePosition(p.TVec, p.RotationMatrix())
}

// EulerAngles returns the orientation of R.
func (p Pose) EulerAngles() *EulerAngles {
	return p.RotationMatrix().EulerAngles()
}

// Inverse returns the camera to world transform.
func (p Pose) Inverse() Pose {
	rt := p.RotationMatrix().Transpose()
	return Pose{RVec: RotationMatrixToR3(rt), TVec: rt.Mul(p.TVec).Mul(-1)}
}

// Compose returns the transform applying other first, then p.
func (p Pose) Compose(other Pose) Pose {
	rm := p.RotationMatrix()
	return Pose{
		RVec: RotationMatrixToR3(rm.MatMul(other.RotationMatrix())),
		TVec: rm.Mul(other.TVec).Add(p.TVec),
	}
}

func (p Pose) String() string {
	return fmt.Sprintf("rvec: (%.4f, %.4f, %.4f) tvec: (%.4f, %.4f, %.4f)",
		p.RVec.X, p.RVec.Y, p.RVec.Z, p.TVec.X, p.TVec.Y, p.TVec.Z)
}
