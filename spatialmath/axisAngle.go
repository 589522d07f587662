package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/fiducial-nav/markerpose/utils"
)

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// An orientation can be expressed by an axis, a unit vector (rx, ry, rz), and a rotation theta around it.
// These four numbers can be used as-is (R4), or they can be converted to R3, where theta is multiplied by each of
// the axis components to give a vector whose length is theta and whose direction is the original axis. The R3 form
// is the rotation vector reported by the pose solver.

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates the identity R4AA: no rotation about +Z.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// R3ToR4 converts an R3 rotation vector to R4. The zero vector maps to the identity.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta == 0 {
		return NewR4AA()
	}
	return &R4AA{theta, aa.X / theta, aa.Y / theta, aa.Z / theta}
}

// ToR3 converts an R4 angle axis to R3.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// ToQuat converts an R4 axis angle to a unit quaternion.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 *R4AA) ToQuat() quat.Number {
	if r4.Theta == 0 {
		return quat.Number{Real: 1}
	}
	sinA := math.Sin(r4.Theta / 2)
	r4.Normalize()

	return quat.Number{
		Real: math.Cos(r4.Theta / 2),
		Imag: r4.RX * sinA,
		Jmag: r4.RY * sinA,
		Kmag: r4.RZ * sinA,
	}
}

// Normalize scales the x, y, and z components of a R4 axis angle to be on the unit sphere.
func (r4 *R4AA) Normalize() {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0.0 { // prevent division by 0
		panic("cannot normalize R4AA, divide by zero")
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
}

// RotationMatrix returns the rotation as a matrix using Rodrigues' formula
// R = I + sin(theta)K + (1 - cos(theta))K^2, where K is the cross product matrix of the unit axis.
func (r4 *R4AA) RotationMatrix() *RotationMatrix {
	if r4.Theta == 0 {
		return IdentityRotation()
	}
	r4.Normalize()
	x, y, z := r4.RX, r4.RY, r4.RZ
	s, c := math.Sincos(r4.Theta)
	v := 1 - c
	return &RotationMatrix{[9]float64{
		c + x*x*v, x*y*v - z*s, x*z*v + y*s,
		y*x*v + z*s, c + y*y*v, y*z*v - x*s,
		z*x*v - y*s, z*y*v + x*s, c + z*z*v,
	}}
}

// R3ToRotationMatrix converts a rotation vector to a rotation matrix (the exponential map).
func R3ToRotationMatrix(rvec r3.Vector) *RotationMatrix {
	return R3ToR4(rvec).RotationMatrix()
}

// RotationMatrixToR3 converts a rotation matrix to a rotation vector with angle in [0, pi] (the log map).
func RotationMatrixToR3(rm *RotationMatrix) r3.Vector {
	m := &rm.mat
	cosTheta := utils.Clamp((m[0]+m[4]+m[8]-1)/2, -1, 1)
	// twice sin(theta) times the axis
	anti := r3.Vector{X: m[7] - m[5], Y: m[2] - m[6], Z: m[3] - m[1]}
	theta := math.Atan2(anti.Norm()/2, cosTheta)

	const small = 1e-7
	switch {
	case theta < small:
		return anti.Mul(0.5)
	case math.Pi-theta < 1e-4:
		// the symmetric part is c*I + (1 - c)*a*a^T, pick its best conditioned column
		diag := []float64{m[0], m[4], m[8]}
		k := 0
		for i := 1; i < 3; i++ {
			if diag[i] > diag[k] {
				k = i
			}
		}
		var col [3]float64
		for j := 0; j < 3; j++ {
			if j == k {
				col[j] = m[4*k] - cosTheta
			} else {
				col[j] = (m[3*j+k] + m[3*k+j]) / 2
			}
		}
		axisDir := r3.Vector{X: col[0], Y: col[1], Z: col[2]}
		axis := axisDir.Normalize()
		if axis.Dot(anti) < 0 {
			axis = axis.Mul(-1)
		}
		return axis.Mul(theta)
	default:
		return anti.Mul(theta / (2 * math.Sin(theta)))
	}
}
