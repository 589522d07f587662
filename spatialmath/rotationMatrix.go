package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// RotationMatrix is a 3x3 rotation matrix stored row major.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates a rotation matrix from nine row major values. It does not check
// orthonormality; use IsOrthonormal for that.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, errors.Errorf("input slice has %d elements, need exactly 9", len(m))
	}
	var mat [9]float64
	copy(mat[:], m)
	return &RotationMatrix{mat}, nil
}

// IdentityRotation returns the identity rotation.
func IdentityRotation() *RotationMatrix {
	return &RotationMatrix{[9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// RotationMatrixFromDense copies a 3x3 gonum matrix.
func RotationMatrixFromDense(m mat.Matrix) (*RotationMatrix, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return nil, errors.Errorf("expected a 3x3 matrix, got %dx%d", r, c)
	}
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.mat[3*i+j] = m.At(i, j)
		}
	}
	return &out, nil
}

// At returns the entry at (row, col).
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[row*3+col]
}

// Row returns the row of the matrix as a vector.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[3*row], Y: rm.mat[3*row+1], Z: rm.mat[3*row+2]}
}

// Col returns the column of the matrix as a vector.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[3+col], Z: rm.mat[6+col]}
}

// Mul rotates a vector.
func (rm *RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{X: rm.Row(0).Dot(v), Y: rm.Row(1).Dot(v), Z: rm.Row(2).Dot(v)}
}

// MatMul returns rm*other.
func (rm *RotationMatrix) MatMul(other *RotationMatrix) *RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		row := rm.Row(i)
		for j := 0; j < 3; j++ {
			out.mat[3*i+j] = row.Dot(other.Col(j))
		}
	}
	return &out
}

// Transpose returns the transpose, which is the inverse rotation.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	m := &rm.mat
	return &RotationMatrix{[9]float64{m[0], m[3], m[6], m[1], m[4], m[7], m[2], m[5], m[8]}}
}

// Det returns the determinant.
func (rm *RotationMatrix) Det() float64 {
	return rm.Row(0).Dot(rm.Row(1).Cross(rm.Row(2)))
}

// IsOrthonormal reports whether R*R^T is the identity and det(R) is 1, within tol.
func (rm *RotationMatrix) IsOrthonormal(tol float64) bool {
	for _, v := range rm.mat {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(rm.Row(i).Dot(rm.Row(j))-want) > tol {
				return false
			}
		}
	}
	return math.Abs(rm.Det()-1) <= tol
}

// Dense returns a copy as a gonum matrix.
func (rm *RotationMatrix) Dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, rm.mat[:])
	return mat.NewDense(3, 3, data)
}

// Quaternion returns the rotation as a unit quaternion.
func (rm *RotationMatrix) Quaternion() quat.Number {
	return R3ToR4(RotationMatrixToR3(rm)).ToQuat()
}

// EulerAngles returns the rotation as Z-Y-X fixed axis Euler angles.
func (rm *RotationMatrix) EulerAngles() *EulerAngles {
	return rotationMatrixToEulerAngles(rm)
}

func (rm *RotationMatrix) String() string {
	return fmt.Sprintf("[%.6f %.6f %.6f; %.6f %.6f %.6f; %.6f %.6f %.6f]",
		rm.mat[0], rm.mat[1], rm.mat[2], rm.mat[3], rm.mat[4], rm.mat[5], rm.mat[6], rm.mat[7], rm.mat[8])
}
