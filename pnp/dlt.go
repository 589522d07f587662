package pnp

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fiducial-nav/markerpose/rimage/transform"
	"github.com/fiducial-nav/markerpose/spatialmath"
	"github.com/fiducial-nav/markerpose/utils"
)

// projectionMatrixPose estimates the pose of non-coplanar points by solving for the 3x4 projection matrix
// [M|p4] of normalized image coordinates with the direct linear transform. World points are centered and
// scaled first for conditioning.
func projectionMatrixPose(world []r3.Vector, norm []r2.Point) (spatialmath.Pose, error) {
	c := centroid(world)
	spread := 0.0
	for _, p := range world {
		spread += p.Sub(c).Norm()
	}
	spread /= float64(len(world))
	if spread == 0 {
		return spatialmath.Pose{}, errors.Wrap(ErrInsufficientPoints, "world points coincide")
	}

	a := mat.NewDense(2*len(world), 12, nil)
	for i, p := range world {
		q := p.Sub(c).Mul(1 / spread)
		x, y := norm[i].X, norm[i].Y
		a.SetRow(2*i, []float64{q.X, q.Y, q.Z, 1, 0, 0, 0, 0, -x * q.X, -x * q.Y, -x * q.Z, -x})
		a.SetRow(2*i+1, []float64{0, 0, 0, 0, q.X, q.Y, q.Z, 1, -y * q.X, -y * q.Y, -y * q.Z, -y})
	}
	v, err := transform.NullVector(a)
	if err != nil {
		return spatialmath.Pose{}, errors.Wrap(ErrSolverDivergence, err.Error())
	}

	m := mat.NewDense(3, 3, []float64{
		v[0], v[1], v[2],
		v[4], v[5], v[6],
		v[8], v[9], v[10],
	})
	p4 := r3.Vector{X: v[3], Y: v[7], Z: v[11]}
	if mat.Det(m) < 0 {
		m.Scale(-1, m)
		p4 = p4.Mul(-1)
	}

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDNone); !ok {
		return spatialmath.Pose{}, errors.Wrap(ErrSolverDivergence, "projection matrix factorization failed")
	}
	vals := svd.Values(nil)
	lambda := (vals[0] + vals[1] + vals[2]) / 3
	if lambda == 0 || !utils.IsFinite(lambda) {
		return spatialmath.Pose{}, errors.Wrap(ErrSolverDivergence, "degenerate projection matrix")
	}
	rot, err := orthonormalize(m)
	if err != nil {
		return spatialmath.Pose{}, err
	}

	// In the scaled frame p_cam/spread = R*q + p4/lambda with q = (p - c)/spread.
	t := p4.Mul(spread / lambda).Sub(rot.Mul(c))
	return spatialmath.NewPoseFromRotationMatrix(rot, t), nil
}
