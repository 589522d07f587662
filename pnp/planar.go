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

// planeFrame is a best-fit frame for a point cloud. toLocal maps centered world points into a frame whose z
// axis is the direction of least spread.
type planeFrame struct {
	centroid r3.Vector
	toLocal  *spatialmath.RotationMatrix
	planar   bool
}

func centroid(pts []r3.Vector) r3.Vector {
	var c r3.Vector
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.Mul(1 / float64(len(pts)))
}

func fitPlane(world []r3.Vector) (planeFrame, error) {
	c := centroid(world)
	centered := mat.NewDense(len(world), 3, nil)
	for i, p := range world {
		d := p.Sub(c)
		centered.SetRow(i, []float64{d.X, d.Y, d.Z})
	}
	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return planeFrame{}, errors.Wrap(ErrSolverDivergence, "plane fit failed")
	}
	vals := svd.Values(nil)
	if vals[0] == 0 {
		return planeFrame{}, errors.Wrap(ErrInsufficientPoints, "world points coincide")
	}
	if vals[1] <= 1e-9*vals[0] {
		return planeFrame{}, errors.Wrap(ErrInsufficientPoints, "world points are collinear")
	}

	var v mat.Dense
	svd.VTo(&v)
	e1 := r3.Vector{X: v.At(0, 0), Y: v.At(1, 0), Z: v.At(2, 0)}
	e2 := r3.Vector{X: v.At(0, 1), Y: v.At(1, 1), Z: v.At(2, 1)}
	e3 := e1.Cross(e2)
	toLocal, err := spatialmath.NewRotationMatrix([]float64{
		e1.X, e1.Y, e1.Z,
		e2.X, e2.Y, e2.Z,
		e3.X, e3.Y, e3.Z,
	})
	if err != nil {
		return planeFrame{}, err
	}
	return planeFrame{
		centroid: c,
		toLocal:  toLocal,
		planar:   vals[2] <= planarityTolerance*vals[0],
	}, nil
}

// planarPose recovers the pose of coplanar points from the homography between their in-plane coordinates and
// the normalized image points.
func planarPose(world []r3.Vector, norm []r2.Point, frame planeFrame) (spatialmath.Pose, error) {
	local := make([]r2.Point, len(world))
	for i, p := range world {
		q := frame.toLocal.Mul(p.Sub(frame.centroid))
		local[i] = r2.Point{X: q.X, Y: q.Y}
	}
	h, err := transform.EstimateHomography(local, norm)
	if err != nil {
		return spatialmath.Pose{}, errors.Wrap(ErrSolverDivergence, err.Error())
	}
	hm := h.Matrix()
	h1 := r3.Vector{X: hm.At(0, 0), Y: hm.At(1, 0), Z: hm.At(2, 0)}
	h2 := r3.Vector{X: hm.At(0, 1), Y: hm.At(1, 1), Z: hm.At(2, 1)}
	h3 := r3.Vector{X: hm.At(0, 2), Y: hm.At(1, 2), Z: hm.At(2, 2)}

	denom := h1.Norm() + h2.Norm()
	if denom == 0 || !utils.IsFinite(denom) {
		return spatialmath.Pose{}, errors.Wrap(ErrSolverDivergence, "degenerate homography")
	}
	scale := 2 / denom
	r1, r2v, t := h1.Mul(scale), h2.Mul(scale), h3.Mul(scale)
	if t.Z < 0 {
		r1, r2v, t = r1.Mul(-1), r2v.Mul(-1), t.Mul(-1)
	}
	r3v := r1.Cross(r2v)
	m := mat.NewDense(3, 3, []float64{
		r1.X, r2v.X, r3v.X,
		r1.Y, r2v.Y, r3v.Y,
		r1.Z, r2v.Z, r3v.Z,
	})
	rot, err := orthonormalize(m)
	if err != nil {
		return spatialmath.Pose{}, err
	}

	// p_cam = R0 * toLocal * (p - c) + t
	full := rot.MatMul(frame.toLocal)
	return spatialmath.NewPoseFromRotationMatrix(full, t.Sub(full.Mul(frame.centroid))), nil
}

func orthonormalize(m mat.Matrix) (*spatialmath.RotationMatrix, error) {
	nearest, err := transform.NearestRotation(m)
	if err != nil {
		return nil, errors.Wrap(ErrSolverDivergence, err.Error())
	}
	return spatialmath.RotationMatrixFromDense(nearest)
}
