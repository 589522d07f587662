package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// normalizePoints normalizes points as described in Multiple View Geometry, Alg 4.2: the centroid
// moves to the origin and the mean distance to it becomes sqrt(2).
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense, error) {
	nPoints := len(pts)
	// computer centroid of points
	mu := r2.Point{X: 0, Y: 0}
	for _, pt := range pts {
		mu.X += pt.X
		mu.Y += pt.Y
	}
	mu = mu.Mul(1. / float64(nPoints))
	// compute scale factor
	d := 0.0
	for _, pt := range pts {
		x2 := (pt.X - mu.X) * (pt.X - mu.X)
		y2 := (pt.Y - mu.Y) * (pt.Y - mu.Y)
		d += math.Sqrt(x2+y2) / float64(nPoints)
	}
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return nil, nil, errors.New("cannot normalize coincident or non-finite points")
	}
	scale := math.Sqrt(2) / d
	transformData := []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	}
	T := mat.NewDense(3, 3, transformData)
	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = r2.Point{X: scale * (pts[i].X - mu.X), Y: scale * (pts[i].Y - mu.Y)}
	}
	return pointsTransformed, T, nil
}

// matsSVD stores the matrices from SVD decomposition.
type matsSVD struct {
	U      *mat.Dense
	V      *mat.Dense
	Values []float64
}

// performSVD performs SVD on inputMatrix and returns matrices U, V and the singular values from the decomposition.
func performSVD(inputMatrix mat.Matrix) *matsSVD {
	var svd mat.SVD
	ok := svd.Factorize(inputMatrix, mat.SVDFull)
	if !ok {
		return nil
	}

	u, v := &mat.Dense{}, &mat.Dense{}
	svd.UTo(u)
	svd.VTo(v)

	return &matsSVD{u, v, svd.Values(nil)}
}

// NearestRotation returns the rotation matrix closest to m in the Frobenius norm, U*V^T with the
// sign of the last column of U flipped if needed so the determinant is +1.
func NearestRotation(m mat.Matrix) (*mat.Dense, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return nil, errors.Errorf("expected a 3x3 matrix, got %dx%d", r, c)
	}
	svd := performSVD(m)
	if svd == nil {
		return nil, errors.New("SVD failed")
	}
	var rot mat.Dense
	rot.Mul(svd.U, svd.V.T())
	if mat.Det(&rot) < 0 {
		u := mat.DenseCopyOf(svd.U)
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		rot.Mul(u, svd.V.T())
	}
	return &rot, nil
}

// NullVector returns the right singular vector of m with the smallest singular value.
func NullVector(m mat.Matrix) ([]float64, error) {
	svd := performSVD(m)
	if svd == nil {
		return nil, errors.New("SVD failed")
	}
	_, c := svd.V.Dims()
	return mat.Col(nil, c-1, svd.V), nil
}
