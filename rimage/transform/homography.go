package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform between two planes.
type Homography struct {
	matrix *mat.Dense
}

// NewHomography creates a Homography from nine row major values.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input to NewHomography must have length of 9. Has length of %d", len(vals))
	}
	data := make([]float64, 9)
	copy(data, vals)
	return &Homography{mat.NewDense(3, 3, data)}, nil
}

// At returns the value of the homography at the given index.
func (h *Homography) At(row, col int) float64 {
	return h.matrix.At(row, col)
}

// Matrix returns a copy of the homography as a gonum matrix.
func (h *Homography) Matrix() *mat.Dense {
	return mat.DenseCopyOf(h.matrix)
}

// Apply maps a point through the homography. The second result is false when the point maps to infinity.
func (h *Homography) Apply(pt r2.Point) (r2.Point, bool) {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	w := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	if w == 0 {
		return r2.Point{}, false
	}
	return r2.Point{X: x / w, Y: y / w}, true
}

// Inverse returns the inverse homography.
func (h *Homography) Inverse() (*Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.matrix); err != nil {
		return nil, errors.Wrap(err, "homography is singular")
	}
	return &Homography{&inv}, nil
}

// EstimateHomography finds H such that dst ~ H*src with the normalized direct linear transform
// (Multiple View Geometry, Alg 4.2). At least 4 correspondences are needed, no 3 of them collinear.
func EstimateHomography(src, dst []r2.Point) (*Homography, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("point counts differ: %d != %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return nil, errors.Errorf("need at least 4 correspondences to estimate a homography, got %d", len(src))
	}
	srcNorm, t1, err := normalizePoints(src)
	if err != nil {
		return nil, err
	}
	dstNorm, t2, err := normalizePoints(dst)
	if err != nil {
		return nil, err
	}

	nRows := 2 * len(src)
	if nRows < 9 {
		// pad with a zero row so the full SVD gives a 9x9 V
		nRows = 9
	}
	a := mat.NewDense(nRows, 9, nil)
	for i := range srcNorm {
		x, y := srcNorm[i].X, srcNorm[i].Y
		u, v := dstNorm[i].X, dstNorm[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}
	svd := performSVD(a)
	if svd == nil {
		return nil, errors.New("SVD of the homography system failed")
	}
	h := mat.NewDense(3, 3, mat.Col(nil, 8, svd.V))

	// denormalize: H = T2^-1 * Hn * T1
	var t2Inv mat.Dense
	if err := t2Inv.Inverse(t2); err != nil {
		return nil, errors.Wrap(err, "degenerate destination points")
	}
	var out mat.Dense
	out.Product(&t2Inv, h, t1)
	if scale := out.At(2, 2); math.Abs(scale) > 1e-12 {
		out.Scale(1/scale, &out)
	}
	for _, v := range out.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("homography estimation produced non-finite values")
		}
	}
	return &Homography{&out}, nil
}
