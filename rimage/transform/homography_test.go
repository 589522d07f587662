package transform

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestEstimateHomography(t *testing.T) {
	truth, err := NewHomography([]float64{1.2, 0.1, 30, -0.05, 0.9, 12, 0.0004, -0.0002, 1})
	test.That(t, err, test.ShouldBeNil)

	src := []r2.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}, {X: 50, Y: 20}, {X: 10, Y: 70}}
	for _, n := range []int{4, len(src)} {
		dst := make([]r2.Point, n)
		for i := 0; i < n; i++ {
			p, ok := truth.Apply(src[i])
			test.That(t, ok, test.ShouldBeTrue)
			dst[i] = p
		}
		h, err := EstimateHomography(src[:n], dst)
		test.That(t, err, test.ShouldBeNil)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				test.That(t, h.At(i, j), test.ShouldAlmostEqual, truth.At(i, j), 1e-6)
			}
		}

		inv, err := h.Inverse()
		test.That(t, err, test.ShouldBeNil)
		back, ok := inv.Apply(dst[0])
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, back.X, test.ShouldAlmostEqual, src[0].X, 1e-6)
		test.That(t, back.Y, test.ShouldAlmostEqual, src[0].Y, 1e-6)
	}

	_, err = EstimateHomography(src[:3], src[:3])
	test.That(t, err, test.ShouldNotBeNil)
	_, err = EstimateHomography(src[:4], src[:3])
	test.That(t, err, test.ShouldNotBeNil)
	same := []r2.Point{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}
	_, err = EstimateHomography(same, src[:4])
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewHomography([]float64{1})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNearestRotation(t *testing.T) {
	noisy := mat.NewDense(3, 3, []float64{1.01, 0.02, 0, -0.01, 0.98, 0.01, 0, 0, 1.03})
	rot, err := NearestRotation(noisy)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Det(rot), test.ShouldAlmostEqual, 1, 1e-9)
	var rrt mat.Dense
	rrt.Mul(rot, rot.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			test.That(t, rrt.At(i, j), test.ShouldAlmostEqual, want, 1e-9)
		}
	}

	reflection := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, -1})
	rot, err = NearestRotation(reflection)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Det(rot), test.ShouldAlmostEqual, 1, 1e-9)

	_, err = NearestRotation(mat.NewDense(2, 2, nil))
	test.That(t, err, test.ShouldNotBeNil)

	null, err := NullVector(mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, null[0], test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, null[1], test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, null[2]*null[2], test.ShouldAlmostEqual, 1, 1e-12)
}
