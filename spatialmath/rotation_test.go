package spatialmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func randomRVec(rnd *rand.Rand, maxAngle float64) r3.Vector {
	axis := r3.Vector{X: rnd.NormFloat64(), Y: rnd.NormFloat64(), Z: rnd.NormFloat64()}.Normalize()
	return axis.Mul(rnd.Float64() * maxAngle)
}

func vecAlmostEqual(t *testing.T, a, b r3.Vector, tol float64) {
	t.Helper()
	test.That(t, a.X, test.ShouldAlmostEqual, b.X, tol)
	test.That(t, a.Y, test.ShouldAlmostEqual, b.Y, tol)
	test.That(t, a.Z, test.ShouldAlmostEqual, b.Z, tol)
}

func TestRotationVectorRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		rvec := randomRVec(rnd, math.Pi-1e-3)
		rm := R3ToRotationMatrix(rvec)
		test.That(t, rm.IsOrthonormal(1e-9), test.ShouldBeTrue)
		vecAlmostEqual(t, RotationMatrixToR3(rm), rvec, 1e-8)
	}
}

func TestRotationVectorSpecialAngles(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		rm := R3ToRotationMatrix(r3.Vector{})
		test.That(t, *rm, test.ShouldResemble, *IdentityRotation())
		test.That(t, RotationMatrixToR3(rm), test.ShouldResemble, r3.Vector{})
	})

	t.Run("tiny", func(t *testing.T) {
		rvec := r3.Vector{X: 1e-9, Y: -2e-9, Z: 3e-9}
		vecAlmostEqual(t, RotationMatrixToR3(R3ToRotationMatrix(rvec)), rvec, 1e-15)
	})

	t.Run("pi", func(t *testing.T) {
		axis := r3.Vector{X: 1, Y: 2, Z: -2}.Normalize()
		rm := R3ToRotationMatrix(axis.Mul(math.Pi))
		got := RotationMatrixToR3(rm)
		test.That(t, got.Norm(), test.ShouldAlmostEqual, math.Pi, 1e-9)
		// axis is only defined up to sign at pi
		test.That(t, math.Abs(got.Normalize().Dot(axis)), test.ShouldAlmostEqual, 1, 1e-9)
		vecAlmostEqual(t, R3ToRotationMatrix(got).Row(0), rm.Row(0), 1e-9)
	})

	t.Run("near pi", func(t *testing.T) {
		axis := r3.Vector{X: -0.3, Y: 0.4, Z: 0.5}.Normalize()
		rvec := axis.Mul(math.Pi - 1e-6)
		vecAlmostEqual(t, RotationMatrixToR3(R3ToRotationMatrix(rvec)), rvec, 1e-7)
	})

	t.Run("angle precision approaching pi", func(t *testing.T) {
		axis := r3.Vector{X: 2, Y: -1, Z: 0.5}.Normalize()
		for _, gap := range []float64{1e-2, 1e-4, 1e-6, 1e-8, 1e-10, 0} {
			angle := math.Pi - gap
			got := RotationMatrixToR3(R3ToRotationMatrix(axis.Mul(angle)))
			test.That(t, got.Norm(), test.ShouldAlmostEqual, angle, 1e-12)
			test.That(t, math.Abs(got.Normalize().Dot(axis)), test.ShouldAlmostEqual, 1, 1e-9)
		}
	})
}

func TestRotationMatrixBasics(t *testing.T) {
	_, err := NewRotationMatrix([]float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)

	// 90 degrees about z sends x to y
	rm := R3ToRotationMatrix(r3.Vector{Z: math.Pi / 2})
	vecAlmostEqual(t, rm.Mul(r3.Vector{X: 1}), r3.Vector{Y: 1}, 1e-12)
	test.That(t, rm.Det(), test.ShouldAlmostEqual, 1, 1e-12)

	ident := rm.MatMul(rm.Transpose())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			test.That(t, ident.At(i, j), test.ShouldAlmostEqual, want, 1e-12)
		}
	}

	dense := rm.Dense()
	back, err := RotationMatrixFromDense(dense)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *back, test.ShouldResemble, *rm)

	scaled, err := NewRotationMatrix([]float64{2, 0, 0, 0, 1, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scaled.IsOrthonormal(1e-6), test.ShouldBeFalse)
	reflection, err := NewRotationMatrix([]float64{-1, 0, 0, 0, 1, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reflection.IsOrthonormal(1e-6), test.ShouldBeFalse)
}

func TestQuaternion(t *testing.T) {
	rm := R3ToRotationMatrix(r3.Vector{X: math.Pi / 2})
	q := rm.Quaternion()
	test.That(t, q.Real, test.ShouldAlmostEqual, math.Cos(math.Pi/4), 1e-12)
	test.That(t, q.Imag, test.ShouldAlmostEqual, math.Sin(math.Pi/4), 1e-12)
	test.That(t, q.Jmag, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, q.Kmag, test.ShouldAlmostEqual, 0, 1e-12)

	q = IdentityRotation().Quaternion()
	test.That(t, q.Real, test.ShouldEqual, 1.)
}
