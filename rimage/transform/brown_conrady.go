package transform

import (
	"math"

	"github.com/pkg/errors"
)

// BrownConrady is the radial and tangential lens distortion model
//
//	x_d = x_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x_u*y_u + p2*(r² + 2*x_u²)
//	y_d = y_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x_u*y_u + p1*(r² + 2*y_u²)
//
// applied to normalized image coordinates.
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewBrownConrady takes in a slice of floats ordered (rk1, rk2, rk3, tp1, tp2).
// Missing trailing values are zero.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	params := make([]float64, 5)
	copy(params, inp)
	bc := &BrownConrady{params[0], params[1], params[2], params[3], params[4]}
	if err := bc.CheckValid(); err != nil {
		return nil, err
	}
	return bc, nil
}

// NewBrownConradyFromOpenCV takes coefficients in the OpenCV order (k1, k2, p1, p2[, k3[, ...]]).
// Rational and thin prism terms beyond k3 are not modeled and must be zero.
func NewBrownConradyFromOpenCV(d []float64) (*BrownConrady, error) {
	if len(d) < 4 {
		return nil, errors.Errorf("expected at least 4 distortion coefficients, got %d", len(d))
	}
	for i := 5; i < len(d); i++ {
		if d[i] != 0 {
			return nil, errors.Errorf("distortion coefficient %d is %v but only k1, k2, p1, p2, k3 are supported", i, d[i])
		}
	}
	k3 := 0.0
	if len(d) > 4 {
		k3 = d[4]
	}
	return NewBrownConrady([]float64{d[0], d[1], k3, d[2], d[3]})
}

// CheckValid checks if the fields for BrownConrady have valid inputs.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	for _, p := range bc.Parameters() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return InvalidDistortionError("BrownConrady parameters must be finite")
		}
	}
	return nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.RadialK3, bc.TangentialP1, bc.TangentialP2}
}

// OpenCVCoefficients returns the parameters in the OpenCV order (k1, k2, p1, p2, k3).
func (bc *BrownConrady) OpenCVCoefficients() []float64 {
	return []float64{bc.RadialK1, bc.RadialK2, bc.TangentialP1, bc.TangentialP2, bc.RadialK3}
}

// Transform distorts an undistorted normalized point.
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	if bc == nil {
		return x, y
	}
	r2 := x*x + y*y
	radDist := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r2*r2 + bc.RadialK3*r2*r2*r2
	xd := x*radDist + 2.0*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2.0*x*x)
	yd := y*radDist + 2.0*bc.TangentialP2*x*y + bc.TangentialP1*(r2+2.0*y*y)
	return xd, yd
}

// Undistort finds the undistorted normalized point that Transform maps to (xd, yd) using
// Newton-Raphson iterations started at the distorted point.
func (bc *BrownConrady) Undistort(xd, yd float64) (float64, float64) {
	if bc == nil {
		return xd, yd
	}

	xu, yu := xd, yd

	const maxIterations = 20
	const tolerance = 1e-10

	for i := 0; i < maxIterations; i++ {
		r2 := xu*xu + yu*yu
		r4 := r2 * r2

		xdEst, ydEst := bc.Transform(xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		// J = [[dxd/dxu, dxd/dyu], [dyd/dxu, dyd/dyu]]
		radDist := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r4*r2
		dRad := 2.0 * (bc.RadialK1 + 2.0*bc.RadialK2*r2 + 3.0*bc.RadialK3*r4)
		dRadDistDxu := xu * dRad
		dRadDistDyu := yu * dRad

		dxdDxu := radDist + xu*dRadDistDxu + 2.0*bc.TangentialP1*yu + 6.0*bc.TangentialP2*xu
		dxdDyu := xu*dRadDistDyu + 2.0*bc.TangentialP1*xu + 2.0*bc.TangentialP2*yu
		dydDxu := yu*dRadDistDxu + 2.0*bc.TangentialP2*yu + 2.0*bc.TangentialP1*xu
		dydDyu := radDist + yu*dRadDistDyu + 2.0*bc.TangentialP2*xu + 6.0*bc.TangentialP1*yu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			break
		}

		nextX := xu - (dydDyu*errX-dxdDyu*errY)/det
		nextY := yu - (-dydDxu*errX+dxdDxu*errY)/det
		if math.IsNaN(nextX) || math.IsNaN(nextY) || math.IsInf(nextX, 0) || math.IsInf(nextY, 0) {
			break
		}
		xu, yu = nextX, nextY
	}

	return xu, yu
}
