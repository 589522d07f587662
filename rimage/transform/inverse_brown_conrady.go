package transform

import "github.com/pkg/errors"

// InverseBrownConrady applies the inverse of the Brown-Conrady distortion model.
// Given distorted points, it computes the corresponding undistorted points.
type InverseBrownConrady struct {
	BrownConrady
}

// CheckValid checks if the fields for InverseBrownConrady have valid inputs.
func (ibc *InverseBrownConrady) CheckValid() error {
	if ibc == nil {
		return InvalidDistortionError("InverseBrownConrady shaped distortion_parameters not provided")
	}
	return ibc.BrownConrady.CheckValid()
}

// NewInverseBrownConrady takes in a slice of floats that will be passed into the struct in order.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	bc, err := NewBrownConrady(inp)
	if err != nil {
		return nil, err
	}
	return &InverseBrownConrady{*bc}, nil
}

// ModelType returns the type of distortion model.
func (ibc *InverseBrownConrady) ModelType() DistortionType {
	return InverseBrownConradyDistortionType
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (ibc *InverseBrownConrady) Parameters() []float64 {
	if ibc == nil {
		return []float64{}
	}
	return ibc.BrownConrady.Parameters()
}

// Transform converts distorted points to undistorted points.
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64) {
	if ibc == nil {
		return xd, yd
	}
	return ibc.BrownConrady.Undistort(xd, yd)
}

// Undistort applies the forward model, which undoes Transform.
func (ibc *InverseBrownConrady) Undistort(x, y float64) (float64, float64) {
	if ibc == nil {
		return x, y
	}
	return ibc.BrownConrady.Transform(x, y)
}
