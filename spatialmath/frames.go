package spatialmath

import "github.com/golang/geo/r3"

// WorldSpacePosition returns the camera position in world coordinates for a pose that maps
// world points into the camera frame: -R^T * tvec.
func WorldSpacePosition(tvec r3.Vector, rm *RotationMatrix) r3.Vector {
	return rm.Transpose().Mul(tvec).Mul(-1)
}

// MarkerAxisAnchor returns, in camera coordinates, the point at markerOffset in world coordinates:
// tvec + R * markerOffset. It is used to place per-marker axes in overlays.
func MarkerAxisAnchor(markerOffset, tvec r3.Vector, rm *RotationMatrix) r3.Vector {
	return tvec.Add(rm.Mul(markerOffset))
}

// RotationAngleBetween returns the angle in radians of the rotation taking a to b.
func RotationAngleBetween(a, b *RotationMatrix) float64 {
	return RotationMatrixToR3(a.Transpose().MatMul(b)).Norm()
}
