package pnp

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/fiducial-nav/markerpose/rimage/transform"
	"github.com/fiducial-nav/markerpose/spatialmath"
)

// ProjectPoints maps world points to distorted pixel coordinates through pose and model. The second result
// reports, per point, whether it lies in front of the camera; points behind it are left at the zero point.
func ProjectPoints(points []r3.Vector, pose spatialmath.Pose, model *transform.PinholeCameraModel) ([]r2.Point, []bool) {
	rm := pose.RotationMatrix()
	out := make([]r2.Point, len(points))
	visible := make([]bool, len(points))
	for i, p := range points {
		pc := rm.Mul(p).Add(pose.TVec)
		if pc.Z <= 0 {
			continue
		}
		x, y := pc.X/pc.Z, pc.Y/pc.Z
		if model.Distortion != nil {
			x, y = model.Distortion.Transform(x, y)
		}
		out[i] = r2.Point{X: x*model.Fx + model.Ppx, Y: y*model.Fy + model.Ppy}
		visible[i] = true
	}
	return out, visible
}
