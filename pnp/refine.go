package pnp

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/fiducial-nav/markerpose/logging"
	"github.com/fiducial-nav/markerpose/spatialmath"
)

// behindCameraPenalty keeps the line search finite when a trial pose puts a point behind the camera.
const behindCameraPenalty = 1e30

func poseToParams(p spatialmath.Pose) []float64 {
	return []float64{p.RVec.X, p.RVec.Y, p.RVec.Z, p.TVec.X, p.TVec.Y, p.TVec.Z}
}

func paramsToPose(x []float64) spatialmath.Pose {
	return spatialmath.Pose{
		RVec: r3.Vector{X: x[0], Y: x[1], Z: x[2]},
		TVec: r3.Vector{X: x[3], Y: x[4], Z: x[5]},
	}
}

// refine minimizes the squared pixel reprojection error over the rotation vector and translation with L-BFGS.
// The initial pose is returned when the optimizer does not improve on it.
func refine(
	world []r3.Vector,
	norm []r2.Point,
	fx, fy float64,
	initial spatialmath.Pose,
	maxIterations int,
	logger logging.Logger,
) spatialmath.Pose {
	cost := func(x []float64) float64 {
		pose := paramsToPose(x)
		c := sumSquaredResiduals(pose.RotationMatrix(), pose.TVec, world, norm, fx, fy)
		if math.IsInf(c, 1) || math.IsNaN(c) {
			return behindCameraPenalty
		}
		return c
	}
	initialCost := cost(poseToParams(initial))

	problem := optimize.Problem{
		Func: cost,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, cost, x, &fd.Settings{Formula: fd.Central})
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   maxIterations,
		GradientThreshold: 1e-9,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 20,
		},
	}
	result, err := optimize.Minimize(problem, poseToParams(initial), settings, &optimize.LBFGS{})
	if result == nil {
		if logger != nil {
			logger.Debugw("refinement failed", "error", err)
		}
		return initial
	}
	if logger != nil {
		logger.Debugw("refinement finished",
			"status", result.Status.String(),
			"iterations", result.MajorIterations,
			"initial_cost", initialCost,
			"final_cost", result.F,
			"error", err,
		)
	}
	if !(result.F < initialCost) {
		return initial
	}
	return paramsToPose(result.X)
}
