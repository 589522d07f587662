// Package pnp estimates the pose of a calibrated camera from 3D-2D point correspondences.
package pnp

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/fiducial-nav/markerpose/logging"
	"github.com/fiducial-nav/markerpose/markers"
	"github.com/fiducial-nav/markerpose/rimage/transform"
	"github.com/fiducial-nav/markerpose/spatialmath"
	"github.com/fiducial-nav/markerpose/utils"
)

var (
	// ErrInsufficientPoints is returned when fewer than four usable correspondences are supplied.
	ErrInsufficientPoints = errors.New("not enough correspondences to estimate a pose")
	// ErrSolverDivergence is returned when no acceptable pose could be computed.
	ErrSolverDivergence = errors.New("pose solver did not converge")
)

const (
	minPoints = 4
	// minNonPlanarPoints is what the projection matrix initialization needs.
	minNonPlanarPoints = 6

	// DefaultMaxReprojectionError is the RMS limit in pixels used when Options leaves it unset.
	DefaultMaxReprojectionError = 10.0
	// DefaultMaxIterations bounds the refinement when Options leaves it unset.
	DefaultMaxIterations = 100

	planarityTolerance   = 1e-3
	orthonormalTolerance = 1e-6
)

// Method selects the solving strategy.
type Method int

const (
	// Auto uses PlanarSquare for exactly four points and Iterative otherwise.
	Auto Method = iota
	// PlanarSquare decomposes a homography without refinement. The points must be coplanar.
	PlanarSquare
	// Iterative initializes in closed form and refines by minimizing the reprojection error.
	Iterative
)

// ParseMethod parses the textual form of a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "planar_square", "ippe_square":
		return PlanarSquare, nil
	case "iterative":
		return Iterative, nil
	default:
		return Auto, errors.Errorf("unknown pnp method %q", s)
	}
}

func (m Method) String() string {
	switch m {
	case Auto:
		return "auto"
	case PlanarSquare:
		return "planar_square"
	case Iterative:
		return "iterative"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// Options configure Solve. The zero value is usable.
type Options struct {
	Method Method
	// MaxReprojectionError is the largest acceptable RMS reprojection error in pixels.
	MaxReprojectionError float64
	MaxIterations        int
	Logger               logging.Logger
}

// DefaultOptions returns Options with every limit filled in.
func DefaultOptions() Options {
	return Options{
		Method:               Auto,
		MaxReprojectionError: DefaultMaxReprojectionError,
		MaxIterations:        DefaultMaxIterations,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxReprojectionError <= 0 {
		o.MaxReprojectionError = DefaultMaxReprojectionError
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Estimate is a solved camera pose.
type Estimate struct {
	Pose spatialmath.Pose
	// Method is the strategy actually used; never Auto.
	Method Method
	// ReprojectionError is the RMS distance in pixels between observed and reprojected points.
	ReprojectionError float64
	NumPoints         int
	Planar            bool
}

// Solve estimates the world to camera pose from a correspondence set.
func Solve(cs markers.CorrespondenceSet, model *transform.PinholeCameraModel, opts Options) (*Estimate, error) {
	return SolvePoints(cs.WorldPoints, cs.ImagePoints, model, opts)
}

// SolvePoints estimates the world to camera pose from parallel slices of world points and distorted pixel
// observations.
func SolvePoints(world []r3.Vector, image []r2.Point, model *transform.PinholeCameraModel, opts Options) (*Estimate, error) {
	if len(world) != len(image) {
		return nil, errors.Wrapf(ErrInsufficientPoints, "%d world points but %d image points", len(world), len(image))
	}
	if len(world) < minPoints {
		return nil, errors.Wrapf(ErrInsufficientPoints, "got %d, need at least %d", len(world), minPoints)
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	norm := make([]r2.Point, len(image))
	for i, pt := range image {
		if !utils.IsFinite(pt.X, pt.Y) {
			return nil, errors.Errorf("image point %d is not finite", i)
		}
		norm[i] = model.NormalizedPoint(pt)
		if !utils.IsFinite(norm[i].X, norm[i].Y) {
			return nil, errors.Wrapf(ErrSolverDivergence, "image point %d could not be undistorted", i)
		}
	}
	for i, p := range world {
		if !utils.IsFinite(p.X, p.Y, p.Z) {
			return nil, errors.Errorf("world point %d is not finite", i)
		}
	}

	frame, err := fitPlane(world)
	if err != nil {
		return nil, err
	}

	method := opts.Method
	if method == Auto {
		if len(world) == minPoints && frame.planar {
			method = PlanarSquare
		} else {
			method = Iterative
		}
	}

	var initial spatialmath.Pose
	switch {
	case frame.planar:
		initial, err = planarPose(world, norm, frame)
	case method == PlanarSquare:
		return nil, errors.Wrap(ErrSolverDivergence, "planar method requires coplanar points")
	case len(world) < minNonPlanarPoints:
		return nil, errors.Wrapf(ErrInsufficientPoints, "non-coplanar points need at least %d, got %d",
			minNonPlanarPoints, len(world))
	default:
		initial, err = projectionMatrixPose(world, norm)
	}
	if err != nil {
		return nil, err
	}

	fx, fy := model.Fx, model.Fy
	pose := initial
	if method == Iterative {
		pose = refine(world, norm, fx, fy, initial, opts.MaxIterations, opts.Logger)
	}

	rms, err := checkPose(pose, world, norm, fx, fy, opts.MaxReprojectionError)
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Debugw("rejected pose", "method", method.String(), "error", err)
		}
		return nil, err
	}
	return &Estimate{
		Pose:              pose,
		Method:            method,
		ReprojectionError: rms,
		NumPoints:         len(world),
		Planar:            frame.planar,
	}, nil
}

// checkPose validates a candidate pose and returns its RMS reprojection error in pixels.
func checkPose(pose spatialmath.Pose, world []r3.Vector, norm []r2.Point, fx, fy, maxErr float64) (float64, error) {
	if !utils.IsFinite(pose.RVec.X, pose.RVec.Y, pose.RVec.Z, pose.TVec.X, pose.TVec.Y, pose.TVec.Z) {
		return 0, errors.Wrap(ErrSolverDivergence, "pose is not finite")
	}
	rm := pose.RotationMatrix()
	if !rm.IsOrthonormal(orthonormalTolerance) {
		return 0, errors.Wrap(ErrSolverDivergence, "rotation is not orthonormal")
	}
	for i, p := range world {
		if rm.Mul(p).Add(pose.TVec).Z <= 0 {
			return 0, errors.Wrapf(ErrSolverDivergence, "point %d is behind the camera", i)
		}
	}
	rms := math.Sqrt(sumSquaredResiduals(rm, pose.TVec, world, norm, fx, fy) / float64(len(world)))
	if !utils.IsFinite(rms) {
		return 0, errors.Wrap(ErrSolverDivergence, "reprojection error is not finite")
	}
	if rms > maxErr {
		return rms, errors.Wrapf(ErrSolverDivergence, "reprojection error %.3fpx exceeds %.3fpx", rms, maxErr)
	}
	return rms, nil
}

// sumSquaredResiduals is the squared reprojection error in pixel units of an undistorted camera with focal
// lengths fx, fy. Points behind the camera are reported as +Inf.
func sumSquaredResiduals(rm *spatialmath.RotationMatrix, t r3.Vector, world []r3.Vector, norm []r2.Point, fx, fy float64) float64 {
	sum := 0.0
	for i, p := range world {
		pc := rm.Mul(p).Add(t)
		if pc.Z <= 0 {
			return math.Inf(1)
		}
		dx := fx * (pc.X/pc.Z - norm[i].X)
		dy := fy * (pc.Y/pc.Z - norm[i].Y)
		sum += dx*dx + dy*dy
	}
	return sum
}
