package tracking

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/fiducial-nav/markerpose/spatialmath"
	"github.com/fiducial-nav/markerpose/utils"
)

// Alignment compares a solved pose to the target camera-space translation. Angles are in degrees.
type Alignment struct {
	// TranslationError is target - tvec.
	TranslationError r3.Vector
	XYPositionLocked bool
	ZPositionLocked  bool
	XYRotationLocked bool
	ZRotationLocked  bool
}

// NewAlignment evaluates pose against target. The camera is aligned when the XY translation error norm and
// |Z error| are below posTol, the norm of (pitch, roll) is below rotTolDeg and |yaw| is below rotTolDeg.
func NewAlignment(target r3.Vector, pose spatialmath.Pose, posTol, rotTolDeg float64) *Alignment {
	terr := target.Sub(pose.TVec)
	deg := pose.EulerAngles().Degrees()
	return &Alignment{
		TranslationError: terr,
		XYPositionLocked: math.Hypot(terr.X, terr.Y) < posTol,
		ZPositionLocked:  math.Abs(terr.Z) < posTol,
		XYRotationLocked: math.Hypot(deg.Pitch, deg.Roll) < rotTolDeg,
		ZRotationLocked:  math.Abs(deg.Yaw) < rotTolDeg,
	}
}

// Aligned reports whether every axis is locked.
func (a *Alignment) Aligned() bool {
	return a.XYPositionLocked && a.ZPositionLocked && a.XYRotationLocked && a.ZRotationLocked
}

// Status is the human readable alignment state.
func (a *Alignment) Status() string {
	if a.Aligned() {
		return "Aligned"
	}
	return "Not Aligned"
}

// movementArrows converts a translation error into log-scaled arrow offsets in pixels for the X, Y and
// diagonal Z arrows of the movement widget.
func movementArrows(terr r3.Vector, scale, maxLen float64) (x, y, z float64) {
	logScale := func(v float64) float64 {
		return math.Copysign(math.Log10(math.Abs(v)+1), v)
	}
	x = utils.Clamp(logScale(terr.X)*scale, -maxLen, maxLen)
	y = utils.Clamp(logScale(terr.Y)*scale, -maxLen, maxLen)
	zMax := maxLen / math.Sqrt2
	z = utils.Clamp(logScale(terr.Z)*scale/math.Sqrt2, -zMax, zMax)
	return x, y, z
}
