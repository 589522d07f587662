package transform

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// rectangleGridSize is the number of samples per image side used to trace the undistorted image border.
const rectangleGridSize = 9

// roiEpsilon absorbs rounding noise before the valid rectangle is snapped to whole pixels.
const roiEpsilon = 1e-9

type floatRect struct {
	X, Y, W, H float64
}

// undistortedRectangles samples a grid over a width x height image, undistorts it into the pixel frame
// of target (normalized coordinates when target is nil) and returns the largest rectangle inside the undistorted border (inner) and the
// bounding box of all undistorted samples (outer).
func undistortedRectangles(
	model *PinholeCameraModel,
	target *PinholeCameraIntrinsics,
	width, height int,
) (inner, outer floatRect) {
	const n = rectangleGridSize
	iX0, iX1 := math.Inf(-1), math.Inf(1)
	iY0, iY1 := math.Inf(-1), math.Inf(1)
	oX0, oX1 := math.Inf(1), math.Inf(-1)
	oY0, oY1 := math.Inf(1), math.Inf(-1)

	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			src := r2.Point{
				X: float64(x) * float64(width) / float64(n-1),
				Y: float64(y) * float64(height) / float64(n-1),
			}
			norm := model.NormalizedPoint(src)
			p := norm
			if target != nil {
				p = r2.Point{X: norm.X*target.Fx + target.Ppx, Y: norm.Y*target.Fy + target.Ppy}
			}

			oX0 = math.Min(oX0, p.X)
			oX1 = math.Max(oX1, p.X)
			oY0 = math.Min(oY0, p.Y)
			oY1 = math.Max(oY1, p.Y)

			if x == 0 {
				iX0 = math.Max(iX0, p.X)
			}
			if x == n-1 {
				iX1 = math.Min(iX1, p.X)
			}
			if y == 0 {
				iY0 = math.Max(iY0, p.Y)
			}
			if y == n-1 {
				iY1 = math.Min(iY1, p.Y)
			}
		}
	}
	inner = floatRect{iX0, iY0, iX1 - iX0, iY1 - iY0}
	outer = floatRect{oX0, oY0, oX1 - oX0, oY1 - oY0}
	return inner, outer
}

// OptimalNewCameraMatrix computes intrinsics for undistorted output images of size width x height.
// With alpha = 0 every output pixel is valid (the image is zoomed in to the inscribed rectangle); with
// alpha = 1 every source pixel is kept (black borders appear). Values in between interpolate. The
// returned rectangle is the region of the output that contains only valid pixels.
func OptimalNewCameraMatrix(
	model *PinholeCameraModel,
	width, height int,
	alpha float64,
) (*PinholeCameraIntrinsics, image.Rectangle, error) {
	if err := model.CheckValid(); err != nil {
		return nil, image.Rectangle{}, err
	}
	if width <= 0 || height <= 0 {
		return nil, image.Rectangle{}, errors.Errorf("invalid output size (%d, %d)", width, height)
	}
	if alpha < 0 || alpha > 1 || math.IsNaN(alpha) {
		return nil, image.Rectangle{}, errors.Errorf("alpha must be in [0, 1], got %v", alpha)
	}

	inner, outer := undistortedRectangles(model, nil, width, height)
	if inner.W <= 0 || inner.H <= 0 || outer.W <= 0 || outer.H <= 0 {
		return nil, image.Rectangle{}, errors.New("distortion folds the image border, cannot fit an undistorted view")
	}

	fx0 := float64(width-1) / inner.W
	fy0 := float64(height-1) / inner.H
	cx0 := -fx0 * inner.X
	cy0 := -fy0 * inner.Y

	fx1 := float64(width-1) / outer.W
	fy1 := float64(height-1) / outer.H
	cx1 := -fx1 * outer.X
	cy1 := -fy1 * outer.Y

	newIntrinsics := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     fx0*(1-alpha) + fx1*alpha,
		Fy:     fy0*(1-alpha) + fy1*alpha,
		Ppx:    cx0*(1-alpha) + cx1*alpha,
		Ppy:    cy0*(1-alpha) + cy1*alpha,
	}

	valid, _ := undistortedRectangles(model, newIntrinsics, width, height)
	x0, y0 := int(math.Ceil(valid.X-roiEpsilon)), int(math.Ceil(valid.Y-roiEpsilon))
	roi := image.Rect(x0, y0, x0+int(math.Floor(valid.W+roiEpsilon)), y0+int(math.Floor(valid.H+roiEpsilon)))
	roi = roi.Intersect(image.Rect(0, 0, width, height))

	return newIntrinsics, roi, nil
}
