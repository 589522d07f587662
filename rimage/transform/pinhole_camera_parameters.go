package transform

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// ErrDimensionMismatch is returned when an image does not have the size a map or model was built for.
var ErrDimensionMismatch = errors.New("image dimensions do not match")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraModel is the model of a pinhole camera.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               Distorter `json:"distortion"`
}

// CheckValid checks the intrinsics and, when present, the distortion parameters.
func (params *PinholeCameraModel) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("camera model does not exist")
	}
	if err := params.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return err
	}
	if params.Distortion != nil {
		return params.Distortion.CheckValid()
	}
	return nil
}

// DistortionMap is a function that transforms the undistorted input points (u,v) to the distorted points (x,y)
// according to the model in PinholeCameraModel.Distortion.
func (params *PinholeCameraModel) DistortionMap() func(u, v float64) (float64, float64) {
	return func(u, v float64) (float64, float64) {
		if params.Distortion == nil {
			return u, v
		}
		x := (u - params.Ppx) / params.Fx
		y := (v - params.Ppy) / params.Fy
		x, y = params.Distortion.Transform(x, y)
		x = x*params.Fx + params.Ppx
		y = y*params.Fy + params.Ppy
		return x, y
	}
}

// NormalizedPoint returns the undistorted normalized image coordinates of a distorted pixel,
// i.e. the (x/z, y/z) of the ray through it.
func (params *PinholeCameraModel) NormalizedPoint(pt r2.Point) r2.Point {
	x := (pt.X - params.Ppx) / params.Fx
	y := (pt.Y - params.Ppy) / params.Fy
	if undistorter, ok := params.Distortion.(Undistorter); ok {
		x, y = undistorter.Undistort(x, y)
	}
	return r2.Point{X: x, Y: y}
}

// UndistortPoint maps a distorted pixel to where it would be imaged by the same camera without distortion.
func (params *PinholeCameraModel) UndistortPoint(pt r2.Point) r2.Point {
	n := params.NormalizedPoint(pt)
	return r2.Point{X: n.X*params.Fx + params.Ppx, Y: n.Y*params.Fy + params.Ppy}
}

// DistortPoint maps an ideal pixel to where the distorted camera images it.
func (params *PinholeCameraModel) DistortPoint(pt r2.Point) r2.Point {
	x, y := params.DistortionMap()(pt.X, pt.Y)
	return r2.Point{X: x, Y: y}
}

// UndistortImage takes an input image and creates a new image the same size with the same camera parameters
// as the original image, but undistorted according to the distortion model in PinholeCameraModel. The nearest
// source pixel is used; pixels that map outside the source are black.
func (params *PinholeCameraModel) UndistortImage(img image.Image) (*image.RGBA, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	bounds := img.Bounds()
	// Check dimensions, they should be equal between the image and what the intrinsics expect
	if params.Width != bounds.Dx() || params.Height != bounds.Dy() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "Image(%d,%d) != Intrinsics(%d,%d)",
			bounds.Dx(), bounds.Dy(), params.Width, params.Height)
	}
	undistortedImg := image.NewRGBA(image.Rect(0, 0, params.Width, params.Height))
	distortionMap := params.DistortionMap()
	for v := 0; v < params.Height; v++ {
		for u := 0; u < params.Width; u++ {
			x, y := distortionMap(float64(u), float64(v))
			px, py := int(math.Round(x)), int(math.Round(y))
			if px < 0 || py < 0 || px >= params.Width || py >= params.Height {
				continue
			}
			undistortedImg.Set(u, v, img.At(bounds.Min.X+px, bounds.Min.Y+py))
		}
	}
	return undistortedImg, nil
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
// A zero Width and Height means the frame size is not known in advance.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewPinholeCameraIntrinsicsFromMatrix reads fx, fy, ppx and ppy out of a 3x3 camera matrix.
func NewPinholeCameraIntrinsicsFromMatrix(k mat.Matrix, width, height int) (*PinholeCameraIntrinsics, error) {
	r, c := k.Dims()
	if r != 3 || c != 3 {
		return nil, errors.Errorf("camera matrix must be 3x3, got %dx%d", r, c)
	}
	if k.At(2, 2) == 0 {
		return nil, NewNoIntrinsicsError("camera matrix has a zero scale entry")
	}
	scale := k.At(2, 2)
	intrinsics := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     k.At(0, 0) / scale,
		Fy:     k.At(1, 1) / scale,
		Ppx:    k.At(0, 2) / scale,
		Ppy:    k.At(1, 2) / scale,
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return intrinsics, nil
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width < 0 || params.Height < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 || math.IsInf(params.Fx, 0) {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 || math.IsInf(params.Fy, 0) {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 || math.IsInf(params.Ppx, 0) {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 || math.IsInf(params.Ppy, 0) {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		err = errors.Wrap(err, "error opening JSON file")
		return nil, err
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err2 := io.ReadAll(jsonFile)
	if err2 != nil {
		err2 = errors.Wrap(err2, "error reading JSON data")
		return nil, err2
	}
	intrinsics := &PinholeCameraIntrinsics{}
	err = json.Unmarshal(byteValue, intrinsics)
	if err != nil {
		err = errors.Wrap(err, "error parsing JSON string")
		return nil, err
	}
	return intrinsics, nil
}

// PixelToPoint transforms a pixel with depth to a 3D point.
// The intrinsics parameters should be the ones of the sensor used to obtain the image that
// contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return float64(0), float64(0), float64(0)
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	xm := xOverZ * z
	ym := yOverZ * z
	return xm, ym, z
}

// PointToPixel projects a 3D point to a (sub)pixel in an image plane.
// The intrinsics parameters should be the ones of the sensor we want to project to.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		xPx := (x/z)*params.Fx + params.Ppx
		yPx := (y/z)*params.Fy + params.Ppy
		return xPx, yPx
	}
	// if depth is zero, return negative coordinates so that the cropping to image bounds will filter it out
	return -1.0, -1.0
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}
