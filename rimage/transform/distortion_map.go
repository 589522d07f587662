package transform

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DistortionMap holds the per-pixel lookup tables that undistort frames of one size. For every
// output pixel (u, v), MapX/MapY hold the source pixel to sample in the distorted frame.
type DistortionMap struct {
	Width, Height int
	Alpha         float64
	// NewIntrinsics describes the undistorted output frames.
	NewIntrinsics *PinholeCameraIntrinsics
	// ROI is the region of the output that only contains valid pixels.
	ROI  image.Rectangle
	MapX []float32
	MapY []float32
}

// NewDistortionMap builds the undistortion lookup tables for frames of size width x height.
// The result is deterministic for the same model, size and alpha.
func NewDistortionMap(model *PinholeCameraModel, width, height int, alpha float64) (*DistortionMap, error) {
	newIntrinsics, roi, err := OptimalNewCameraMatrix(model, width, height, alpha)
	if err != nil {
		return nil, err
	}

	dm := &DistortionMap{
		Width:         width,
		Height:        height,
		Alpha:         alpha,
		NewIntrinsics: newIntrinsics,
		ROI:           roi,
		MapX:          make([]float32, width*height),
		MapY:          make([]float32, width*height),
	}
	for v := 0; v < height; v++ {
		y := (float64(v) - newIntrinsics.Ppy) / newIntrinsics.Fy
		for u := 0; u < width; u++ {
			x := (float64(u) - newIntrinsics.Ppx) / newIntrinsics.Fx
			xd, yd := x, y
			if model.Distortion != nil {
				xd, yd = model.Distortion.Transform(x, y)
			}
			idx := v*width + u
			dm.MapX[idx] = float32(xd*model.Fx + model.Ppx)
			dm.MapY[idx] = float32(yd*model.Fy + model.Ppy)
		}
	}
	return dm, nil
}

// Lookup returns the source coordinates sampled for output pixel (u, v).
func (dm *DistortionMap) Lookup(u, v int) (float64, float64) {
	idx := v*dm.Width + u
	return float64(dm.MapX[idx]), float64(dm.MapY[idx])
}

func (dm *DistortionMap) checkSize(img image.Image) error {
	if img == nil {
		return errors.New("input image is nil")
	}
	b := img.Bounds()
	if b.Dx() != dm.Width || b.Dy() != dm.Height {
		return errors.Wrapf(ErrDimensionMismatch, "Image(%d,%d) != Map(%d,%d)", b.Dx(), b.Dy(), dm.Width, dm.Height)
	}
	return nil
}

// Remap resamples img through the map with bilinear interpolation. Samples that fall outside
// the source are black. Gray input gives gray output; everything else gives RGBA.
func (dm *DistortionMap) Remap(img image.Image) (image.Image, error) {
	if err := dm.checkSize(img); err != nil {
		return nil, err
	}
	if gray, ok := img.(*image.Gray); ok {
		return dm.remapGray(gray), nil
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return dm.remapRGBA(rgba), nil
}

// bilinearWeights returns the four neighbours of (x, y) and their weights. Neighbours outside a
// width x height image get an in-bounds flag of false.
func bilinearWeights(x, y float64, width, height int) (xs, ys [4]int, ws [4]float64, in [4]bool) {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)
	xs = [4]int{x0, x0 + 1, x0, x0 + 1}
	ys = [4]int{y0, y0, y0 + 1, y0 + 1}
	ws = [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
	for i := range xs {
		in[i] = xs[i] >= 0 && xs[i] < width && ys[i] >= 0 && ys[i] < height
	}
	return
}

func (dm *DistortionMap) remapGray(src *image.Gray) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, dm.Width, dm.Height))
	base := src.Bounds().Min
	for v := 0; v < dm.Height; v++ {
		for u := 0; u < dm.Width; u++ {
			x, y := dm.Lookup(u, v)
			if math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			xs, ys, ws, in := bilinearWeights(x, y, dm.Width, dm.Height)
			acc := 0.0
			for i := range xs {
				if in[i] {
					acc += ws[i] * float64(src.Pix[src.PixOffset(base.X+xs[i], base.Y+ys[i])])
				}
			}
			dst.Pix[dst.PixOffset(u, v)] = clampUint8(acc)
		}
	}
	return dst
}

func (dm *DistortionMap) remapRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, dm.Width, dm.Height))
	base := src.Bounds().Min
	for v := 0; v < dm.Height; v++ {
		for u := 0; u < dm.Width; u++ {
			x, y := dm.Lookup(u, v)
			if math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			xs, ys, ws, in := bilinearWeights(x, y, dm.Width, dm.Height)
			var acc [4]float64
			for i := range xs {
				if !in[i] {
					continue
				}
				off := src.PixOffset(base.X+xs[i], base.Y+ys[i])
				for c := 0; c < 4; c++ {
					acc[c] += ws[i] * float64(src.Pix[off+c])
				}
			}
			off := dst.PixOffset(u, v)
			for c := 0; c < 4; c++ {
				dst.Pix[off+c] = clampUint8(acc[c])
			}
		}
	}
	return dst
}

func clampUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// Crop cuts the valid region out of an undistorted frame. The result starts at (0, 0).
func (dm *DistortionMap) Crop(img image.Image) (image.Image, error) {
	if err := dm.checkSize(img); err != nil {
		return nil, err
	}
	if dm.ROI.Empty() {
		return nil, errors.New("distortion map has an empty valid region")
	}
	roi := dm.ROI.Add(img.Bounds().Min)
	if gray, ok := img.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, roi.Dx(), roi.Dy()))
		draw.Draw(out, out.Bounds(), gray, roi.Min, draw.Src)
		return out, nil
	}
	return imaging.Crop(img, roi), nil
}

// CroppedIntrinsics are the intrinsics of frames returned by Crop.
func (dm *DistortionMap) CroppedIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  dm.ROI.Dx(),
		Height: dm.ROI.Dy(),
		Fx:     dm.NewIntrinsics.Fx,
		Fy:     dm.NewIntrinsics.Fy,
		Ppx:    dm.NewIntrinsics.Ppx - float64(dm.ROI.Min.X),
		Ppy:    dm.NewIntrinsics.Ppy - float64(dm.ROI.Min.Y),
	}
}
