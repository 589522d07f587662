package rimage

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// SameImgSize compares two images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Dx() == g2.Bounds().Dx() && g1.Bounds().Dy() == g2.Bounds().Dy()
}

// MakeGray converts any image to an 8-bit grayscale image with its origin at (0, 0). Gray images
// already at the origin are returned as-is.
func MakeGray(pic image.Image) *image.Gray {
	if g, ok := pic.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	result := image.NewGray(image.Rect(0, 0, pic.Bounds().Dx(), pic.Bounds().Dy()))
	draw.Draw(result, result.Bounds(), pic, pic.Bounds().Min, draw.Src)
	return result
}

// ResizeToWidth scales img to the given width keeping its aspect ratio. A non-positive width returns img.
func ResizeToWidth(img image.Image, width int) image.Image {
	if width <= 0 || width == img.Bounds().Dx() {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}
