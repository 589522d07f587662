package rimage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func testPattern() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(40 * x), G: uint8(60 * y), B: 128, A: 255})
		}
	}
	return img
}

func TestImageFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := testPattern()
	for _, ext := range []string{".png", ".bmp", ".tiff", ".ppm", ".qoi"} {
		fn := filepath.Join(dir, "pattern"+ext)
		test.That(t, WriteImageToFile(fn, src), test.ShouldBeNil)

		img, err := ReadImageFromFile(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds().Dx(), test.ShouldEqual, 6)
		test.That(t, img.Bounds().Dy(), test.ShouldEqual, 4)
		for _, p := range []image.Point{{0, 0}, {5, 3}, {2, 1}} {
			r1, g1, b1, _ := src.At(p.X, p.Y).RGBA()
			r2, g2, b2, _ := img.At(img.Bounds().Min.X+p.X, img.Bounds().Min.Y+p.Y).RGBA()
			test.That(t, []uint32{r2, g2, b2}, test.ShouldResemble, []uint32{r1, g1, b1})
		}
	}

	fn := filepath.Join(dir, "pattern.jpg")
	test.That(t, WriteImageToFile(fn, src), test.ShouldBeNil)
	img, err := ReadImageFromFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Size(), test.ShouldResemble, image.Pt(6, 4))
}

func TestImageFilePPMColorModels(t *testing.T) {
	dir := t.TempDir()
	gray := image.NewGray(image.Rect(0, 0, 5, 3))
	gray.SetGray(4, 2, color.Gray{Y: 200})

	for name, src := range map[string]image.Image{"gray": gray, "nrgba": testPattern()} {
		fn := filepath.Join(dir, name+".ppm")
		test.That(t, WriteImageToFile(fn, src), test.ShouldBeNil)
		img, err := ReadImageFromFile(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds().Size(), test.ShouldResemble, src.Bounds().Size())
		p := src.Bounds().Max.Sub(image.Pt(1, 1))
		r1, g1, b1, _ := src.At(p.X, p.Y).RGBA()
		r2, g2, b2, _ := img.At(img.Bounds().Min.X+p.X, img.Bounds().Min.Y+p.Y).RGBA()
		test.That(t, []uint32{r2, g2, b2}, test.ShouldResemble, []uint32{r1, g1, b1})
	}
}

func TestImageFileFailedWriteRemovesFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "empty.png")
	err := WriteImageToFile(fn, image.NewRGBA(image.Rect(0, 0, 0, 0)))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = os.Stat(fn)
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestImageFileUnsupported(t *testing.T) {
	dir := t.TempDir()
	err := WriteImageToFile(filepath.Join(dir, "x.gif"), testPattern())
	test.That(t, errors.Is(err, ErrUnsupportedFormat), test.ShouldBeTrue)

	txt := filepath.Join(dir, "notes.txt")
	test.That(t, os.WriteFile(txt, []byte("hi"), 0o600), test.ShouldBeNil)
	_, err = ReadImageFromFile(txt)
	test.That(t, errors.Is(err, ErrUnsupportedFormat), test.ShouldBeTrue)

	bogus := filepath.Join(dir, "bogus.png")
	test.That(t, os.WriteFile(bogus, []byte("not a png"), 0o600), test.ShouldBeNil)
	_, err = ReadImageFromFile(bogus)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	test.That(t, os.Mkdir(sub, 0o700), test.ShouldBeNil)
	for _, fn := range []string{filepath.Join(dir, "b.png"), filepath.Join(dir, "a.qoi"), filepath.Join(sub, "c.png")} {
		test.That(t, WriteImageToFile(fn, testPattern()), test.ShouldBeNil)
	}
	test.That(t, os.WriteFile(filepath.Join(dir, "readme.md"), nil, 0o600), test.ShouldBeNil)

	files, err := ListImageFiles(dir, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, files, test.ShouldResemble, []string{filepath.Join(dir, "a.qoi"), filepath.Join(dir, "b.png")})

	files, err = ListImageFiles(dir, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, files, test.ShouldHaveLength, 3)

	files, err = ListImageFiles(filepath.Join(dir, "b.png"), false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, files, test.ShouldHaveLength, 1)

	_, err = ListImageFiles(filepath.Join(dir, "missing"), false)
	test.That(t, err, test.ShouldNotBeNil)
}
