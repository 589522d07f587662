package rimage

import (
	"bufio"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lmittmann/ppm" // also registers ppm
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi" // also registers qoi
	"go.uber.org/multierr"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register webp
)

// ErrUnsupportedFormat is returned for file extensions we cannot read or write.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var readableExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".tif": true, ".tiff": true,
	".webp": true, ".ppm": true, ".qoi": true,
}

// IsImageFile reports whether the file extension is one ReadImageFromFile understands.
func IsImageFile(fn string) bool {
	return readableExtensions[strings.ToLower(filepath.Ext(fn))]
}

// ReadImageFromFile decodes the image at fn.
func ReadImageFromFile(fn string) (image.Image, error) {
	if !IsImageFile(fn) {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "cannot read %q", fn)
	}
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %q", fn)
	}
	return img, nil
}

// WriteImageToFile encodes img according to the extension of fn.
func WriteImageToFile(fn string, img image.Image) (err error) {
	ext := strings.ToLower(filepath.Ext(fn))
	var encode func(*bufio.Writer) error
	switch ext {
	case ".png":
		encode = func(w *bufio.Writer) error { return png.Encode(w, img) }
	case ".jpg", ".jpeg":
		encode = func(w *bufio.Writer) error { return jpeg.Encode(w, img, &jpeg.Options{Quality: 95}) }
	case ".bmp":
		encode = func(w *bufio.Writer) error { return bmp.Encode(w, img) }
	case ".tif", ".tiff":
		encode = func(w *bufio.Writer) error { return tiff.Encode(w, img, nil) }
	case ".ppm":
		encode = func(w *bufio.Writer) error { return ppm.Encode(w, toRGBA(img)) }
	case ".qoi":
		encode = func(w *bufio.Writer) error { return qoi.Encode(w, img) }
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "cannot write %q", fn)
	}

	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
		if err != nil {
			// do not leave a truncated image behind
			err = multierr.Combine(err, os.Remove(fn))
		}
	}()
	w := bufio.NewWriter(f)
	if err := encode(w); err != nil {
		return errors.Wrapf(err, "cannot encode %q", fn)
	}
	return w.Flush()
}

// toRGBA returns img as an *image.RGBA, converting when needed.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// ListImageFiles returns the image files named by src in lexical order. src may be a single file or a
// directory, which is searched recursively when recursive is set.
func ListImageFiles(src string, recursive bool) ([]string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !IsImageFile(src) {
			return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", src)
		}
		return []string{src}, nil
	}

	var files []string
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != src && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
