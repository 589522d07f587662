package analysis

import (
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// ReadTranslationsNPY reads translation vectors from a .npy array of any shape holding 3N values, such as the
// (N, 3, 1) arrays written by numpy based recorders.
func ReadTranslationsNPY(path string) ([]r3.Vector, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var data []float64
	if err := npyio.Read(f, &data); err != nil {
		return nil, errors.Wrapf(err, "error reading %q", path)
	}
	if len(data)%3 != 0 {
		return nil, errors.Errorf("%q holds %d values, not a multiple of 3", path, len(data))
	}
	out := make([]r3.Vector, len(data)/3)
	for i := range out {
		out[i] = r3.Vector{X: data[3*i], Y: data[3*i+1], Z: data[3*i+2]}
	}
	return out, nil
}

// WriteTranslationsNPY stores translations as an (N, 3) float64 array.
func WriteTranslationsNPY(path string, translations []r3.Vector) (err error) {
	if len(translations) == 0 {
		return errors.New("no translations to write")
	}
	m := mat.NewDense(len(translations), 3, nil)
	for i, v := range translations {
		m.SetRow(i, []float64{v.X, v.Y, v.Z})
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return npyio.Write(f, m)
}
