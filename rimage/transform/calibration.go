package transform

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"github.com/sbinet/npyio/npz"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// calibrationJSON is the JSON calibration layout: a row major 3x3 camera matrix and OpenCV ordered
// distortion coefficients.
type calibrationJSON struct {
	K      [][]float64 `json:"k"`
	D      []float64   `json:"d"`
	Width  int         `json:"width_px"`
	Height int         `json:"height_px"`
}

// NewPinholeCameraModelFromOpenCV builds a model from a row major 3x3 camera matrix and OpenCV
// ordered distortion coefficients. Empty or all zero coefficients give a model without distortion.
func NewPinholeCameraModelFromOpenCV(k, d []float64, width, height int) (*PinholeCameraModel, error) {
	if len(k) != 9 {
		return nil, NewNoIntrinsicsError("camera matrix must have 9 entries")
	}
	intrinsics, err := NewPinholeCameraIntrinsicsFromMatrix(mat.NewDense(3, 3, k), width, height)
	if err != nil {
		return nil, err
	}
	model := &PinholeCameraModel{PinholeCameraIntrinsics: intrinsics}
	if allZero(d) {
		return model, nil
	}
	bc, err := NewBrownConradyFromOpenCV(d)
	if err != nil {
		return nil, err
	}
	model.Distortion = bc
	return model, nil
}

func allZero(vals []float64) bool {
	for _, v := range vals {
		if v != 0 {
			return false
		}
	}
	return true
}

// ReadCalibrationFile loads a camera model from a .npz archive holding "k" and "d" arrays or
// from a .json file. Both store OpenCV ordered distortion coefficients.
func ReadCalibrationFile(path string) (*PinholeCameraModel, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npz":
		return readCalibrationNPZ(path)
	case ".json":
		return readCalibrationJSON(path)
	default:
		return nil, errors.Errorf("unsupported calibration file %q, expected .npz or .json", path)
	}
}

// ReadCalibrationNPY loads a camera model from separate .npy files for the camera matrix and the
// distortion coefficients.
func ReadCalibrationNPY(kPath, dPath string) (*PinholeCameraModel, error) {
	k, err := readNPY(kPath)
	if err != nil {
		return nil, err
	}
	d, err := readNPY(dPath)
	if err != nil {
		return nil, err
	}
	return NewPinholeCameraModelFromOpenCV(k, d, 0, 0)
}

func readNPY(path string) ([]float64, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening npy file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var data []float64
	if err := npyio.Read(f, &data); err != nil {
		return nil, errors.Wrapf(err, "error reading %q", path)
	}
	return data, nil
}

func readCalibrationNPZ(path string) (*PinholeCameraModel, error) {
	archive, err := npz.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening npz file")
	}
	defer utils.UncheckedErrorFunc(archive.Close)

	arrays := map[string][]float64{}
	for _, key := range archive.Keys() {
		name := strings.TrimSuffix(key, ".npy")
		if name != "k" && name != "d" {
			continue
		}
		var data []float64
		if err := archive.Read(key, &data); err != nil {
			return nil, errors.Wrapf(err, "error reading %q from %q", name, path)
		}
		arrays[name] = data
	}
	k, ok := arrays["k"]
	if !ok {
		return nil, NewNoIntrinsicsError("npz archive has no \"k\" array")
	}
	return NewPinholeCameraModelFromOpenCV(k, arrays["d"], 0, 0)
}

func readCalibrationJSON(path string) (*PinholeCameraModel, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON file")
	}
	var cal calibrationJSON
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	k := make([]float64, 0, 9)
	for _, row := range cal.K {
		k = append(k, row...)
	}
	return NewPinholeCameraModelFromOpenCV(k, cal.D, cal.Width, cal.Height)
}

// WriteCalibrationJSON stores a model in the format ReadCalibrationFile reads.
func WriteCalibrationJSON(path string, model *PinholeCameraModel) error {
	if err := model.CheckValid(); err != nil {
		return err
	}
	cal := calibrationJSON{
		K: [][]float64{
			{model.Fx, 0, model.Ppx},
			{0, model.Fy, model.Ppy},
			{0, 0, 1},
		},
		D:      []float64{},
		Width:  model.Width,
		Height: model.Height,
	}
	if bc, ok := model.Distortion.(*BrownConrady); ok && bc != nil {
		cal.D = bc.OpenCVCoefficients()
	}
	data, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// WriteCalibrationNPY stores the camera matrix and OpenCV ordered distortion coefficients as .npy files.
func WriteCalibrationNPY(kPath, dPath string, model *PinholeCameraModel) error {
	if err := model.CheckValid(); err != nil {
		return err
	}
	d := []float64{0, 0, 0, 0, 0}
	if bc, ok := model.Distortion.(*BrownConrady); ok && bc != nil {
		d = bc.OpenCVCoefficients()
	}
	if err := writeNPY(kPath, model.GetCameraMatrix()); err != nil {
		return err
	}
	return writeNPY(dPath, d)
}

func writeNPY(path string, val interface{}) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return npyio.Write(f, val)
}
