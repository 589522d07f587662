package transform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio/npz"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestCalibrationJSON(t *testing.T) {
	model := testModel(t)
	path := filepath.Join(t.TempDir(), "cal.json")
	test.That(t, WriteCalibrationJSON(path, model), test.ShouldBeNil)

	loaded, err := ReadCalibrationFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *loaded.PinholeCameraIntrinsics, test.ShouldResemble, *model.PinholeCameraIntrinsics)
	test.That(t, loaded.Distortion.Parameters(), test.ShouldResemble, model.Distortion.Parameters())
}

func TestCalibrationJSONNoDistortion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.json")
	data := `{"k": [[500, 0, 320], [0, 500, 240], [0, 0, 1]], "d": [0, 0, 0, 0, 0]}`
	test.That(t, os.WriteFile(path, []byte(data), 0o600), test.ShouldBeNil)

	loaded, err := ReadCalibrationFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Distortion, test.ShouldBeNil)
	test.That(t, loaded.Fx, test.ShouldEqual, 500.)
	test.That(t, loaded.Width, test.ShouldEqual, 0)

	bad := filepath.Join(t.TempDir(), "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"k": [[500, 0], [0, 500]]}`), 0o600), test.ShouldBeNil)
	_, err = ReadCalibrationFile(bad)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ReadCalibrationFile(filepath.Join(t.TempDir(), "cal.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadCalibrationFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCalibrationNPY(t *testing.T) {
	model := testModel(t)
	dir := t.TempDir()
	kPath, dPath := filepath.Join(dir, "k.npy"), filepath.Join(dir, "d.npy")
	test.That(t, WriteCalibrationNPY(kPath, dPath, model), test.ShouldBeNil)

	loaded, err := ReadCalibrationNPY(kPath, dPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Fx, test.ShouldEqual, model.Fx)
	test.That(t, loaded.Ppy, test.ShouldEqual, model.Ppy)
	test.That(t, loaded.Distortion.Parameters(), test.ShouldResemble, model.Distortion.Parameters())

	_, err = ReadCalibrationNPY(filepath.Join(dir, "nope.npy"), dPath)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCalibrationNPZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.npz")
	w, err := npz.Create(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.Write("k", mat.NewDense(3, 3, []float64{600, 0, 318, 0, 602, 243, 0, 0, 1})), test.ShouldBeNil)
	test.That(t, w.Write("d", []float64{-0.28, 0.09, 0.001, -0.0005, -0.01}), test.ShouldBeNil)
	test.That(t, w.Close(), test.ShouldBeNil)

	loaded, err := ReadCalibrationFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Fx, test.ShouldEqual, 600.)
	test.That(t, loaded.Fy, test.ShouldEqual, 602.)
	test.That(t, loaded.Ppx, test.ShouldEqual, 318.)
	bc, ok := loaded.Distortion.(*BrownConrady)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, bc.TangentialP1, test.ShouldEqual, 0.001)
	test.That(t, bc.RadialK3, test.ShouldEqual, -0.01)
}
