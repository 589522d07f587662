package tracking

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Calibration: "cal.npz", Layout: "layout.json"}
	test.That(t, valid.Validate("cfg"), test.ShouldBeNil)
	test.That(t, valid.AlphaValue(), test.ShouldEqual, DefaultAlpha)
	test.That(t, valid.UndistortModeValue(), test.ShouldEqual, UndistortRemap)
	test.That(t, valid.positionTolerance(), test.ShouldEqual, DefaultPositionTolerance)
	test.That(t, valid.rotationToleranceDeg(), test.ShouldEqual, DefaultRotationToleranceDeg)

	npy := Config{KMatrix: "k.npy", DistortionCoefficients: "d.npy", Layout: "layout.json", Alpha: floatPtr(0)}
	test.That(t, npy.Validate("cfg"), test.ShouldBeNil)
	test.That(t, npy.AlphaValue(), test.ShouldEqual, 0.)

	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"no layout", func(c *Config) { c.Layout = "" }, "layout"},
		{"no calibration", func(c *Config) { c.Calibration = "" }, "calibration"},
		{"both calibrations", func(c *Config) { c.KMatrix = "k.npy" }, "cannot be combined"},
		{"alpha", func(c *Config) { c.Alpha = floatPtr(1.5) }, "alpha"},
		{"mode", func(c *Config) { c.Undistort = "fisheye" }, "fisheye"},
		{"policy", func(c *Config) { c.DuplicatePolicy = "keep_last" }, "keep_last"},
		{"target", func(c *Config) { c.Target = []float64{1, 2} }, "target"},
		{"position tolerance", func(c *Config) { c.PositionTolerance = -1 }, "position_tolerance"},
		{"rotation tolerance", func(c *Config) { c.RotationToleranceDeg = -1 }, "rotation_tolerance_deg"},
		{"reprojection", func(c *Config) { c.MaxReprojectionError = -1 }, "max_reprojection_error"},
		{"axis", func(c *Config) { c.OriginAxisLength = -1 }, "origin_axis_length"},
		{"method", func(c *Config) { c.PnPMethod = "epnp" }, "epnp"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "loud"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate("cfg")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}

	missingD := Config{KMatrix: "k.npy", Layout: "layout.json"}
	err := missingD.Validate("cfg")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "distortion_coefficients")
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracking.json")
	data := `{
		"calibration": "cal/camera.npz",
		"layout": "/abs/layout.json",
		"alpha": 0.25,
		"undistort": "points",
		"target": [0, 0, 50],
		"log_level": "debug"
	}`
	test.That(t, os.WriteFile(path, []byte(data), 0o600), test.ShouldBeNil)

	cfg, err := ReadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Calibration, test.ShouldEqual, filepath.Join(dir, "cal", "camera.npz"))
	test.That(t, cfg.Layout, test.ShouldEqual, "/abs/layout.json")
	test.That(t, cfg.AlphaValue(), test.ShouldEqual, 0.25)
	test.That(t, cfg.UndistortModeValue(), test.ShouldEqual, UndistortPoints)
	test.That(t, cfg.Target, test.ShouldResemble, []float64{0, 0, 50})

	test.That(t, os.WriteFile(path, []byte(`{"layout": "l.json", "calibration": "c.npz", "colour": 1}`), 0o600),
		test.ShouldBeNil)
	_, err = ReadConfig(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "colour")

	test.That(t, os.WriteFile(path, []byte(`{"calibration": "c.npz"}`), 0o600), test.ShouldBeNil)
	_, err = ReadConfig(path)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ReadConfig(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConfigFromAttributes(t *testing.T) {
	cfg, err := ConfigFromAttributes(map[string]interface{}{
		"k_matrix":                "k.npy",
		"distortion_coefficients": "d.npy",
		"layout":                  "layout.json",
		"alpha":                   "0.5",
		"no_crop":                 true,
		"target":                  []interface{}{1, 2.5, "3"},
		"pnp_method":              "iterative",
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.AlphaValue(), test.ShouldEqual, 0.5)
	test.That(t, cfg.NoCrop, test.ShouldBeTrue)
	test.That(t, cfg.Target, test.ShouldResemble, []float64{1, 2.5, 3})
	test.That(t, cfg.PnPMethod, test.ShouldEqual, "iterative")

	_, err = ConfigFromAttributes(map[string]interface{}{"layout": "l.json", "calibration": "c.npz", "bogus": 1})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ConfigFromAttributes(map[string]interface{}{"layout": "l.json"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "calibration")
}
