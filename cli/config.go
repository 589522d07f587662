package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/fiducial-nav/markerpose/rimage/transform"
	"github.com/fiducial-nav/markerpose/tracking"
)

// readConfigFlag reads the --config file, or returns an empty config when it is unset.
func readConfigFlag(c *cli.Context) (*tracking.Config, error) {
	path := c.Path(generalFlagConfig)
	if path == "" {
		return &tracking.Config{}, nil
	}
	return tracking.ReadConfig(path)
}

func applyCalibrationFlags(c *cli.Context, cfg *tracking.Config) {
	switch {
	case c.IsSet(calFlagCalibration):
		cfg.Calibration, cfg.KMatrix, cfg.DistortionCoefficients = c.Path(calFlagCalibration), "", ""
	case c.IsSet(calFlagKMatrix) || c.IsSet(calFlagDCoeff):
		cfg.Calibration, cfg.KMatrix, cfg.DistortionCoefficients = "", c.Path(calFlagKMatrix), c.Path(calFlagDCoeff)
	}
	if c.IsSet(calFlagAlpha) || cfg.Alpha == nil {
		alpha := c.Float64(calFlagAlpha)
		cfg.Alpha = &alpha
	}
	if c.IsSet(calFlagNoCrop) {
		cfg.NoCrop = c.Bool(calFlagNoCrop)
	}
}

// trackingConfig starts from the --config file, when given, and applies every flag the user set on top.
func trackingConfig(c *cli.Context) (*tracking.Config, error) {
	cfg, err := readConfigFlag(c)
	if err != nil {
		return nil, err
	}

	applyCalibrationFlags(c, cfg)
	if c.IsSet(trackFlagLayout) {
		cfg.Layout = c.Path(trackFlagLayout)
	}
	if c.IsSet(trackFlagUndistort) {
		cfg.Undistort = tracking.UndistortMode(c.String(trackFlagUndistort))
	}
	if c.IsSet(trackFlagDuplicates) {
		cfg.DuplicatePolicy = c.String(trackFlagDuplicates)
	}
	if c.IsSet(trackFlagMethod) {
		cfg.PnPMethod = c.String(trackFlagMethod)
	}
	if c.IsSet(trackFlagMaxError) {
		cfg.MaxReprojectionError = c.Float64(trackFlagMaxError)
	}
	if c.IsSet(trackFlagTarget) {
		cfg.Target = c.Float64Slice(trackFlagTarget)
	}
	if err := cfg.Validate("flags"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cameraModel loads the calibration named by the flags, or by the --config file.
func cameraModel(c *cli.Context) (*transform.PinholeCameraModel, *tracking.Config, error) {
	cfg, err := readConfigFlag(c)
	if err != nil {
		return nil, nil, err
	}
	applyCalibrationFlags(c, cfg)
	var model *transform.PinholeCameraModel
	switch {
	case cfg.Calibration != "":
		model, err = transform.ReadCalibrationFile(cfg.Calibration)
	case cfg.KMatrix != "":
		model, err = transform.ReadCalibrationNPY(cfg.KMatrix, cfg.DistortionCoefficients)
	default:
		return nil, nil, cli.Exit("a calibration is required: pass --cal or --kmatrix and --dcoeff", 1)
	}
	if err != nil {
		return nil, nil, err
	}
	return model, cfg, nil
}
