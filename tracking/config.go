package tracking

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/fiducial-nav/markerpose/logging"
	"github.com/fiducial-nav/markerpose/markers"
	"github.com/fiducial-nav/markerpose/pnp"
)

// UndistortMode selects how lens distortion is removed before solving.
type UndistortMode string

const (
	// UndistortRemap resamples every frame through a DistortionMap before detection.
	UndistortRemap UndistortMode = "remap"
	// UndistortPoints leaves frames untouched and undistorts the detected corners.
	UndistortPoints UndistortMode = "points"
	// UndistortNone ignores the distortion coefficients entirely.
	UndistortNone UndistortMode = "none"
)

const (
	// DefaultAlpha keeps every source pixel in the undistorted frame.
	DefaultAlpha = 1.0
	// DefaultPositionTolerance is in layout units.
	DefaultPositionTolerance = 0.5
	// DefaultRotationToleranceDeg is in degrees.
	DefaultRotationToleranceDeg = 5.0
)

// Config describes a tracking session.
type Config struct {
	// Calibration is a .npz archive or .json file holding both "k" and "d".
	Calibration string `json:"calibration,omitempty"`
	// KMatrix and DistortionCoefficients are separate .npy files, used instead of Calibration.
	KMatrix                string `json:"k_matrix,omitempty"`
	DistortionCoefficients string `json:"distortion_coefficients,omitempty"`
	Layout                 string `json:"layout"`

	Alpha     *float64      `json:"alpha,omitempty"`
	NoCrop    bool          `json:"no_crop,omitempty"`
	Undistort UndistortMode `json:"undistort,omitempty"`

	DuplicatePolicy string `json:"duplicate_policy,omitempty"`

	// Target is the desired camera-space translation; alignment is only evaluated when it is set.
	Target               []float64 `json:"target,omitempty"`
	PositionTolerance    float64   `json:"position_tolerance,omitempty"`
	RotationToleranceDeg float64   `json:"rotation_tolerance_deg,omitempty"`

	MaxReprojectionError float64 `json:"max_reprojection_error,omitempty"`
	PnPMethod            string  `json:"pnp_method,omitempty"`
	// OriginAxisLength is the length of the world axes drawn by overlays. Zero uses the first marker's size.
	OriginAxisLength float64 `json:"origin_axis_length,omitempty"`
	LogLevel         string  `json:"log_level,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.Layout == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "layout")
	}
	switch {
	case config.Calibration != "" && (config.KMatrix != "" || config.DistortionCoefficients != ""):
		return goutils.NewConfigValidationError(path,
			errors.New("calibration cannot be combined with k_matrix or distortion_coefficients"))
	case config.Calibration == "" && config.KMatrix == "":
		return goutils.NewConfigValidationFieldRequiredError(path, "calibration")
	case config.KMatrix != "" && config.DistortionCoefficients == "":
		return goutils.NewConfigValidationFieldRequiredError(path, "distortion_coefficients")
	}
	if config.Alpha != nil && (*config.Alpha < 0 || *config.Alpha > 1) {
		return goutils.NewConfigValidationError(path, errors.Errorf("alpha must be in [0, 1], got %v", *config.Alpha))
	}
	switch config.Undistort {
	case "", UndistortRemap, UndistortPoints, UndistortNone:
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown undistort mode %q", config.Undistort))
	}
	if _, err := markers.ParseDuplicatePolicy(config.DuplicatePolicy); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if len(config.Target) != 0 && len(config.Target) != 3 {
		return goutils.NewConfigValidationError(path, errors.Errorf("target must have 3 values, got %d", len(config.Target)))
	}
	if config.PositionTolerance < 0 {
		return goutils.NewConfigValidationError(path, errors.New("position_tolerance cannot be negative"))
	}
	if config.RotationToleranceDeg < 0 {
		return goutils.NewConfigValidationError(path, errors.New("rotation_tolerance_deg cannot be negative"))
	}
	if config.MaxReprojectionError < 0 {
		return goutils.NewConfigValidationError(path, errors.New("max_reprojection_error cannot be negative"))
	}
	if config.OriginAxisLength < 0 {
		return goutils.NewConfigValidationError(path, errors.New("origin_axis_length cannot be negative"))
	}
	if _, err := pnp.ParseMethod(config.PnPMethod); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if config.LogLevel != "" {
		if _, err := logging.LevelFromString(config.LogLevel); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// AlphaValue returns the configured alpha or DefaultAlpha.
func (config *Config) AlphaValue() float64 {
	if config.Alpha == nil {
		return DefaultAlpha
	}
	return *config.Alpha
}

// UndistortModeValue returns the configured mode or UndistortRemap.
func (config *Config) UndistortModeValue() UndistortMode {
	if config.Undistort == "" {
		return UndistortRemap
	}
	return config.Undistort
}

func (config *Config) positionTolerance() float64 {
	if config.PositionTolerance == 0 {
		return DefaultPositionTolerance
	}
	return config.PositionTolerance
}

func (config *Config) rotationToleranceDeg() float64 {
	if config.RotationToleranceDeg == 0 {
		return DefaultRotationToleranceDeg
	}
	return config.RotationToleranceDeg
}

// resolvePaths makes relative file references relative to dir.
func (config *Config) resolvePaths(dir string) {
	for _, p := range []*string{&config.Calibration, &config.KMatrix, &config.DistortionCoefficients, &config.Layout} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// ReadConfig reads and validates a JSON config file. Relative file references are resolved against the
// directory holding the config.
func ReadConfig(path string) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", path)
	}
	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFromAttributes decodes and validates a config from a generic attribute map.
func ConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "cannot decode tracking attributes")
	}
	if err := cfg.Validate("attributes"); err != nil {
		return nil, err
	}
	return &cfg, nil
}
